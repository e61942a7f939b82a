package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/danielhkuo/runecheck/auth"
	"github.com/danielhkuo/runecheck/middleware"
)

// Store types accepted by -store / STORE_TYPE.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreFile     = "file"
)

type Config struct {
	Port      int
	StoreType string

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DataDir       string

	OracleURL  string
	OracleFile string

	AdminToken      string
	AdminMinBalance int64

	VoteRateLimit       float64
	VoteRateBurst       int
	SweepInterval       time.Duration
	EnforceVotingWindow bool
	CORSOrigin          string
	IPHashSalt          string
	TrustedProxies      middleware.TrustedProxies
}

// envFallbacks maps flag names to the environment variable consulted when
// the flag is not given on the command line.
var envFallbacks = []struct{ flag, env string }{
	{"p", "PORT"},
	{"store", "STORE_TYPE"},
	{"d", "DATABASE_URL"},
	{"redis-addr", "REDIS_ADDR"},
	{"redis-password", "REDIS_PASSWORD"},
	{"redis-db", "REDIS_DB"},
	{"data-dir", "DATA_DIR"},
	{"oracle-url", "ORACLE_URL"},
	{"oracle-file", "ORACLE_FILE"},
	{"admin-token", "ADMIN_TOKEN"},
	{"admin-min", "ADMIN_MIN_BALANCE"},
	{"vote-rate", "VOTE_RATE_LIMIT"},
	{"vote-burst", "VOTE_RATE_BURST"},
	{"sweep", "SWEEP_INTERVAL"},
	{"enforce-window", "ENFORCE_VOTING_WINDOW"},
	{"cors-origin", "CORS_ORIGIN"},
	{"ip-salt", "IP_HASH_SALT"},
	{"trusted-proxies", "TRUSTED_PROXIES"},
}

// ParseFlags parses args, falls back to environment variables for unset
// flags and validates the result.
func ParseFlags(args []string) (Config, error) {
	var cfg Config

	fs := flag.NewFlagSet("runecheck", flag.ContinueOnError)

	// Network and storage
	fs.IntVar(&cfg.Port, "p", 3318, "Server port")
	fs.StringVar(&cfg.StoreType, "store", StoreSQLite, "Store type (sqlite, postgres, redis or file)")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL or sqlite file path")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", "localhost:6379", "Redis address")
	fs.StringVar(&cfg.RedisPassword, "redis-password", "", "Redis password (prefer env)")
	fs.IntVar(&cfg.RedisDB, "redis-db", 0, "Redis database number")
	fs.StringVar(&cfg.DataDir, "data-dir", "data", "Directory for the file store")

	// Balance oracle
	fs.StringVar(&cfg.OracleURL, "oracle-url", "", "ord JSON-RPC endpoint")
	fs.StringVar(&cfg.OracleFile, "oracle-file", "", "JSON file of fixed balances, replaces the RPC oracle")

	// Governance rules
	fs.StringVar(&cfg.AdminToken, "admin-token", auth.DefaultAdminToken, "Rune whose holders are admins")
	fs.Int64Var(&cfg.AdminMinBalance, "admin-min", auth.DefaultAdminMinBalance, "Minimum admin token balance")
	fs.Float64Var(&cfg.VoteRateLimit, "vote-rate", 1, "Votes per second allowed per IP (0 disables)")
	fs.IntVar(&cfg.VoteRateBurst, "vote-burst", 5, "Vote burst allowed per IP")
	fs.DurationVar(&cfg.SweepInterval, "sweep", time.Minute, "How often ended questions are completed (0 disables)")
	fs.BoolVar(&cfg.EnforceVotingWindow, "enforce-window", false, "Reject votes before a question's start time")
	fs.StringVar(&cfg.CORSOrigin, "cors-origin", "", "Allowed CORS origin (empty echoes the request origin)")
	fs.StringVar(&cfg.IPHashSalt, "ip-salt", "", "Salt for hashed client IPs (prefer env)")
	fs.Func("trusted-proxies", "Comma-separated proxy IPs or CIDRs whose X-Forwarded-For is believed", func(v string) error {
		tp, err := middleware.ParseTrustedProxies(v)
		if err != nil {
			return err
		}
		cfg.TrustedProxies = tp
		return nil
	})

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// Fall back to environment variables
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	for _, fb := range envFallbacks {
		if set[fb.flag] {
			continue
		}
		if v := os.Getenv(fb.env); v != "" {
			if err := fs.Set(fb.flag, v); err != nil {
				return Config{}, fmt.Errorf("invalid %s env variable", fb.env)
			}
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) validate() error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}

	switch cfg.StoreType {
	case StoreSQLite:
		if cfg.DatabaseURL == "" {
			cfg.DatabaseURL = "runecheck.db"
		}
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return errors.New("database URL required for postgres (use -d or DATABASE_URL env)")
		}
	case StoreRedis:
		if cfg.RedisAddr == "" {
			return errors.New("redis address required (use -redis-addr or REDIS_ADDR env)")
		}
	case StoreFile:
		if cfg.DataDir == "" {
			return errors.New("data directory required (use -data-dir or DATA_DIR env)")
		}
	default:
		return fmt.Errorf("unsupported store type %q", cfg.StoreType)
	}

	if cfg.AdminMinBalance <= 0 {
		return errors.New("admin minimum balance must be positive")
	}
	if cfg.VoteRateLimit < 0 {
		return errors.New("vote rate limit must not be negative")
	}
	if cfg.VoteRateLimit > 0 && cfg.VoteRateBurst < 1 {
		return errors.New("vote burst must be at least 1")
	}
	if cfg.SweepInterval < 0 {
		return errors.New("sweep interval must not be negative")
	}
	return nil
}
