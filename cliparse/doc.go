// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

# CLI Flags and Environment Variables

Every flag falls back to an environment variable when it is not given:

	-p               PORT                   Server port (default 3318)
	-store           STORE_TYPE             sqlite, postgres, redis or file (default sqlite)
	-d               DATABASE_URL           Postgres DSN or sqlite path (default runecheck.db)
	-redis-addr      REDIS_ADDR             Redis address (default localhost:6379)
	-redis-password  REDIS_PASSWORD         Redis password
	-redis-db        REDIS_DB               Redis database number
	-data-dir        DATA_DIR               File store directory (default data)
	-oracle-url      ORACLE_URL             ord JSON-RPC endpoint
	-oracle-file     ORACLE_FILE            Fixed balances file, replaces the RPC oracle
	-admin-token     ADMIN_TOKEN            Admin rune (default RUNE•MOON•DRAGON)
	-admin-min       ADMIN_MIN_BALANCE      Admin minimum balance (default 2000000)
	-vote-rate       VOTE_RATE_LIMIT        Votes per second per IP, 0 disables (default 1)
	-vote-burst      VOTE_RATE_BURST        Vote burst per IP (default 5)
	-sweep           SWEEP_INTERVAL         Completion sweep interval, 0 disables (default 1m)
	-enforce-window  ENFORCE_VOTING_WINDOW  Reject votes before start time
	-cors-origin     CORS_ORIGIN            Allowed origin (empty echoes the caller)
	-ip-salt         IP_HASH_SALT           Salt for hashed client IPs in logs
	-trusted-proxies TRUSTED_PROXIES        Proxy IPs/CIDRs allowed to set X-Forwarded-For

CLI flags take precedence over environment variables. Environment values are
parsed with the flag's own type, so SWEEP_INTERVAL takes a duration such as
"30s" and ENFORCE_VOTING_WINDOW takes "true" or "false".

# Validation

ParseFlags returns an error when:

  - the store type is unknown
  - the postgres store has no DATABASE_URL
  - the port, admin minimum, rate limit or sweep interval is out of range
  - a trusted proxy entry is not an IP address or CIDR range
  - an environment variable does not parse
*/
package cliparse
