// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/danielhkuo/runecheck/models"
	"github.com/danielhkuo/runecheck/registry"
	"github.com/danielhkuo/runecheck/voting"
)

// DefaultPrefix namespaces every key the store writes.
const DefaultPrefix = "runecheck:"

// maxRetries bounds optimistic transaction retries on contention.
const maxRetries = 100

// Store implements voting.Store and registry.Store on Redis.
type Store struct {
	rdb    *redis.Client
	prefix string
}

// Open connects to Redis, pings it and seeds the access-token registry.
func Open(ctx context.Context, opts *redis.Options, prefix string) (*Store, error) {
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	s := New(rdb, prefix)
	if err := s.Seed(ctx); err != nil {
		rdb.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing client. An empty prefix means DefaultPrefix.
func New(rdb *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{rdb: rdb, prefix: prefix}
}

func (s *Store) Client() *redis.Client {
	return s.rdb
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func (s *Store) questionKey(id string) string { return s.prefix + "question:" + id }
func (s *Store) votesKey(id string) string    { return s.prefix + "question:" + id + ":votes" }
func (s *Store) walletKey(addr string) string { return s.prefix + "wallet:" + addr + ":votes" }
func (s *Store) questionsKey() string         { return s.prefix + "questions" }
func (s *Store) accessTokensKey() string      { return s.prefix + "access_tokens" }
func (s *Store) associationsKey() string      { return s.prefix + "token_associations" }

// transact runs fn under WATCH on keys, retrying when another client
// modifies a watched key before EXEC.
func (s *Store) transact(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for i := 0; i < maxRetries; i++ {
		err := s.rdb.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("redis transaction: too much contention on %v", keys)
}

// questionHash is the flat hash layout of a question.
type questionHash struct {
	ID               string `mapstructure:"id"`
	Token            string `mapstructure:"token"`
	Question         string `mapstructure:"question"`
	StartTime        string `mapstructure:"start_time"`
	EndTime          string `mapstructure:"end_time"`
	Status           string `mapstructure:"status"`
	CreatedBy        string `mapstructure:"created_by"`
	YesVotes         string `mapstructure:"yes_votes"`
	NoVotes          string `mapstructure:"no_votes"`
	TotalVoters      int    `mapstructure:"total_voters"`
	TotalVotingPower string `mapstructure:"total_voting_power"`
	WinningChoice    string `mapstructure:"winning_choice"`
	HasEnded         bool   `mapstructure:"has_ended"`
	CompletedAt      string `mapstructure:"completed_at"`
	ArchivedAt       string `mapstructure:"archived_at"`
}

func questionFields(q *models.Question) map[string]interface{} {
	r := q.Results
	hasEnded := "0"
	if r.HasEnded {
		hasEnded = "1"
	}
	return map[string]interface{}{
		"id":                 q.ID,
		"token":              q.Token,
		"question":           q.Question,
		"start_time":         q.StartTime.UTC().Format(time.RFC3339Nano),
		"end_time":           q.EndTime.UTC().Format(time.RFC3339Nano),
		"status":             q.Status,
		"created_by":         q.CreatedBy,
		"yes_votes":          r.YesVotes.String(),
		"no_votes":           r.NoVotes.String(),
		"total_voters":       strconv.Itoa(r.TotalVoters),
		"total_voting_power": r.TotalVotingPower.String(),
		"winning_choice":     r.WinningChoice,
		"has_ended":          hasEnded,
		"completed_at":       formatOptionalTime(q.CompletedAt),
		"archived_at":        formatOptionalTime(q.ArchivedAt),
	}
}

func decodeQuestion(data map[string]string) (*models.Question, error) {
	var h questionHash
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &h,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(data); err != nil {
		return nil, fmt.Errorf("decode question: %w", err)
	}

	q := &models.Question{
		ID:        h.ID,
		Token:     h.Token,
		Question:  h.Question,
		Status:    h.Status,
		CreatedBy: h.CreatedBy,
		Results: models.Results{
			TotalVoters:   h.TotalVoters,
			WinningChoice: h.WinningChoice,
			HasEnded:      h.HasEnded,
		},
	}
	if q.StartTime, err = time.Parse(time.RFC3339Nano, h.StartTime); err != nil {
		return nil, fmt.Errorf("parse start_time: %w", err)
	}
	if q.EndTime, err = time.Parse(time.RFC3339Nano, h.EndTime); err != nil {
		return nil, fmt.Errorf("parse end_time: %w", err)
	}
	if q.Results.YesVotes, err = decimal.NewFromString(h.YesVotes); err != nil {
		return nil, fmt.Errorf("parse yes_votes: %w", err)
	}
	if q.Results.NoVotes, err = decimal.NewFromString(h.NoVotes); err != nil {
		return nil, fmt.Errorf("parse no_votes: %w", err)
	}
	if q.Results.TotalVotingPower, err = decimal.NewFromString(h.TotalVotingPower); err != nil {
		return nil, fmt.Errorf("parse total_voting_power: %w", err)
	}
	if q.CompletedAt, err = parseOptionalTime(h.CompletedAt); err != nil {
		return nil, err
	}
	if q.ArchivedAt, err = parseOptionalTime(h.ArchivedAt); err != nil {
		return nil, err
	}
	return q, nil
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseOptionalTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, fmt.Errorf("parse time %q: %w", s, err)
	}
	return &t, nil
}

// voteRecord is the msgpack value stored per wallet in a question's vote hash.
type voteRecord struct {
	Choice  string    `msgpack:"c"`
	Balance string    `msgpack:"b"`
	CastAt  time.Time `msgpack:"t"`
}

func encodeVote(v models.Vote) ([]byte, error) {
	return msgpack.Marshal(&voteRecord{
		Choice:  v.Choice,
		Balance: v.TokenBalance.String(),
		CastAt:  v.Timestamp.UTC(),
	})
}

func decodeVote(questionID, wallet, data string) (models.Vote, error) {
	var rec voteRecord
	if err := msgpack.Unmarshal([]byte(data), &rec); err != nil {
		return models.Vote{}, fmt.Errorf("decode vote %s/%s: %w", questionID, wallet, err)
	}
	balance, err := decimal.NewFromString(rec.Balance)
	if err != nil {
		return models.Vote{}, fmt.Errorf("parse vote balance: %w", err)
	}
	return models.Vote{
		QuestionID:    questionID,
		WalletAddress: wallet,
		Choice:        rec.Choice,
		TokenBalance:  balance,
		Timestamp:     rec.CastAt.UTC(),
	}, nil
}

// reader is satisfied by both *redis.Client and *redis.Tx.
type reader interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

func (s *Store) getQuestion(ctx context.Context, r reader, id string) (*models.Question, error) {
	data, err := r.HGetAll(ctx, s.questionKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("load question: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("question %s: %w", id, voting.ErrNotFound)
	}
	return decodeQuestion(data)
}

func (s *Store) votesFor(ctx context.Context, r reader, id string) ([]models.Vote, error) {
	data, err := r.HGetAll(ctx, s.votesKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("load votes: %w", err)
	}
	votes := make([]models.Vote, 0, len(data))
	for wallet, raw := range data {
		v, err := decodeVote(id, wallet, raw)
		if err != nil {
			return nil, err
		}
		votes = append(votes, v)
	}
	sortVotes(votes)
	return votes, nil
}

func sortVotes(votes []models.Vote) {
	sort.Slice(votes, func(i, j int) bool {
		if !votes[i].Timestamp.Equal(votes[j].Timestamp) {
			return votes[i].Timestamp.Before(votes[j].Timestamp)
		}
		if votes[i].QuestionID != votes[j].QuestionID {
			return votes[i].QuestionID < votes[j].QuestionID
		}
		return votes[i].WalletAddress < votes[j].WalletAddress
	})
}

// CreateQuestion implements voting.Store.
func (s *Store) CreateQuestion(ctx context.Context, q *models.Question) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.questionKey(q.ID), questionFields(q))
		pipe.SAdd(ctx, s.questionsKey(), q.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store question: %w", err)
	}
	return nil
}

// GetQuestion implements voting.Store.
func (s *Store) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	return s.getQuestion(ctx, s.rdb, id)
}

// ListQuestions implements voting.Store.
func (s *Store) ListQuestions(ctx context.Context, token string) ([]models.Question, error) {
	ids, err := s.rdb.SMembers(ctx, s.questionsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	pipe := s.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, s.questionKey(id))
	}
	if len(ids) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("load questions: %w", err)
		}
	}

	questions := []models.Question{}
	for _, cmd := range cmds {
		data := cmd.Val()
		if len(data) == 0 {
			continue
		}
		q, err := decodeQuestion(data)
		if err != nil {
			return nil, err
		}
		if token != "" && q.Token != token {
			continue
		}
		questions = append(questions, *q)
	}

	sort.Slice(questions, func(i, j int) bool {
		if !questions[i].StartTime.Equal(questions[j].StartTime) {
			return questions[i].StartTime.Before(questions[j].StartTime)
		}
		return questions[i].ID < questions[j].ID
	})
	return questions, nil
}

// UpdateQuestion implements voting.Store.
func (s *Store) UpdateQuestion(ctx context.Context, id string, fn voting.QuestionUpdate) (*models.Question, error) {
	var out *models.Question
	err := s.transact(ctx, func(tx *redis.Tx) error {
		q, err := s.getQuestion(ctx, tx, id)
		if err != nil {
			return err
		}
		votes, err := s.votesFor(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(q, votes); err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, s.questionKey(id), questionFields(q))
			return nil
		})
		if err != nil {
			return err
		}
		out = q
		return nil
	}, s.questionKey(id), s.votesKey(id))
	return out, err
}

// RecordVote implements voting.Store. WATCH on the question and its vote
// hash makes the duplicate check and the write one atomic step.
func (s *Store) RecordVote(ctx context.Context, vote models.Vote, fn voting.QuestionUpdate) (*models.Question, error) {
	data, err := encodeVote(vote)
	if err != nil {
		return nil, fmt.Errorf("encode vote: %w", err)
	}

	qKey, vKey := s.questionKey(vote.QuestionID), s.votesKey(vote.QuestionID)
	var out *models.Question
	err = s.transact(ctx, func(tx *redis.Tx) error {
		q, err := s.getQuestion(ctx, tx, vote.QuestionID)
		if err != nil {
			return err
		}
		exists, err := tx.HExists(ctx, vKey, vote.WalletAddress).Result()
		if err != nil {
			return fmt.Errorf("check vote: %w", err)
		}
		if exists {
			return voting.ErrDuplicateVote
		}
		votes, err := s.votesFor(ctx, tx, vote.QuestionID)
		if err != nil {
			return err
		}

		if err := fn(q, append(votes, vote)); err != nil {
			return err
		}

		var added *redis.BoolCmd
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			added = pipe.HSetNX(ctx, vKey, vote.WalletAddress, data)
			pipe.SAdd(ctx, s.walletKey(vote.WalletAddress), vote.QuestionID)
			pipe.HSet(ctx, qKey, questionFields(q))
			return nil
		})
		if err != nil {
			return err
		}
		if !added.Val() {
			return voting.ErrDuplicateVote
		}
		out = q
		return nil
	}, qKey, vKey)
	return out, err
}

// VotesForQuestion implements voting.Store.
func (s *Store) VotesForQuestion(ctx context.Context, questionID string) ([]models.Vote, error) {
	return s.votesFor(ctx, s.rdb, questionID)
}

// VotesByWallet implements voting.Store.
func (s *Store) VotesByWallet(ctx context.Context, walletAddress string) ([]models.Vote, error) {
	ids, err := s.rdb.SMembers(ctx, s.walletKey(walletAddress)).Result()
	if err != nil {
		return nil, fmt.Errorf("list wallet votes: %w", err)
	}

	votes := []models.Vote{}
	for _, id := range ids {
		raw, err := s.rdb.HGet(ctx, s.votesKey(id), walletAddress).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load vote: %w", err)
		}
		v, err := decodeVote(id, walletAddress, raw)
		if err != nil {
			return nil, err
		}
		votes = append(votes, v)
	}
	sortVotes(votes)
	return votes, nil
}

// tokenRecord is the msgpack value of one access token.
type tokenRecord struct {
	Token     models.AccessToken `msgpack:"token"`
	SortOrder int                `msgpack:"order"`
}

// Seed installs registry.DefaultAccessTokens when the registry is empty.
func (s *Store) Seed(ctx context.Context) error {
	key := s.accessTokensKey()
	return s.transact(ctx, func(tx *redis.Tx) error {
		n, err := tx.HLen(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("count access tokens: %w", err)
		}
		if n > 0 {
			return nil
		}

		fields := map[string]interface{}{}
		for i, t := range registry.DefaultAccessTokens() {
			data, err := msgpack.Marshal(&tokenRecord{Token: t, SortOrder: i + 1})
			if err != nil {
				return err
			}
			fields[t.Name] = data
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fields)
			return nil
		})
		return err
	}, key)
}

func (s *Store) tokenRecords(ctx context.Context, r reader) ([]tokenRecord, error) {
	data, err := r.HGetAll(ctx, s.accessTokensKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("load access tokens: %w", err)
	}
	records := make([]tokenRecord, 0, len(data))
	for name, raw := range data {
		var rec tokenRecord
		if err := msgpack.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode access token %s: %w", name, err)
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].SortOrder != records[j].SortOrder {
			return records[i].SortOrder < records[j].SortOrder
		}
		return records[i].Token.Name < records[j].Token.Name
	})
	return records, nil
}

func (s *Store) associations(ctx context.Context, r reader) (map[string]models.TokenAssociation, error) {
	data, err := r.HGetAll(ctx, s.associationsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("load token associations: %w", err)
	}
	assocs := make(map[string]models.TokenAssociation, len(data))
	for wallet, raw := range data {
		var a models.TokenAssociation
		if err := msgpack.Unmarshal([]byte(raw), &a); err != nil {
			return nil, fmt.Errorf("decode token association %s: %w", wallet, err)
		}
		a.CreatedAt = a.CreatedAt.UTC()
		assocs[wallet] = a
	}
	return assocs, nil
}

// ListAccessTokens implements registry.Store.
func (s *Store) ListAccessTokens(ctx context.Context) ([]models.AccessToken, error) {
	records, err := s.tokenRecords(ctx, s.rdb)
	if err != nil {
		return nil, err
	}
	tokens := make([]models.AccessToken, len(records))
	for i, rec := range records {
		tokens[i] = rec.Token
	}
	return tokens, nil
}

// GetAccessToken implements registry.Store.
func (s *Store) GetAccessToken(ctx context.Context, name string) (*models.AccessToken, error) {
	raw, err := s.rdb.HGet(ctx, s.accessTokensKey(), name).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("access token %s: %w", name, voting.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load access token: %w", err)
	}
	var rec tokenRecord
	if err := msgpack.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("decode access token %s: %w", name, err)
	}
	return &rec.Token, nil
}

// ListAssociations implements registry.Store.
func (s *Store) ListAssociations(ctx context.Context) ([]models.TokenAssociation, error) {
	byWallet, err := s.associations(ctx, s.rdb)
	if err != nil {
		return nil, err
	}
	assocs := make([]models.TokenAssociation, 0, len(byWallet))
	for _, a := range byWallet {
		assocs = append(assocs, a)
	}
	sort.Slice(assocs, func(i, j int) bool {
		if !assocs[i].CreatedAt.Equal(assocs[j].CreatedAt) {
			return assocs[i].CreatedAt.Before(assocs[j].CreatedAt)
		}
		return assocs[i].WalletAddress < assocs[j].WalletAddress
	})
	return assocs, nil
}

// AddUserToken implements registry.Store.
func (s *Store) AddUserToken(ctx context.Context, assoc models.TokenAssociation, token models.AccessToken) error {
	tKey, aKey := s.accessTokensKey(), s.associationsKey()
	return s.transact(ctx, func(tx *redis.Tx) error {
		assocs, err := s.associations(ctx, tx)
		if err != nil {
			return err
		}
		if _, ok := assocs[assoc.WalletAddress]; ok {
			return registry.ErrWalletHasToken
		}
		for _, a := range assocs {
			if a.TokenName == token.Name {
				return registry.ErrTokenExists
			}
		}
		records, err := s.tokenRecords(ctx, tx)
		if err != nil {
			return err
		}
		order := 0
		for _, rec := range records {
			if rec.Token.Name == token.Name {
				return registry.ErrTokenExists
			}
			if rec.SortOrder > order {
				order = rec.SortOrder
			}
		}

		tokenData, err := msgpack.Marshal(&tokenRecord{Token: token, SortOrder: order + 1})
		if err != nil {
			return err
		}
		assocData, err := msgpack.Marshal(&assoc)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, tKey, token.Name, tokenData)
			pipe.HSet(ctx, aKey, assoc.WalletAddress, assocData)
			return nil
		})
		return err
	}, tKey, aKey)
}

// UpdateRequiredBalance implements registry.Store.
func (s *Store) UpdateRequiredBalance(ctx context.Context, wallet, name string, balance int64) (*models.TokenAssociation, error) {
	tKey, aKey := s.accessTokensKey(), s.associationsKey()
	var out *models.TokenAssociation
	err := s.transact(ctx, func(tx *redis.Tx) error {
		assocs, err := s.associations(ctx, tx)
		if err != nil {
			return err
		}
		a, ok := assocs[wallet]
		if !ok || a.TokenName != name {
			return fmt.Errorf("token %s for %s: %w", name, wallet, voting.ErrNotFound)
		}
		a.RequiredBalance = balance

		assocData, err := msgpack.Marshal(&a)
		if err != nil {
			return err
		}

		var tokenData []byte
		raw, err := tx.HGet(ctx, tKey, name).Result()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return fmt.Errorf("load access token: %w", err)
		default:
			var rec tokenRecord
			if err := msgpack.Unmarshal([]byte(raw), &rec); err != nil {
				return fmt.Errorf("decode access token %s: %w", name, err)
			}
			rec.Token.RequiredBalance = balance
			if tokenData, err = msgpack.Marshal(&rec); err != nil {
				return err
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, aKey, wallet, assocData)
			if tokenData != nil {
				pipe.HSet(ctx, tKey, name, tokenData)
			}
			return nil
		})
		if err != nil {
			return err
		}
		out = &a
		return nil
	}, tKey, aKey)
	return out, err
}

// DeleteUserToken implements registry.Store.
func (s *Store) DeleteUserToken(ctx context.Context, wallet, name string) error {
	tKey, aKey := s.accessTokensKey(), s.associationsKey()
	return s.transact(ctx, func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, aKey, wallet).Result()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("token %s for %s: %w", name, wallet, voting.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("load token association: %w", err)
		}
		var a models.TokenAssociation
		if err := msgpack.Unmarshal([]byte(raw), &a); err != nil {
			return fmt.Errorf("decode token association %s: %w", wallet, err)
		}
		if a.TokenName != name {
			return fmt.Errorf("token %s for %s: %w", name, wallet, voting.ErrNotFound)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HDel(ctx, aKey, wallet)
			pipe.HDel(ctx, tKey, name)
			return nil
		})
		return err
	}, tKey, aKey)
}
