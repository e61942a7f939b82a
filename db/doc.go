// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db stores questions, votes and the token registry in SQL.

# Opening a Store

Open connects, creates the schema and seeds the access-token registry:

	store, err := db.Open(ctx, db.DialectSQLite, "runecheck.db")
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

Both sqlite (modernc.org/sqlite) and postgres (github.com/lib/pq) are
supported. CreateSchema is safe to call multiple times - uses IF NOT EXISTS
for all tables and indexes.

# Tables

  - question: Question metadata, lifecycle state and cached results
  - vote: One vote per wallet per question
  - access_token: Dashboard registry, seeded with the default tokens
  - token_association: The token each wallet registered

# Relationships

	question 1──* vote
	token_association 1──1 access_token (by name)

# Units of Work

UpdateQuestion and RecordVote load the question and its votes, hand them to
a callback and write the result in one transaction. A callback error rolls
the transaction back. On postgres the question row is locked FOR UPDATE; the
sqlite store keeps a single open connection so transactions never overlap.
The primary key on vote(question_id, wallet_address) rejects duplicate votes
even if two transactions race.

Amounts are stored as decimal text and timestamps as fixed-width UTC text.

The Redis and flat-file backends live in the redisstore and filestore
subpackages.
*/
package db
