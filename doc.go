// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the runecheck API server.

runecheck runs yes/no governance questions for Bitcoin Rune holders. Votes
are weighted by the voter's token balance, read from an ord indexer when
the vote is cast. Dashboards are gated by minimum token balances.

# Starting the Server

With no configuration the server stores data in ./runecheck.db and reads
balances from the public ord endpoint:

	go run .

Or with flags:

	go run . -p 3318 -store postgres -d "postgres://..."

A .env file in the working directory is loaded before flags are parsed.

# Configuration

See package cliparse for every setting. The most common:

  - STORE_TYPE (-store): sqlite, postgres, redis or file
  - DATABASE_URL (-d): Postgres DSN or sqlite path
  - ORACLE_FILE (-oracle-file): fixed balances for local development
  - ADMIN_TOKEN, ADMIN_MIN_BALANCE: who may manage questions
  - PORT (-p): Server port (default: 3318)

# Background Work

Two goroutines run until shutdown: the sweeper completes questions whose
end time has passed, and the rate limiter forgets idle clients.

# Architecture

  - handlers: HTTP request handlers (questions, votes, tokens)
  - router: Route definitions using Go 1.22+ routing
  - middleware: CORS, logging, rate limiting, JSON helpers
  - models: Request/response types
  - voting: Question lifecycle, vote ledger and tally
  - registry: Access-token registry and balance checks
  - auth: Balance-gated admin and voter checks
  - oracle: ord balance lookups
  - db: SQL store (sqlite, postgres), db/redisstore, db/filestore
  - cliparse: Configuration parsing

See package documentation for each component.
*/
package main
