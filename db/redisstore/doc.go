// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package redisstore implements the question, vote and token registry stores
on Redis.

# Keys

All keys share a prefix (DefaultPrefix unless configured):

	questions                       set of question IDs
	question:<id>                   hash of question fields
	question:<id>:votes             hash wallet -> msgpack vote
	wallet:<address>:votes          set of question IDs the wallet voted on
	access_tokens                   hash name -> msgpack access token
	token_associations              hash wallet -> msgpack association

Question hashes are decoded with mapstructure using weakly typed input, so
counters and flags come back from their string form.

# Transactions

Every unit of work WATCHes the keys it reads and commits with MULTI/EXEC.
When another client wins the race the transaction is retried.
*/
package redisstore
