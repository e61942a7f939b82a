// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package filestore keeps questions, votes and the token registry in plain
JSON files, one directory per deployment:

	votes.json          array of votes (the ledger)
	voting-input.json   {"questions": [...]}
	user-tokens.json    array of wallet/token associations
	access-tokens.json  array of access tokens, seeded on first open

Vote balances may be written as JSON numbers or strings. Missing or empty
files read as empty collections.

Every operation holds one mutex for its whole read-modify-write, and each
file is replaced by writing a temp file and renaming it. A vote is appended
to the ledger before the question's cached results are saved; if the
process dies in between, the next load recomputes those results.
*/
package filestore
