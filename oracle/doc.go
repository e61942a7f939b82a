// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package oracle reads wallet token balances from an ord indexer.

The indexer is reached with a JSON-RPC call:

	POST https://mainnet.sandshrew.io/v2/lasereyes
	{"jsonrpc": "2.0", "method": "ord_address", "params": ["<address>"], "id": 1}

and answers with result.runes_balances, a list of [name, balance, symbol]
triples. Client turns those into RuneBalance values.

Balances arrive as strings such as "2,000,000". ParseBalance strips the
separators and never fails; anything unreadable counts as zero.

Static is an in-memory Oracle for development and tests, loaded from a
JSON address book with LoadStatic.
*/
package oracle
