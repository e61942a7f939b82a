// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth makes balance-gated authorization decisions.

There are no passwords or sessions. A wallet is authorized by what it
holds, as reported by an oracle.Oracle:

	gate := auth.NewGate(client, "RUNE•MOON•DRAGON", 2000000)

# Access

HasBalance checks a holding against a dashboard's required balance:

	held, ok := gate.HasBalance(ctx, address, "UNCOMMON•GOODS", 5)

# Admins

An admin is a wallet holding at least the configured amount of the admin
token. RequireAdmin returns voting.ErrUnauthorized for a blank address and
voting.ErrForbidden otherwise.

# Voting Weight

VotingWeight returns the wallet's holding of a question's token. A wallet
that does not hold the token at all gets voting.ErrForbidden.

Gate satisfies voting.WeightSource and voting.AdminChecker.

# Failure Mode

If the oracle fails, the error is logged and the wallet is treated as
holding nothing. Every check fails closed.

# IP Hashing

For logging client addresses without keeping them:

	hash := auth.HashIP(ipAddress, salt)
*/
package auth
