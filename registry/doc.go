// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package registry manages the access-token registry: which tokens unlock a
dashboard, the balance each one requires, and the tokens wallets register
for themselves.

# Access Checks

CheckAccess and TokenBalance compare an oracle balance to a token's
requiredBalance. Unknown token names are validation errors. Amounts are
formatted with thousands separators.

# User Tokens

An admin wallet may register one token. The association and the new
access token are written together, and the dashboard path is derived from
the name:

	DashboardPath("DOG•GO•TO•THE•MOON") // "/dashboards/dog-go-to-the-moon"

Every store starts from DefaultAccessTokens.
*/
package registry
