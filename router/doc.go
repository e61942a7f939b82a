// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the runecheck API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(votes, registry, limiter, cfg)

# Endpoints

Health:

	GET /health

Questions (mutations require an admin wallet in the body):

	GET  /questions                   - List, filtered by ?token= and ?status=
	GET  /questions/current?token=    - Active question, else the latest completed
	GET  /questions/{id}              - One question
	POST /questions                   - Create question
	POST /update-status               - Complete, archive or keep active
	POST /archive-session             - Archive a completed question
	GET  /sessions/{token}            - Non-archived questions
	GET  /archived-sessions/{token}   - Archived questions

Voting:

	POST /vote                        - Cast a weighted vote (rate limited per IP)
	GET  /vote?questionId=            - Ballots with live tally
	GET  /vote/check                  - Has a wallet voted
	GET  /votes?walletAddress=        - Questions a wallet voted on
	GET  /results?questionId=         - Tally only

Token registry:

	GET    /tokens                    - Registered access tokens
	GET    /token-balance             - Wallet balance of a token
	POST   /access                    - Dashboard access check
	POST   /check-admin               - Admin check
	GET    /user-token                - Wallet's registered token
	POST   /user-tokens               - Register a token (admin)
	POST   /user-tokens/balance       - Change its required balance (admin)
	DELETE /user-tokens               - Remove it (admin)

CORS is applied around the whole mux in main.
*/
package router
