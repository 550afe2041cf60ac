// Package api provides the HTTP REST API server for Parkshare.
//
// It exposes registration, login, parking creation, membership joins, and
// parking listings, plus a health endpoint. Security-relevant events are
// recorded to a write-only audit trail.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Routes are grouped by authentication mode: public (login, health),
// optional auth (register, join_parking — anonymous callers are allowed but
// a presented token must still be valid), and obligatory auth (parking
// creation, listing, secret reads).
package api
