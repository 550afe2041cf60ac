// Package auth implements the identity core of Parkshare: credential
// hashing and verification (Argon2id), signed token issuance and
// validation (JWT, HMAC-SHA512), the bearer-token gate that resolves a
// request's Authorization header into a Caller, and the user account
// repository.
//
// The hashing and token functions are stateless and safe for concurrent
// use from multiple requests. Authorization decisions over parkings and
// memberships live in the parking package, which consumes the Caller
// produced here.
package auth
