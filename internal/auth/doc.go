// Package auth provides request authentication for hearth-gateway.
//
// # Authentication Methods
//
// The package supports two authentication methods:
//
//   - PoP Signatures: Installed apps authenticate every request by signing a
//     canonical string (method, path, timestamp, nonce, body hash) with their
//     Ed25519 key. The gateway verifies the signature against the app's
//     registered public key; see the pop package for the wire format.
//
//   - JWT Tokens: The operator authenticates admin requests with a bearer JWT
//     signed with HS256 using the configured jwt_secret.
//
// # Middleware
//
// PoPMiddleware wraps app-facing routes and AdminMiddleware wraps the admin
// surface. Both attach an AuthContext to the request context, retrievable
// with FromContext. All authentication failures are surfaced to the caller
// as an identical 401 response; the reason appears only in the server log.
package auth
