// Package pop implements proof-of-possession request verification.
//
// # Wire Format
//
// An app signs every request with its registered Ed25519 key. The
// signature covers a canonical string built from fixed request fields:
//
//	"v1\n" + METHOD + "\n" + PATH_WITH_QUERY + "\n" + APP_ID + "\n" +
//	TS + "\n" + NONCE + "\n" + BODYHASH + "\n"
//
// where BODYHASH is the unpadded base64url SHA-256 of the request body.
// The request carries the fields in headers: x-pop-v, x-app-id, x-ts,
// x-nonce, x-sig.
//
// # Verification Order
//
// Verify checks the protocol version, timestamp window, body hash, app
// record (must exist and be ACTIVE), and signature before recording the
// nonce. A request that fails any earlier check does not consume its
// nonce, so a client can safely retry after fixing a clock problem.
//
// # Replay Protection
//
// Nonces are held for the timestamp window plus one second of
// integer-truncation slack, so they outlive every request that could
// still carry them. A replayed (app, nonce) pair inside the window
// fails with ErrReplayedNonce; outside the window the timestamp check
// rejects the request first.
package pop
