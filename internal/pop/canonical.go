// ABOUTME: Canonical string construction for the PoP signature protocol
// ABOUTME: The byte layout is frozen; any change invalidates all existing signatures

package pop

import (
	"strings"

	"github.com/2389/hearth-gateway/internal/codec"
)

// Protocol constants. canonicalVersion is the literal that leads every
// canonical string; ProtocolVersion is the value carried in HeaderVersion.
const (
	ProtocolVersion  = "1"
	canonicalVersion = "v1"
)

// PoP header names carried on every authenticated call.
const (
	HeaderVersion   = "x-pop-v"
	HeaderAppID     = "x-app-id"
	HeaderTimestamp = "x-ts"
	HeaderNonce     = "x-nonce"
	HeaderSignature = "x-sig"
)

// CanonicalString builds the exact byte sequence that is signed and
// verified: the version literal, uppercased method, path with query as
// received, app id, timestamp, nonce, and body hash, newline-joined
// with a trailing newline. Reproduction must be byte-exact.
func CanonicalString(method, pathWithQuery, appID, timestamp, nonce, bodyHash string) string {
	var b strings.Builder
	for _, segment := range []string{
		canonicalVersion,
		strings.ToUpper(method),
		pathWithQuery,
		appID,
		timestamp,
		nonce,
		bodyHash,
	} {
		b.WriteString(segment)
		b.WriteByte('\n')
	}
	return b.String()
}

// CanonicalStringForBody is CanonicalString with the body hash computed
// from the raw request body bytes.
func CanonicalStringForBody(method, pathWithQuery, appID, timestamp, nonce string, body []byte) string {
	return CanonicalString(method, pathWithQuery, appID, timestamp, nonce, codec.HashBody(body))
}
