// ABOUTME: Canonical encoding helpers shared by the PoP protocol and vault
// ABOUTME: Provides body hashing plus base64 and base64url encode/decode

package codec

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrDecode is returned when an encoded value cannot be decoded.
var ErrDecode = errors.New("malformed encoding")

// HashBody computes the PoP body hash: base64url(sha256(body)), unpadded.
// An empty body hashes the empty byte sequence.
func HashBody(body []byte) string {
	sum := sha256.Sum256(body)
	return Base64URLEncode(sum[:])
}

// Base64URLEncode encodes raw bytes using the URL-safe alphabet without padding.
func Base64URLEncode(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// Base64URLDecode decodes an unpadded URL-safe base64 string.
// Padded input is accepted as well since some signers emit it.
func Base64URLDecode(s string) ([]byte, error) {
	if data, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	data, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return data, nil
}

// Base64Encode encodes raw bytes using the standard alphabet with padding.
func Base64Encode(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// Base64Decode decodes a standard padded base64 string.
func Base64Decode(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return data, nil
}
