// Package codec provides the encoding helpers shared by the signing and
// verification paths: unpadded base64url, standard base64, and SHA-256
// body hashing.
package codec
