// Package nonce provides a single-use nonce store for replay protection,
// using a time-based cache with TTL expiry and a bounded entry count.
package nonce
