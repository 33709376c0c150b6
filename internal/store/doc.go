// Package store provides persistent storage for the gateway using SQLite.
//
// # Data Models
//
//   - App: a registered caller with its Ed25519 public key and status
//   - Permission: a scoped, optionally expiring grant on one resource
//   - ResourceSecret: an encrypted provider credential (ciphertext + IV;
//     the store never sees plaintext)
//   - InstallSession: the short-lived approval handshake token
//
// # Conventions
//
// The Store interface is implemented by SQLiteStore. Rows use uuid
// primary keys and RFC3339 UTC time columns. Lookups that find nothing
// return ErrNotFound; uniqueness violations return ErrDuplicateSecret;
// conditional writes that lose to a concurrent update return
// ErrConflict. Deleting an app cascades to its permissions and
// app-scoped secrets.
package store
