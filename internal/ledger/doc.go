// Package ledger answers permission questions for verified apps: whether
// an app may invoke an action on a resource, whether an app's grants have
// all expired, and sweeping fully-expired apps out of the store.
package ledger
