// Package session implements the install handshake state machine.
//
// A session starts PENDING and moves to exactly one terminal status:
// APPROVED, DENIED, or EXPIRED. Expiry is derived lazily at read time;
// only approve and deny write a status change. Approval creates the app
// record and its initial permissions before marking the session.
package session
