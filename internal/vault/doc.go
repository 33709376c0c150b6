// Package vault encrypts provider credentials at rest with AES-256-GCM
// under a process-wide master key. Plaintext exists only transiently at
// dispatch time; Mask produces the only loggable form of a credential.
package vault
