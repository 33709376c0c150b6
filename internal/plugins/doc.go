// Package plugins provides the resource plugin system behind dispatch.
//
// # Overview
//
// A plugin describes one backend resource ("llm:groq", "mail:resend"):
// its supported actions, optional default models, per-resource
// enforcement constraints, and the handler that talks to the provider.
// The registry is built once at startup from a TOML manifest and is
// immutable afterward.
//
// # Dispatch Pipeline
//
// Router.Dispatch runs a fixed pipeline for each verified call:
//
//  1. Resolve the plugin by resource id
//  2. Check the action is supported
//  3. Authorize the app against the permission ledger
//  4. Evaluate enforcement constraints on the payload
//  5. Decrypt the provider credential
//  6. Invoke the handler under a bounded timeout
//
// Enforcement runs before any credential is touched, so a payload that
// violates constraints never causes a vault read. The decrypted
// credential is scoped to the handler call and is never logged.
//
// # Builtin Handlers
//
// The llm handler speaks the OpenAI-compatible chat completions API;
// the mail handler posts JSON send requests. Both attach the credential
// as a bearer header and honor context cancellation.
package plugins
