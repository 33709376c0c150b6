// Package httpapi wires the gateway's HTTP JSON surface.
//
// # Routes
//
// Public (unauthenticated):
//
//	POST /v1/install           begin an install session
//	GET  /v1/install/{token}   poll session status
//	GET  /v1/discovery         usable resources projection
//
// Discovery carries no secret material, only resource ids, actions, and
// constraints, so apps can self-configure before their first signed call.
//
// App-facing (PoP-signed, see the pop package):
//
//	POST /v1/{type}/{provider}/{action}     dispatch an action
//
// Operator (JWT bearer): /admin/... routes for sessions, apps, secrets,
// permissions, and sweep.
//
// # Error Envelope
//
// Failures are JSON objects with a single "error" field. Authentication
// failures share one uniform 401 body regardless of cause; secret
// listings carry only masked previews.
package httpapi
