// Package jwt issues and verifies short-lived access tokens.
//
// Tokens carry a fixed, versioned claim set: subject, session id, session
// epoch, issued-at and expiry. Verification is deterministic in a caller
// supplied instant and proceeds in a fixed order: signature and key lookup,
// then expiry, then claim structure. The codec never touches session storage.
package jwt
