// Package security summarizes the security posture of an engine
// configuration so operators can see at startup which protections are on.
//
// It only reads plain values and has no dependency on the engine itself.
package security
