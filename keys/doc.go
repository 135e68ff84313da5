// Package keys holds access-token signing material.
//
// A [Set] is an immutable, ordered list of keys. The first key signs; every
// key in the set verifies, which gives a grace window during rotation: publish
// a new key at the front and keep the previous one behind it until tokens
// signed with it have expired.
//
// Sets come from a [Source]: static keys, PEM files on disk, or a JSON secret
// in AWS Secrets Manager.
package keys
