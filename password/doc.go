// Package password hashes and verifies user credentials.
//
// New hashes are Argon2id in PHC string form. Legacy bcrypt hashes can still
// be verified through [Multi], which reports them as needing an upgrade so the
// caller can rehash after the next successful login.
//
// The package owns hashing only. It never stores credentials and never logs
// plaintext or hash material. Any error from Verify means "not verified".
package password
