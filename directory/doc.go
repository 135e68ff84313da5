// Package directory holds user credential records: the email, password hash
// and stable subject id the session engine authenticates against.
//
// Two implementations are provided. Memory is for tests and single-process
// deployments; Postgres stores users in the table created by the embedded
// migrations.
package directory
