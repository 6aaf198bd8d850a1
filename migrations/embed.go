// Package migrations ships the Postgres schema migrations inside the
// binary, so the server and the integration tests run goose against the
// same compiled-in SQL with no migration directory to deploy.
package migrations

import "embed"

// FS is the embedded migration set handed to goose.NewProvider.
//
//go:embed *.sql
var FS embed.FS
