// Package migrations contains embedded SQL migrations for the SQLite store.
package migrations

import "embed"

//go:embed orders/*.sql
var OrdersFS embed.FS
