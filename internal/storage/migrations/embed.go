// Package migrations applies the embedded schema of the archive stores.
package migrations

import "embed"

// PostgresFS embeds the trade archive schema.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS embeds the candle archive schema.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
