package database

import (
	"github.com/walletd-io/walletd/internal/database/migration_20240115_0000"
	"github.com/walletd-io/walletd/internal/database/migrations"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var tracer trace.Tracer

func init() {
	tracer = otel.Tracer("github.com/walletd-io/walletd/internal/database")
}

// Migrations returns the full, ordered schema migration list.
func Migrations() *migrations.Migrations {
	m := migrations.New()
	m.Migrations = append(m.Migrations,
		migration_20240115_0000.Migrate(),
	)
	return m
}
