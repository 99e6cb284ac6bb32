package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"sort"
	"strings"

	"go.uber.org/zap"

	chstore "stonkminer/internal/storage/clickhouse"
	"stonkminer/internal/storage/postgres"
)

// RunPostgres applies every embedded PostgreSQL file in lexical order.
// Files must be idempotent.
func RunPostgres(ctx context.Context, pool *postgres.Pool, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	return forEachFile(PostgresFS, "postgres", func(name, body string) error {
		if strings.TrimSpace(body) == "" {
			return nil
		}
		if _, err := pool.Exec(ctx, body); err != nil {
			return err
		}
		logger.Info("postgres migration applied", zap.String("file", name))
		return nil
	})
}

// RunClickhouse creates the DSN's database if needed, applies every embedded
// ClickHouse file and returns a connection to that database.
func RunClickhouse(ctx context.Context, dsn string, logger *zap.Logger) (*chstore.Conn, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dbName, err := databaseFromDSN(dsn)
	if err != nil {
		return nil, err
	}

	admin, err := chstore.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse admin: %w", err)
	}
	createErr := admin.Exec(ctx, "CREATE DATABASE IF NOT EXISTS "+dbName)
	admin.Close()
	if createErr != nil {
		return nil, fmt.Errorf("create database %s: %w", dbName, createErr)
	}

	conn, err := chstore.NewConnWithDatabase(ctx, dsn, dbName)
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse db: %w", err)
	}

	err = forEachFile(ClickhouseFS, "clickhouse", func(name, body string) error {
		// The native protocol takes one statement per Exec.
		for _, stmt := range splitStatements(body) {
			if err := conn.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		logger.Info("clickhouse migration applied", zap.String("file", name))
		return nil
	})
	if err != nil {
		conn.Close()
		return nil, err
	}

	return conn, nil
}

func forEachFile(fsys fs.FS, dir string, apply func(name, body string) error) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("read embedded %s migrations: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		data, err := fs.ReadFile(fsys, dir+"/"+file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		if err := apply(file, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
	}
	return nil
}

// splitStatements drops "--" comment lines and splits on semicolons.
// Migration files must not put semicolons inside string literals.
func splitStatements(input string) []string {
	var kept []string
	for _, line := range strings.Split(input, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		kept = append(kept, line)
	}

	var stmts []string
	for _, part := range strings.Split(strings.Join(kept, "\n"), ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

func databaseFromDSN(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	db := strings.TrimPrefix(u.Path, "/")
	if db == "" {
		return "", fmt.Errorf("clickhouse dsn missing database")
	}
	return db, nil
}
