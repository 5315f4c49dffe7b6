package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

const (
	cmdUp      = "up"
	cmdDown    = "down"
	cmdVersion = "version"

	usage = "usage: go run ./cmd/migrate [up|down|version] [steps]"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var migrationFileRE = regexp.MustCompile(`^migrations/([0-9]+)_([a-z0-9_]+)\.(up|down)\.sql$`)

// migrationDB is the subset of *pgxpool.Pool the migrator needs.
type migrationDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

var (
	loadEnvFunc = godotenv.Load
	openDB      = func(ctx context.Context, dsn string) (migrationDB, error) {
		return pgxpool.New(ctx, dsn)
	}
	exitFunc = os.Exit
)

type migration struct {
	Version int64
	Name    string
	UpSQL   string
	DownSQL string
}

func main() {
	_ = loadEnvFunc()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := run(context.Background(), logger, os.Args[1:], os.Getenv("DATABASE_URL")); err != nil {
		logger.Error("migrate failed", slog.Any("err", err))
		exitFunc(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, args []string, dsn string) error {
	if len(args) < 1 {
		return errors.New(usage)
	}
	cmd := args[0]
	if cmd != cmdUp && cmd != cmdDown && cmd != cmdVersion {
		return fmt.Errorf("unknown command %q. %s", cmd, usage)
	}
	steps := 1
	if cmd == cmdDown && len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid down steps: %q", args[1])
		}
		steps = n
	}
	if strings.TrimSpace(dsn) == "" {
		return errors.New("DATABASE_URL is required")
	}

	migrations, err := loadMigrations(migrationsFS)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	db, err := openDB(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer db.Close()

	if err := ensureMigrationTable(ctx, db); err != nil {
		return fmt.Errorf("ensure schema_migrations table: %w", err)
	}

	switch cmd {
	case cmdUp:
		applied, err := applyUp(ctx, db, migrations)
		if err != nil {
			return fmt.Errorf("apply migrations up: %w", err)
		}
		logger.Info("migrations up complete", slog.Int("applied", applied))
	case cmdDown:
		rolledBack, err := applyDown(ctx, db, migrations, steps)
		if err != nil {
			return fmt.Errorf("apply migrations down: %w", err)
		}
		logger.Info("migrations down complete", slog.Int("rolled_back", rolledBack))
	case cmdVersion:
		version, name, err := currentVersion(ctx, db)
		if err != nil {
			return fmt.Errorf("read current version: %w", err)
		}
		if version == 0 {
			logger.Info("no migrations applied")
			return nil
		}
		logger.Info("current version", slog.Int64("version", version), slog.String("name", name))
	}
	return nil
}

func ensureMigrationTable(ctx context.Context, db migrationDB) error {
	_, err := db.Exec(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version     BIGINT PRIMARY KEY,
    name        TEXT NOT NULL,
    applied_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`)
	return err
}

func loadMigrations(fsys fs.FS) ([]migration, error) {
	paths, err := fs.Glob(fsys, "migrations/*.sql")
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, errors.New("no migration files found")
	}

	index := make(map[int64]*migration)
	for _, p := range paths {
		matches := migrationFileRE.FindStringSubmatch(p)
		if matches == nil {
			return nil, fmt.Errorf("invalid migration filename: %s", p)
		}

		version, err := strconv.ParseInt(matches[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse version in %s: %w", p, err)
		}
		name, direction := matches[2], matches[3]

		sqlBytes, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", p, err)
		}
		sqlText := strings.TrimSpace(string(sqlBytes))
		if sqlText == "" {
			return nil, fmt.Errorf("empty migration file: %s", p)
		}

		m, ok := index[version]
		if !ok {
			m = &migration{Version: version, Name: name}
			index[version] = m
		} else if m.Name != name {
			return nil, fmt.Errorf("conflicting names for version %d: %s vs %s", version, m.Name, name)
		}

		target := &m.UpSQL
		if direction == "down" {
			target = &m.DownSQL
		}
		if *target != "" {
			return nil, fmt.Errorf("duplicate %s migration for version %d", direction, version)
		}
		*target = sqlText
	}

	migrations := make([]migration, 0, len(index))
	for _, m := range index {
		if m.UpSQL == "" || m.DownSQL == "" {
			return nil, fmt.Errorf("migration version %d must include both up and down files", m.Version)
		}
		migrations = append(migrations, *m)
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}

func queryVersions(ctx context.Context, db migrationDB, sql string, args ...any) ([]int64, error) {
	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int64
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		versions = append(versions, version)
	}
	return versions, rows.Err()
}

// inTx runs the migration body and its bookkeeping statement atomically.
func inTx(ctx context.Context, db migrationDB, body string, bookkeeping string, version int64, args ...any) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, body); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("version %d failed: %w", version, err)
	}
	if _, err := tx.Exec(ctx, bookkeeping, args...); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("record version %d failed: %w", version, err)
	}
	return tx.Commit(ctx)
}

func applyUp(ctx context.Context, db migrationDB, migrations []migration) (int, error) {
	applied, err := queryVersions(ctx, db, `SELECT version FROM schema_migrations`)
	if err != nil {
		return 0, err
	}
	appliedSet := make(map[int64]struct{}, len(applied))
	for _, v := range applied {
		appliedSet[v] = struct{}{}
	}

	count := 0
	for _, m := range migrations {
		if _, ok := appliedSet[m.Version]; ok {
			continue
		}
		err := inTx(ctx, db, m.UpSQL,
			`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.Version, m.Version, m.Name)
		if err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func applyDown(ctx context.Context, db migrationDB, migrations []migration, steps int) (int, error) {
	if steps <= 0 {
		return 0, fmt.Errorf("steps must be > 0")
	}

	byVersion := make(map[int64]migration, len(migrations))
	for _, m := range migrations {
		byVersion[m.Version] = m
	}

	versions, err := queryVersions(ctx, db, `SELECT version FROM schema_migrations ORDER BY version DESC LIMIT $1`, steps)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, version := range versions {
		m, ok := byVersion[version]
		if !ok {
			return count, fmt.Errorf("cannot find migration source for applied version %d", version)
		}
		err := inTx(ctx, db, m.DownSQL,
			`DELETE FROM schema_migrations WHERE version = $1`, m.Version, m.Version)
		if err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func currentVersion(ctx context.Context, db migrationDB) (int64, string, error) {
	var version int64
	var name string
	err := db.QueryRow(ctx, `SELECT version, name FROM schema_migrations ORDER BY version DESC LIMIT 1`).Scan(&version, &name)
	if err == nil {
		return version, name, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, "", nil
	}
	return 0, "", err
}
