package target

import (
	"bufio"
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/exec"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"

	"github.com/analogrithems/rustored/internal/config"
)

// pgDumpMagic is the header of a pg_dump custom-format archive.
var pgDumpMagic = []byte("PGDMP")

// dumpFormat distinguishes the accepted snapshot formats.
type dumpFormat int

const (
	formatUnknown dumpFormat = iota
	formatCustom             // pg_dump -Fc archive, restored with pg_restore
	formatPlainSQL           // plain SQL script, restored with psql
)

// Postgres restores snapshots into a PostgreSQL database. Custom-format
// archives go through pg_restore, plain SQL through psql; both tools must
// be on PATH.
type Postgres struct {
	cfg config.Postgres
	log zerolog.Logger

	execCommand func(ctx context.Context, name string, args ...string) ([]byte, error)
	openDB      func(dsn string) (*sql.DB, error)
}

// NewPostgres builds the relational adapter.
func NewPostgres(cfg config.Postgres, log zerolog.Logger) *Postgres {
	return &Postgres{
		cfg: cfg,
		log: log,
		execCommand: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).CombinedOutput()
		},
		openDB: func(dsn string) (*sql.DB, error) {
			return sql.Open("pgx", dsn)
		},
	}
}

func (p *Postgres) Name() string { return "PostgreSQL" }

// TestConnection pings the maintenance database with a bounded timeout.
func (p *Postgres) TestConnection(ctx context.Context) error {
	if err := p.cfg.Validate(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	db, err := p.openDB(p.cfg.DSN("postgres"))
	if err != nil {
		return fmt.Errorf("failed to open connection: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("cannot reach PostgreSQL at %s:%d: %w", p.cfg.Host, p.cfg.Port, err)
	}
	return nil
}

// Validate sniffs the artifact header: either a pg_dump custom archive or
// a plain SQL script. No target state is touched.
func (p *Postgres) Validate(_ context.Context, path string) error {
	_, err := sniffDumpFormat(path)
	return err
}

// Apply creates the destination database if needed and replays the dump
// into it. Progress is indeterminate: pg_restore and psql do not report
// row counts while running.
func (p *Postgres) Apply(ctx context.Context, path string, progress ProgressFunc) error {
	if err := p.cfg.Validate(); err != nil {
		return err
	}
	format, err := sniffDumpFormat(path)
	if err != nil {
		return err
	}

	if err := p.ensureDatabase(ctx); err != nil {
		return err
	}

	dsn := p.cfg.DSN("")
	var name string
	var args []string
	switch format {
	case formatCustom:
		name = "pg_restore"
		args = []string{"--no-owner", "--clean", "--if-exists", "--dbname", dsn, path}
	case formatPlainSQL:
		name = "psql"
		args = []string{dsn, "-v", "ON_ERROR_STOP=1", "-f", path}
	}

	report(progress, Progress{Total: -1, Detail: fmt.Sprintf("running %s into %s", name, p.cfg.Database)})
	p.log.Info().Str("tool", name).Str("database", p.cfg.Database).Msg("applying snapshot")

	out, err := p.execCommand(ctx, name, args...)
	if err != nil {
		return fmt.Errorf("%s failed: %w: %s", name, err, strings.TrimSpace(string(out)))
	}

	report(progress, Progress{Done: 1, Total: 1, Detail: "restore command completed"})
	return nil
}

// Verify connects to the restored database and checks that it contains at
// least one table.
func (p *Postgres) Verify(ctx context.Context) error {
	db, err := p.openDB(p.cfg.DSN(""))
	if err != nil {
		return fmt.Errorf("failed to open connection: %w", err)
	}
	defer db.Close()

	var tables int
	row := db.QueryRowContext(ctx,
		"SELECT count(*) FROM information_schema.tables WHERE table_schema NOT IN ('pg_catalog', 'information_schema')")
	if err := row.Scan(&tables); err != nil {
		return fmt.Errorf("cannot inspect database %s: %w", p.cfg.Database, err)
	}
	if tables == 0 {
		return fmt.Errorf("database %s contains no tables after restore", p.cfg.Database)
	}
	return nil
}

// ensureDatabase creates the destination database when it does not exist,
// working through the maintenance database.
func (p *Postgres) ensureDatabase(ctx context.Context) error {
	db, err := p.openDB(p.cfg.DSN("postgres"))
	if err != nil {
		return fmt.Errorf("failed to open connection: %w", err)
	}
	defer db.Close()

	var exists bool
	row := db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", p.cfg.Database)
	if err := row.Scan(&exists); err != nil {
		return fmt.Errorf("cannot check for database %s: %w", p.cfg.Database, err)
	}
	if exists {
		return nil
	}

	p.log.Info().Str("database", p.cfg.Database).Msg("creating database")
	quoted := `"` + strings.ReplaceAll(p.cfg.Database, `"`, `""`) + `"`
	if _, err := db.ExecContext(ctx, "CREATE DATABASE "+quoted); err != nil {
		return fmt.Errorf("failed to create database %s: %w", p.cfg.Database, err)
	}
	return nil
}

// sniffDumpFormat reads the artifact header and classifies it.
func sniffDumpFormat(path string) (dumpFormat, error) {
	f, err := os.Open(path)
	if err != nil {
		return formatUnknown, fmt.Errorf("cannot open snapshot: %w", err)
	}
	defer f.Close()

	header := make([]byte, len(pgDumpMagic))
	n, _ := f.Read(header)
	if n >= len(pgDumpMagic) && bytes.Equal(header[:len(pgDumpMagic)], pgDumpMagic) {
		return formatCustom, nil
	}

	// Plain SQL: the first non-blank, non-comment line should read like a
	// SQL statement.
	if _, err := f.Seek(0, 0); err != nil {
		return formatUnknown, err
	}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		upper := strings.ToUpper(line)
		for _, kw := range []string{"SET ", "CREATE ", "INSERT ", "COPY ", "ALTER ", "DROP ", "BEGIN", "\\"} {
			if strings.HasPrefix(upper, kw) {
				return formatPlainSQL, nil
			}
		}
		break
	}
	return formatUnknown, fmt.Errorf("snapshot is neither a pg_dump archive nor plain SQL")
}
