package sheet

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"

	"github.com/mcdev12/pyroassist/go/internal/models"
	"github.com/mcdev12/pyroassist/go/internal/sqlutil"
)

// SettingsKey names the single row of sheet_settings.
const SettingsKey = "default"

// Dialect holds the statements that differ between SQL servers. Statements
// are written with $n placeholders and rebound for servers that use "?".
type Dialect struct {
	Name           string
	Schema         []string
	SelectSettings string
	UpsertSettings string
	positional     bool
}

var (
	// Postgres is the dialect for lib/pq.
	Postgres = Dialect{
		Name: "postgres",
		Schema: []string{
			`CREATE TABLE IF NOT EXISTS firing_lines (
				id TEXT PRIMARY KEY,
				position INTEGER NOT NULL,
				time_sec DOUBLE PRECISION NOT NULL CHECK (time_sec >= 0)
			)`,
			`CREATE TABLE IF NOT EXISTS sheet_settings (
				key TEXT PRIMARY KEY,
				settings JSONB,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,
		},
		SelectSettings: `SELECT settings FROM sheet_settings WHERE key = $1`,
		UpsertSettings: `INSERT INTO sheet_settings (key, settings, updated_at)
			VALUES ($1, $2, now())
			ON CONFLICT (key) DO UPDATE SET settings = EXCLUDED.settings, updated_at = now()`,
	}

	// MySQL is the dialect for go-sql-driver/mysql.
	MySQL = Dialect{
		Name: "mysql",
		Schema: []string{
			`CREATE TABLE IF NOT EXISTS firing_lines (
				id VARCHAR(64) PRIMARY KEY,
				position INT NOT NULL,
				time_sec DOUBLE NOT NULL
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS sheet_settings (
				` + "`key`" + ` VARCHAR(64) PRIMARY KEY,
				settings JSON,
				updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		},
		SelectSettings: "SELECT settings FROM sheet_settings WHERE `key` = $1",
		UpsertSettings: "INSERT INTO sheet_settings (`key`, settings) VALUES ($1, $2) " +
			"ON DUPLICATE KEY UPDATE settings = VALUES(settings)",
		positional: true,
	}
)

// Bind rewrites $n placeholders for the dialect.
func (d Dialect) Bind(query string) string {
	if !d.positional {
		return query
	}
	var b strings.Builder
	for i := 0; i < len(query); i++ {
		if query[i] == '$' && i+1 < len(query) && query[i+1] >= '0' && query[i+1] <= '9' {
			b.WriteByte('?')
			for i+1 < len(query) && query[i+1] >= '0' && query[i+1] <= '9' {
				i++
			}
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Queries runs the sheet statements against a connection or a transaction.
type Queries struct {
	db      DBTX
	dialect Dialect
}

func newQueries(db DBTX, dialect Dialect) *Queries {
	return &Queries{db: db, dialect: dialect}
}

func (q *Queries) ListLines(ctx context.Context) ([]models.FiringLine, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, time_sec FROM firing_lines ORDER BY position, time_sec`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := []models.FiringLine{}
	for rows.Next() {
		var l models.FiringLine
		if err := rows.Scan(&l.ID, &l.Time); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (q *Queries) DeleteAllLines(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM firing_lines`)
	return err
}

func (q *Queries) InsertLine(ctx context.Context, position int, line models.FiringLine) error {
	_, err := q.db.ExecContext(ctx,
		q.dialect.Bind(`INSERT INTO firing_lines (id, position, time_sec) VALUES ($1, $2, $3)`),
		line.ID, position, line.Time)
	return err
}

func (q *Queries) GetSettings(ctx context.Context) (pqtype.NullRawMessage, error) {
	var raw pqtype.NullRawMessage
	err := q.db.QueryRowContext(ctx, q.dialect.Bind(q.dialect.SelectSettings), SettingsKey).Scan(&raw)
	return raw, err
}

func (q *Queries) UpsertSettings(ctx context.Context, raw pqtype.NullRawMessage) error {
	_, err := q.db.ExecContext(ctx, q.dialect.Bind(q.dialect.UpsertSettings), SettingsKey, raw)
	return err
}

// SQLRepository stores the sheet in a SQL database.
type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
	queries *Queries
}

// NewPostgresRepository creates a repository over a lib/pq connection.
func NewPostgresRepository(db *sql.DB) *SQLRepository {
	return newSQLRepository(db, Postgres)
}

// NewMySQLRepository creates a repository over a go-sql-driver/mysql connection.
func NewMySQLRepository(db *sql.DB) *SQLRepository {
	return newSQLRepository(db, MySQL)
}

func newSQLRepository(db *sql.DB, dialect Dialect) *SQLRepository {
	return &SQLRepository{
		db:      db,
		dialect: dialect,
		queries: newQueries(db, dialect),
	}
}

// EnsureSchema creates the sheet tables when they are missing.
func (r *SQLRepository) EnsureSchema(ctx context.Context) error {
	if err := sqlutil.ExecAll(ctx, r.db, r.dialect.Schema...); err != nil {
		return fmt.Errorf("failed to create %s schema: %w", r.dialect.Name, err)
	}
	return nil
}

func (r *SQLRepository) LoadLines(ctx context.Context) ([]models.FiringLine, error) {
	lines, err := r.queries.ListLines(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list firing lines: %w", err)
	}
	return lines, nil
}

// SaveLines replaces the whole sheet in one transaction.
func (r *SQLRepository) SaveLines(ctx context.Context, lines []models.FiringLine) error {
	err := sqlutil.Run(ctx, r.db,
		func(tx *sql.Tx) *Queries { return newQueries(tx, r.dialect) },
		func(q *Queries) error {
			if err := q.DeleteAllLines(ctx); err != nil {
				return err
			}
			for i, l := range lines {
				if err := q.InsertLine(ctx, i, l); err != nil {
					return fmt.Errorf("line %s: %w", l.ID, err)
				}
			}
			return nil
		})
	if err != nil {
		return fmt.Errorf("failed to save firing lines: %w", err)
	}
	return nil
}

func (r *SQLRepository) LoadSettings(ctx context.Context) (models.Settings, error) {
	raw, err := r.queries.GetSettings(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Settings{}, nil
	}
	if err != nil {
		return models.Settings{}, fmt.Errorf("failed to get settings: %w", err)
	}
	if !raw.Valid || len(raw.RawMessage) == 0 {
		return models.Settings{}, nil
	}

	var settings models.Settings
	if err := json.Unmarshal(raw.RawMessage, &settings); err != nil {
		return models.Settings{}, fmt.Errorf("failed to decode settings: %w", err)
	}
	return settings, nil
}

func (r *SQLRepository) SaveSettings(ctx context.Context, settings models.Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	raw := pqtype.NullRawMessage{RawMessage: data, Valid: true}
	if err := r.queries.UpsertSettings(ctx, raw); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

var _ Repository = (*SQLRepository)(nil)
