package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcdev12/pyroassist/go/internal/dbconfig"
	"github.com/mcdev12/pyroassist/go/internal/models"
	"github.com/mcdev12/pyroassist/go/internal/sheet"
)

// seedDB is the part of pgx.Tx the seed uses.
type seedDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type summary struct {
	total    int
	inserted int
	updated  int
	deleted  int
}

const (
	upsertLine = `
            INSERT INTO firing_lines (id, position, time_sec)
            VALUES ($1, $2, $3)
            ON CONFLICT (id) DO UPDATE
              SET position = EXCLUDED.position, time_sec = EXCLUDED.time_sec
            RETURNING (xmax = 0)
        `
	// An empty id list removes every line.
	deleteStale = `DELETE FROM firing_lines WHERE id <> ALL($1)`
)

// seed makes the stored sheet equal to snapshot: its lines are upserted,
// lines it does not name are deleted and its settings replace the stored
// ones. It stops at the first failure; the caller rolls back.
func seed(ctx context.Context, db seedDB, snapshot sheet.Snapshot) (summary, error) {
	lines := models.SortedCopy(snapshot.Lines)
	s := summary{total: len(lines)}

	ids := make([]string, 0, len(lines))
	for i, l := range lines {
		var isInsert bool
		if err := db.QueryRow(ctx, upsertLine, l.ID, i, l.Time).Scan(&isInsert); err != nil {
			return s, fmt.Errorf("upsert line %s: %w", l.ID, err)
		}
		if isInsert {
			s.inserted++
		} else {
			s.updated++
		}
		ids = append(ids, l.ID)
	}

	tag, err := db.Exec(ctx, deleteStale, ids)
	if err != nil {
		return s, fmt.Errorf("delete stale lines: %w", err)
	}
	s.deleted = int(tag.RowsAffected())

	raw, err := json.Marshal(snapshot.Settings)
	if err != nil {
		return s, fmt.Errorf("marshal settings: %w", err)
	}
	if _, err := db.Exec(ctx, sheet.Postgres.UpsertSettings, sheet.SettingsKey, string(raw)); err != nil {
		return s, fmt.Errorf("save settings: %w", err)
	}
	return s, nil
}

func main() {
	path := "configs/sheet.example.yaml"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	// 1) Load the sheet document
	snapshot, err := sheet.ReadDocument(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read sheet: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect using shared dbconfig
	ctx := context.Background()
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	for _, stmt := range sheet.Postgres.Schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			fmt.Fprintf(os.Stderr, "create schema: %v\n", err)
			os.Exit(1)
		}
	}

	// 3) Replace the stored sheet in one transaction
	tx, err := pool.Begin(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "begin transaction: %v\n", err)
		os.Exit(1)
	}
	s, err := seed(ctx, tx, snapshot)
	if err != nil {
		_ = tx.Rollback(ctx)
		fmt.Fprintf(os.Stderr, "seed failed, nothing written: %v\n", err)
		os.Exit(1)
	}
	if err := tx.Commit(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "commit: %v\n", err)
		os.Exit(1)
	}

	// 4) Print summary
	fmt.Printf(
		"Sheet seed complete: %d total, %d inserted, %d updated, %d deleted\n",
		s.total, s.inserted, s.updated, s.deleted,
	)
}
