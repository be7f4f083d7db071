// Package sqlite persists canonical vulnerabilities to a per-source
// SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed" // embed the schema
	"encoding/json"
	"fmt"
	"net/url"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // register the sqlite driver

	"github.com/quay/vulndb"
	"github.com/quay/vulndb/driver"
)

//go:embed schema.sql
var schema string

// Store is a handle to one source's SQLite database.
//
// The returned Store must have its Close method called, or the process
// may panic.
type Store struct {
	db  *sql.DB
	src driver.Source
	// run is the id of the import run this handle records rows
	// against.
	run string
}

var _ driver.Store = (*Store)(nil)

// Open creates or opens the database for the named source under dir.
func Open(ctx context.Context, dir string, src driver.Source) (*Store, error) {
	n := strings.ToLower(src.Name) + ".sqlite"
	u := url.URL{
		Scheme: `file`,
		Opaque: filepath.Join(dir, n),
		RawQuery: url.Values{
			"_pragma": {
				"foreign_keys(1)",
				"journal_mode(wal)",
			},
		}.Encode(),
	}
	db, err := sql.Open(`sqlite`, u.String())
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: schema error: %w", err)
	}

	s := Store{
		db:  db,
		src: src,
		run: uuid.New().String(),
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO source (name, description, url) VALUES (?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET description = excluded.description, url = excluded.url;`,
		src.Name, src.Description, src.URL); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: recording source: %w", err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO import_run (id, source, started) VALUES (?, ?, ?);`,
		s.run, src.Name, time.Now().UTC().Format(time.RFC3339)); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: recording import run: %w", err)
	}

	_, file, line, _ := runtime.Caller(1)
	runtime.SetFinalizer(&s, func(s *Store) {
		panic(fmt.Sprintf("%s:%d: store not closed", file, line))
	})
	return &s, nil
}

// Close releases held resources.
func (s *Store) Close() error {
	runtime.SetFinalizer(s, nil)
	return s.db.Close()
}

// StoreVulnerabilities implements driver.Store.
//
// Rows are upserted by vulnerability id, so re-importing an unchanged
// feed is idempotent.
func (s *Store) StoreVulnerabilities(ctx context.Context, vulns []*vulndb.Vulnerability) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO vuln (id, run_id, aliases, description, matching_criteria, published, modified, withdrawn)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			run_id = excluded.run_id,
			aliases = excluded.aliases,
			description = excluded.description,
			matching_criteria = excluded.matching_criteria,
			published = excluded.published,
			modified = excluded.modified,
			withdrawn = excluded.withdrawn;`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, v := range vulns {
		aliases, err := json.Marshal(v.Aliases)
		if err != nil {
			return err
		}
		var criteria []byte
		if v.MatchingCriteria != nil {
			criteria, err = json.Marshal(v.MatchingCriteria)
			if err != nil {
				return err
			}
		}
		if _, err := stmt.ExecContext(ctx,
			v.ID,
			s.run,
			string(aliases),
			v.Description,
			nullStr(criteria),
			nullTime(v.Published),
			nullTime(v.Modified),
			nullTime(v.Withdrawn),
		); err != nil {
			return fmt.Errorf("sqlite: storing %q: %w", v.ID, err)
		}
	}
	return tx.Commit()
}

// Vulnerability reads back the stored record for the given id.
func (s *Store) Vulnerability(ctx context.Context, id string) (*vulndb.Vulnerability, error) {
	var (
		v        vulndb.Vulnerability
		aliases  string
		criteria sql.NullString
		pub, mod sql.NullString
		wd       sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, aliases, description, matching_criteria, published, modified, withdrawn FROM vuln WHERE id = ?;`, id).
		Scan(&v.ID, &aliases, &v.Description, &criteria, &pub, &mod, &wd)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(aliases), &v.Aliases); err != nil {
		return nil, err
	}
	if criteria.Valid {
		if err := json.Unmarshal([]byte(criteria.String), &v.MatchingCriteria); err != nil {
			return nil, err
		}
	}
	for _, f := range []struct {
		col sql.NullString
		dst *time.Time
	}{
		{pub, &v.Published},
		{mod, &v.Modified},
		{wd, &v.Withdrawn},
	} {
		if !f.col.Valid {
			continue
		}
		t, err := time.Parse(time.RFC3339, f.col.String)
		if err != nil {
			return nil, err
		}
		*f.dst = t
	}
	return &v, nil
}

func nullStr(b []byte) sql.NullString {
	if b == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}
