// Package sqlitefts implements the lexical search side of hybrid retrieval
// on a SQLite FTS5 index. The schema is created idempotently on open, with
// triggers keeping the virtual table in sync with the documents table.
package sqlitefts

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/fairplaylabs/adviser/core"
)

// Searcher is a core.LexicalSearcher over a SQLite FTS5 index.
type Searcher struct {
	db *sql.DB
}

// Open opens (or creates) the index database at path and ensures the
// schema exists.
func Open(path string) (*Searcher, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening lexical index: %w", err)
	}
	s := &Searcher{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating lexical schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Searcher) Close() error { return s.db.Close() }

func (s *Searcher) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			content TEXT NOT NULL,
			title TEXT,
			organization TEXT,
			domain TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_org ON documents(organization)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='documents_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}
	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE documents_fts USING fts5(content, content=documents, content_rowid=rowid)`,
			`CREATE TRIGGER documents_ai AFTER INSERT ON documents BEGIN
				INSERT INTO documents_fts(rowid, content) VALUES (new.rowid, new.content);
			END`,
			`CREATE TRIGGER documents_ad AFTER DELETE ON documents BEGIN
				INSERT INTO documents_fts(documents_fts, rowid, content) VALUES('delete', old.rowid, old.content);
			END`,
			`CREATE TRIGGER documents_au AFTER UPDATE ON documents BEGIN
				INSERT INTO documents_fts(documents_fts, rowid, content) VALUES('delete', old.rowid, old.content);
				INSERT INTO documents_fts(rowid, content) VALUES (new.rowid, new.content);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}
	return nil
}

// Add indexes one document chunk. Re-adding an id replaces the previous
// content.
func (s *Searcher) Add(ctx context.Context, id, content, title, organization string, domain core.Domain) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, content, title, organization, domain)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			content=excluded.content, title=excluded.title,
			organization=excluded.organization, domain=excluded.domain`,
		id, content, title, organization, string(domain))
	if err != nil {
		return fmt.Errorf("indexing document %s: %w", id, err)
	}
	return nil
}

// Search implements core.LexicalSearcher using FTS5 bm25 ranking. The
// returned Score is negated bm25, so higher means more relevant.
func (s *Searcher) Search(ctx context.Context, query string, k int, filter core.SearchFilter) ([]core.LexicalMatch, error) {
	if k <= 0 {
		k = 5
	}
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}

	var (
		where []string
		args  []any
	)
	where = append(where, "documents_fts MATCH ?")
	args = append(args, match)

	if len(filter.Organizations) > 0 {
		placeholders := strings.Repeat("?,", len(filter.Organizations))
		where = append(where, fmt.Sprintf("d.organization IN (%s)", placeholders[:len(placeholders)-1]))
		for _, org := range filter.Organizations {
			args = append(args, org)
		}
	}
	if filter.Domain != "" && filter.Domain != core.DomainUnknown {
		where = append(where, "d.domain = ?")
		args = append(args, string(filter.Domain))
	}
	args = append(args, k)

	q := fmt.Sprintf(
		`SELECT d.id, d.content, d.title, d.organization, d.domain, bm25(documents_fts) AS rank
		 FROM documents_fts
		 JOIN documents d ON d.rowid = documents_fts.rowid
		 WHERE %s
		 ORDER BY rank
		 LIMIT ?`, strings.Join(where, " AND "))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, core.Transient(fmt.Errorf("lexical search: %w", err))
	}
	defer rows.Close()

	var matches []core.LexicalMatch
	for rows.Next() {
		var (
			m          core.LexicalMatch
			title, org string
			domain     string
			rank       float64
		)
		if err := rows.Scan(&m.ID, &m.Content, &title, &org, &domain, &rank); err != nil {
			return nil, fmt.Errorf("scanning lexical match: %w", err)
		}
		m.Score = -rank // bm25 returns lower-is-better
		m.Metadata = map[string]any{"title": title, "organization": org, "domain": domain}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// ftsQuery strips characters FTS5 treats as syntax and ORs the remaining
// terms so partial matches still rank.
func ftsQuery(query string) string {
	fields := strings.FieldsFunc(query, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	})
	if len(fields) == 0 {
		return ""
	}
	return strings.Join(fields, " OR ")
}
