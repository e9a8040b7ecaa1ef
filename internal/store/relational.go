package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported relational drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// maxRelationalTerms caps how many query words become LIKE clauses.
const maxRelationalTerms = 8

// RelationalConfig configures the SQL catalog table.
type RelationalConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string

	// DSN is the driver data source, e.g. ":memory:" or a postgres URL.
	DSN string

	// ConnectTimeout bounds the retried startup ping (default: 10s).
	ConnectTimeout time.Duration
}

// RelationalStore keeps catalog documents in one SQL table and answers
// substring queries over titles and descriptions.
type RelationalStore struct {
	db     *sql.DB
	driver string
	logger *slog.Logger
}

// OpenRelational opens the database, pings it with exponential backoff
// and creates the schema.
func OpenRelational(ctx context.Context, cfg RelationalConfig, logger *slog.Logger) (*RelationalStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported relational driver %q", cfg.Driver)
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.Driver == DriverSQLite {
		// one connection keeps an in-memory database alive and serializes writers
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	attempt := 0
	err = backoff.Retry(func() error {
		attempt++
		if err := db.PingContext(pingCtx); err != nil {
			logger.Warn("relational_ping_failed",
				slog.String("driver", cfg.Driver),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
			return err
		}
		return nil
	}, backoff.WithContext(backoff.NewExponentialBackOff(), pingCtx))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s after %d attempts: %w", cfg.Driver, attempt, err)
	}

	s := &RelationalStore{db: db, driver: cfg.Driver, logger: logger}
	if err := s.createSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *RelationalStore) createSchema(ctx context.Context) error {
	const schema = `CREATE TABLE IF NOT EXISTS entities (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL DEFAULT '',
	framework TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	tags TEXT NOT NULL DEFAULT '',
	popularity DOUBLE PRECISION NOT NULL DEFAULT 0,
	is_free INTEGER NOT NULL DEFAULT 0,
	is_premium INTEGER NOT NULL DEFAULT 0,
	has_typescript INTEGER NOT NULL DEFAULT 0
)`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// placeholder returns the n-th (1-based) bind parameter for the driver.
func (s *RelationalStore) placeholder(n int) string {
	if s.driver == DriverPostgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// Upsert inserts or replaces documents in one transaction.
func (s *RelationalStore) Upsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	cols := []string{"id", "type", "title", "description", "content", "framework",
		"category", "tags", "popularity", "is_free", "is_premium", "has_typescript"}
	params := make([]string, len(cols))
	updates := make([]string, 0, len(cols)-1)
	for i, c := range cols {
		params[i] = s.placeholder(i + 1)
		if c != "id" {
			updates = append(updates, c+" = excluded."+c)
		}
	}
	stmt := fmt.Sprintf("INSERT INTO entities (%s) VALUES (%s) ON CONFLICT (id) DO UPDATE SET %s",
		strings.Join(cols, ", "), strings.Join(params, ", "), strings.Join(updates, ", "))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	prepared, err := tx.PrepareContext(ctx, stmt)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer func() { _ = prepared.Close() }()

	for _, d := range docs {
		_, err := prepared.ExecContext(ctx, d.ID, d.Type, d.Title, d.Description, d.Content,
			d.Framework, d.Category, encodeTags(d.Tags), d.Popularity,
			boolInt(d.IsFree), boolInt(d.IsPremium), boolInt(d.HasTypeScript))
		if err != nil {
			return fmt.Errorf("failed to upsert %s: %w", d.ID, err)
		}
	}
	return tx.Commit()
}

// Delete removes documents by id.
func (s *RelationalStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	params := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		params[i] = s.placeholder(i + 1)
		args[i] = id
	}
	query := "DELETE FROM entities WHERE id IN (" + strings.Join(params, ", ") + ")"
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	return nil
}

// Count returns the number of stored documents.
func (s *RelationalStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entities").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

// Search returns documents whose title or description contains any word of
// text, scored 2 per title match and 1 per description match, then ordered
// by popularity and id.
func (s *RelationalStore) Search(ctx context.Context, text string, filter Filter, limit int) ([]Hit, error) {
	terms := Tokenize(text)
	if len(terms) > maxRelationalTerms {
		terms = terms[:maxRelationalTerms]
	}
	if len(terms) == 0 || limit <= 0 {
		return []Hit{}, nil
	}

	var args []any
	bind := func(v any) string {
		args = append(args, v)
		return s.placeholder(len(args))
	}

	patterns := make([]string, len(terms))
	for i, term := range terms {
		patterns[i] = "%" + escapeLike(term) + "%"
	}

	// binds must follow their order of appearance in the statement
	var scoreParts, matchParts []string
	for _, pattern := range patterns {
		scoreParts = append(scoreParts,
			fmt.Sprintf(`(CASE WHEN LOWER(title) LIKE %s ESCAPE '\' THEN 2 ELSE 0 END)`, bind(pattern)),
			fmt.Sprintf(`(CASE WHEN LOWER(description) LIKE %s ESCAPE '\' THEN 1 ELSE 0 END)`, bind(pattern)))
	}
	for _, pattern := range patterns {
		matchParts = append(matchParts,
			fmt.Sprintf(`LOWER(title) LIKE %s ESCAPE '\'`, bind(pattern)),
			fmt.Sprintf(`LOWER(description) LIKE %s ESCAPE '\'`, bind(pattern)))
	}

	where := []string{"(" + strings.Join(matchParts, " OR ") + ")"}
	if filter.Type != "" {
		where = append(where, "LOWER(type) = "+bind(strings.ToLower(filter.Type)))
	}
	if filter.Framework != "" {
		where = append(where, "LOWER(framework) = "+bind(strings.ToLower(filter.Framework)))
	}
	if filter.Category != "" {
		where = append(where, "LOWER(category) = "+bind(strings.ToLower(filter.Category)))
	}
	for _, tag := range filter.Tags {
		where = append(where, `LOWER(tags) LIKE `+bind("%,"+escapeLike(strings.ToLower(tag))+",%")+` ESCAPE '\'`)
	}
	flags := []struct {
		col  string
		want *bool
	}{
		{"is_free", filter.IsFree},
		{"is_premium", filter.IsPremium},
		{"has_typescript", filter.HasTypeScript},
	}
	for _, f := range flags {
		if f.want != nil {
			where = append(where, f.col+" = "+bind(boolInt(*f.want)))
		}
	}

	query := fmt.Sprintf(`SELECT id, type, title, description, content, framework, category, tags,
	popularity, is_free, is_premium, has_typescript, %s AS score
FROM entities
WHERE %s
ORDER BY score DESC, popularity DESC, id ASC
LIMIT %s`, strings.Join(scoreParts, " + "), strings.Join(where, " AND "), bind(limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("relational query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	hits := make([]Hit, 0, limit)
	for rows.Next() {
		var (
			d                         Document
			tags                      string
			free, premium, typescript int
			score                     float64
		)
		if err := rows.Scan(&d.ID, &d.Type, &d.Title, &d.Description, &d.Content, &d.Framework,
			&d.Category, &tags, &d.Popularity, &free, &premium, &typescript, &score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		d.Tags = decodeTags(tags)
		d.IsFree, d.IsPremium, d.HasTypeScript = free != 0, premium != 0, typescript != 0
		hits = append(hits, Hit{Doc: d, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return hits, nil
}

// Close closes the database.
func (s *RelationalStore) Close() error {
	return s.db.Close()
}

// encodeTags stores tags as ",a,b," so one tag can be matched with LIKE.
func encodeTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	return "," + strings.Join(tags, ",") + ","
}

func decodeTags(s string) []string {
	s = strings.Trim(s, ",")
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// escapeLike escapes LIKE wildcards with a backslash.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
