// Package store persists aggregated responses in sqlite with per-prompt
// versioning, session grouping, tagging, and FTS5 full-text search.
//
// The database handle is an explicitly owned resource: Open it at startup,
// Close it on shutdown. There is no package-level singleton. Writes are
// serialized by a store-level mutex and run inside a transaction, so a
// reader never observes a half-committed write; the file store runs in WAL
// mode so reads proceed concurrently.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Dicklesworthstone/quorum/internal/aggregate"
	"github.com/Dicklesworthstone/quorum/internal/util"
)

var (
	// ErrNotFound is returned when a response id does not exist.
	ErrNotFound = errors.New("response not found")

	// ErrSessionNotFound is returned when a session id does not exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrEmptyQuery is returned by Search for a blank query.
	ErrEmptyQuery = errors.New("empty search query")
)

// DefaultMaxVersions caps how many versions of one prompt are retained
// before the oldest are evicted.
const DefaultMaxVersions = 20

// Options tunes store behavior at open time.
type Options struct {
	// MaxVersions is the per-prompt history cap; older versions beyond it
	// are evicted on insert. Zero means DefaultMaxVersions; negative
	// disables eviction.
	MaxVersions int
}

// Store is a sqlite-backed response store.
type Store struct {
	db          *sql.DB
	path        string
	maxVersions int

	// mu serializes writer transactions. sqlite allows one writer at a
	// time; queueing in-process beats surfacing SQLITE_BUSY to callers.
	mu sync.Mutex
}

// StoredResponse is one immutable persisted response version.
type StoredResponse struct {
	ID         string             `json:"id"`
	Prompt     string             `json:"prompt"`
	PromptHash string             `json:"prompt_hash"`
	Platform   aggregate.Platform `json:"platform"`
	Model      string             `json:"model,omitempty"`
	Text       string             `json:"text"`
	TokensIn   int                `json:"tokens_in"`
	TokensOut  int                `json:"tokens_out"`
	Metadata   map[string]any     `json:"metadata,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	Version    int                `json:"version"`
}

// Session groups responses in insertion order.
type Session struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	Responses   []StoredResponse `json:"responses,omitempty"`
}

// Open opens (creating if needed) the store at path and runs migrations.
// Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	return OpenWithOptions(path, Options{})
}

// OpenWithOptions is Open with explicit options.
func OpenWithOptions(path string, opts Options) (*Store, error) {
	maxVersions := opts.MaxVersions
	if maxVersions == 0 {
		maxVersions = DefaultMaxVersions
	}

	dsn := path + "?_foreign_keys=ON&_busy_timeout=5000"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
		dsn += "&_journal_mode=WAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	// The in-memory database lives in a single connection; a second
	// connection would see an empty schema.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}

	s := &Store{db: db, path: path, maxVersions: maxVersions}
	if err := s.Migrate(); err != nil {
		db.Close()
		return nil, err
	}

	slog.Info("response store opened", "path", path, "max_versions", maxVersions)
	return s, nil
}

// Migrate applies the schema. Idempotent.
func (s *Store) Migrate() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// PromptHash fingerprints a prompt for version grouping. xxhash is fast
// and non-cryptographic; a collision merges two prompts' histories, which
// is tolerated and documented, not a security property.
func PromptHash(prompt string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(prompt))
}

// StoreOptions carries optional attachments for Save.
type StoreOptions struct {
	// SessionID appends the response to an existing session.
	SessionID string

	// Tags attaches tag names, created on first use.
	Tags []string
}

// Save persists a response for a prompt and returns its id. The version is
// max(existing)+1 for the prompt hash, starting at 1; versions beyond the
// configured cap are evicted oldest-first inside the same transaction, so
// no partial state is ever visible.
func (s *Store) Save(resp aggregate.Response, prompt string, opts StoreOptions) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("save response: %w", err)
	}
	defer tx.Rollback()

	hash := PromptHash(prompt)

	var maxVersion int
	if err := tx.QueryRow(
		`SELECT COALESCE(MAX(version), 0) FROM responses WHERE prompt_hash = ?`, hash,
	).Scan(&maxVersion); err != nil {
		return "", fmt.Errorf("save response: %w", err)
	}
	version := maxVersion + 1

	id := uuid.NewString()
	metadata := "{}"
	if resp.Metadata != nil {
		b, err := json.Marshal(resp.Metadata)
		if err != nil {
			return "", fmt.Errorf("save response: encode metadata: %w", err)
		}
		metadata = string(b)
	}

	if _, err := tx.Exec(
		`INSERT INTO responses
		   (id, prompt, prompt_hash, platform, model, response_text,
		    tokens_input, tokens_output, metadata, created_at, version)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, prompt, hash, resp.Platform.String(), resp.Model, resp.Text,
		resp.TokensIn, resp.TokensOut, metadata, time.Now().UTC().Unix(), version,
	); err != nil {
		return "", fmt.Errorf("save response: %w", err)
	}

	if err := s.attachTags(tx, id, opts.Tags); err != nil {
		return "", err
	}
	if opts.SessionID != "" {
		if err := s.appendToSession(tx, opts.SessionID, id); err != nil {
			return "", err
		}
	}

	if s.maxVersions > 0 && version > s.maxVersions {
		if _, err := tx.Exec(
			`DELETE FROM responses
			 WHERE prompt_hash = ?
			   AND version NOT IN (
			     SELECT version FROM responses
			     WHERE prompt_hash = ?
			     ORDER BY version DESC LIMIT ?)`,
			hash, hash, s.maxVersions,
		); err != nil {
			return "", fmt.Errorf("save response: evict old versions: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("save response: %w", err)
	}

	slog.Debug("response saved",
		"id", id,
		"platform", resp.Platform,
		"version", version,
		"session", opts.SessionID,
	)
	return id, nil
}

// attachTags creates missing tags and links them to the response.
func (s *Store) attachTags(tx *sql.Tx, responseID string, tags []string) error {
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, err := tx.Exec(`INSERT OR IGNORE INTO tags (name) VALUES (?)`, tag); err != nil {
			return fmt.Errorf("save response: tag %q: %w", tag, err)
		}
		var tagID int64
		if err := tx.QueryRow(`SELECT id FROM tags WHERE name = ?`, tag).Scan(&tagID); err != nil {
			return fmt.Errorf("save response: tag %q: %w", tag, err)
		}
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO response_tags (response_id, tag_id) VALUES (?, ?)`,
			responseID, tagID,
		); err != nil {
			return fmt.Errorf("save response: tag %q: %w", tag, err)
		}
	}
	return nil
}

// appendToSession links the response at the next sequence position.
func (s *Store) appendToSession(tx *sql.Tx, sessionID, responseID string) error {
	var exists int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM sessions WHERE id = ?`, sessionID).Scan(&exists); err != nil {
		return fmt.Errorf("save response: session %q: %w", sessionID, err)
	}
	if exists == 0 {
		return fmt.Errorf("save response: session %q: %w", sessionID, ErrSessionNotFound)
	}

	var seq int
	if err := tx.QueryRow(
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM session_responses WHERE session_id = ?`,
		sessionID,
	).Scan(&seq); err != nil {
		return fmt.Errorf("save response: session %q: %w", sessionID, err)
	}
	if _, err := tx.Exec(
		`INSERT INTO session_responses (session_id, response_id, sequence) VALUES (?, ?, ?)`,
		sessionID, responseID, seq,
	); err != nil {
		return fmt.Errorf("save response: session %q: %w", sessionID, err)
	}
	if _, err := tx.Exec(
		`UPDATE sessions SET updated_at = ? WHERE id = ?`,
		time.Now().UTC().Unix(), sessionID,
	); err != nil {
		return fmt.Errorf("save response: session %q: %w", sessionID, err)
	}
	return nil
}

const responseColumns = `id, prompt, prompt_hash, platform, model, response_text,
	tokens_input, tokens_output, metadata, created_at, version`

// Get returns a stored response by id.
func (s *Store) Get(id string) (*StoredResponse, error) {
	row := s.db.QueryRow(`SELECT `+responseColumns+` FROM responses WHERE id = ?`, id)
	resp, err := scanResponse(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get response %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get response %q: %w", id, err)
	}
	return resp, nil
}

// Delete removes a stored response. Tag links, session links, and the FTS
// index entry go with it.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM responses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete response %q: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete response %q: %w", id, ErrNotFound)
	}
	return nil
}

// HistoryOptions filters and pages History results.
type HistoryOptions struct {
	// Limit caps the result count; zero or negative means 50.
	Limit int

	// Offset skips versions from the newest end.
	Offset int

	// Platform restricts to one platform when non-empty.
	Platform aggregate.Platform
}

// History returns the stored versions for a prompt, newest first.
func (s *Store) History(prompt string, opts HistoryOptions) ([]StoredResponse, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + responseColumns + ` FROM responses WHERE prompt_hash = ?`
	args := []any{PromptHash(prompt)}
	if opts.Platform != "" {
		query += ` AND platform = ?`
		args = append(args, opts.Platform.String())
	}
	query += ` ORDER BY version DESC LIMIT ? OFFSET ?`
	args = append(args, limit, opts.Offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	defer rows.Close()

	return collectResponses(rows, "history")
}

// SearchOptions filters and pages Search results.
type SearchOptions struct {
	// Limit caps the result count; zero or negative means 20.
	Limit int

	// Offset skips ranked results.
	Offset int

	// Platform restricts to one platform when non-empty.
	Platform aggregate.Platform

	// Tags restricts to responses carrying any of these tags.
	Tags []string

	// From/To bound created_at when non-zero.
	From time.Time
	To   time.Time
}

// Search runs a ranked full-text query over prompts and response texts.
// Results are ordered by bm25 relevance.
func (s *Store) Search(query string, opts SearchOptions) ([]StoredResponse, error) {
	match := ftsQuery(query)
	if match == "" {
		return nil, fmt.Errorf("search: %w", ErrEmptyQuery)
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}

	sqlQuery := `SELECT r.id, r.prompt, r.prompt_hash, r.platform, r.model, r.response_text,
		r.tokens_input, r.tokens_output, r.metadata, r.created_at, r.version
		FROM responses_fts
		JOIN responses r ON r.rowid = responses_fts.rowid
		WHERE responses_fts MATCH ?`
	args := []any{match}

	if opts.Platform != "" {
		sqlQuery += ` AND r.platform = ?`
		args = append(args, opts.Platform.String())
	}
	if len(opts.Tags) > 0 {
		placeholders := strings.Repeat("?,", len(opts.Tags))
		sqlQuery += ` AND r.id IN (
			SELECT rt.response_id FROM response_tags rt
			JOIN tags t ON t.id = rt.tag_id
			WHERE t.name IN (` + placeholders[:len(placeholders)-1] + `))`
		for _, tag := range opts.Tags {
			args = append(args, tag)
		}
	}
	if !opts.From.IsZero() {
		sqlQuery += ` AND r.created_at >= ?`
		args = append(args, opts.From.UTC().Unix())
	}
	if !opts.To.IsZero() {
		sqlQuery += ` AND r.created_at <= ?`
		args = append(args, opts.To.UTC().Unix())
	}

	sqlQuery += ` ORDER BY bm25(responses_fts) LIMIT ? OFFSET ?`
	args = append(args, limit, opts.Offset)

	rows, err := s.db.Query(sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	return collectResponses(rows, "search")
}

// ftsQuery turns free text into a safe FTS5 match expression: each token
// becomes a quoted phrase term, so user input cannot inject query syntax.
func ftsQuery(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	terms := make([]string, len(fields))
	for i, f := range fields {
		terms[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return strings.Join(terms, " ")
}

// CreateSession creates a named session for grouping responses.
func (s *Store) CreateSession(name, description string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	session := &Session{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		CreatedAt:   now.Truncate(time.Second),
		UpdatedAt:   now.Truncate(time.Second),
	}
	if _, err := s.db.Exec(
		`INSERT INTO sessions (id, name, description, created_at, updated_at, metadata)
		 VALUES (?, ?, ?, ?, ?, '{}')`,
		session.ID, name, description, now.Unix(), now.Unix(),
	); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// GetSession returns a session with its responses in sequence order.
func (s *Store) GetSession(id string) (*Session, error) {
	var session Session
	var created, updated int64
	err := s.db.QueryRow(
		`SELECT id, name, description, created_at, updated_at FROM sessions WHERE id = ?`, id,
	).Scan(&session.ID, &session.Name, &session.Description, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get session %q: %w", id, ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session %q: %w", id, err)
	}
	session.CreatedAt = time.Unix(created, 0).UTC()
	session.UpdatedAt = time.Unix(updated, 0).UTC()

	rows, err := s.db.Query(
		`SELECT r.id, r.prompt, r.prompt_hash, r.platform, r.model, r.response_text,
		   r.tokens_input, r.tokens_output, r.metadata, r.created_at, r.version
		 FROM session_responses sr
		 JOIN responses r ON r.id = sr.response_id
		 WHERE sr.session_id = ?
		 ORDER BY sr.sequence`, id)
	if err != nil {
		return nil, fmt.Errorf("get session %q: %w", id, err)
	}
	defer rows.Close()

	session.Responses, err = collectResponses(rows, "get session")
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// PlatformCount pairs a platform with its stored response count.
type PlatformCount struct {
	Platform aggregate.Platform `json:"platform"`
	Count    int                `json:"count"`
}

// Statistics summarizes store contents.
type Statistics struct {
	TotalResponses int             `json:"total_responses"`
	UniquePrompts  int             `json:"unique_prompts"`
	Sessions       int             `json:"sessions"`
	Tags           int             `json:"tags"`
	Platforms      []PlatformCount `json:"platforms,omitempty"`
	SizeBytes      int64           `json:"size_bytes"`
}

// Statistics computes store-wide counts and the database size.
func (s *Store) Statistics() (*Statistics, error) {
	stats := &Statistics{}

	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM responses`, &stats.TotalResponses},
		{`SELECT COUNT(DISTINCT prompt_hash) FROM responses`, &stats.UniquePrompts},
		{`SELECT COUNT(*) FROM sessions`, &stats.Sessions},
		{`SELECT COUNT(*) FROM tags`, &stats.Tags},
	}
	for _, c := range counts {
		if err := s.db.QueryRow(c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("statistics: %w", err)
		}
	}

	rows, err := s.db.Query(
		`SELECT platform, COUNT(*) FROM responses GROUP BY platform ORDER BY COUNT(*) DESC, platform`)
	if err != nil {
		return nil, fmt.Errorf("statistics: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var pc PlatformCount
		var platform string
		if err := rows.Scan(&platform, &pc.Count); err != nil {
			return nil, fmt.Errorf("statistics: %w", err)
		}
		pc.Platform = aggregate.Platform(platform)
		stats.Platforms = append(stats.Platforms, pc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("statistics: %w", err)
	}

	var pageCount, pageSize int64
	if err := s.db.QueryRow(`PRAGMA page_count`).Scan(&pageCount); err == nil {
		if err := s.db.QueryRow(`PRAGMA page_size`).Scan(&pageSize); err == nil {
			stats.SizeBytes = pageCount * pageSize
		}
	}

	return stats, nil
}

// Render produces a human-readable statistics summary.
func (st *Statistics) Render() string {
	if st == nil {
		return "No statistics available"
	}
	var b strings.Builder
	b.WriteString("Store Statistics:\n")
	fmt.Fprintf(&b, "Responses:       %d\n", st.TotalResponses)
	fmt.Fprintf(&b, "Unique Prompts:  %d\n", st.UniquePrompts)
	fmt.Fprintf(&b, "Sessions:        %d\n", st.Sessions)
	fmt.Fprintf(&b, "Tags:            %d\n", st.Tags)
	fmt.Fprintf(&b, "Database Size:   %s\n", util.FormatBytes(st.SizeBytes))
	for _, pc := range st.Platforms {
		fmt.Fprintf(&b, "  %-12s %d\n", pc.Platform, pc.Count)
	}
	return b.String()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanResponse reads one responses row.
func scanResponse(row rowScanner) (*StoredResponse, error) {
	var (
		resp     StoredResponse
		platform string
		metadata string
		created  int64
	)
	if err := row.Scan(
		&resp.ID, &resp.Prompt, &resp.PromptHash, &platform, &resp.Model, &resp.Text,
		&resp.TokensIn, &resp.TokensOut, &metadata, &created, &resp.Version,
	); err != nil {
		return nil, err
	}
	resp.Platform = aggregate.Platform(platform)
	resp.CreatedAt = time.Unix(created, 0).UTC()
	if metadata != "" && metadata != "{}" {
		if err := json.Unmarshal([]byte(metadata), &resp.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return &resp, nil
}

// collectResponses drains rows into a slice.
func collectResponses(rows *sql.Rows, op string) ([]StoredResponse, error) {
	var out []StoredResponse
	for rows.Next() {
		resp, err := scanResponse(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, *resp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}
