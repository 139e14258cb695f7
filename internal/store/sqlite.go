package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/kuri-sun/bous-ai/internal/domain"
	"github.com/kuri-sun/bous-ai/internal/shared"
)

// writeRetries bounds the retry loop around SQLITE_BUSY conflicts.
const writeRetries = 3

// SQLiteStore implements Repository using SQLite. Structured session fields
// are stored as JSON columns; partial updates read-merge-write under a mutex
// to avoid SQLITE_BUSY on concurrent writers.
type SQLiteStore struct {
	db        *sql.DB
	sessionMu sync.Mutex
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		place_json TEXT,
		inputs_json TEXT,
		agentic_json TEXT,
		form_json TEXT,
		msg TEXT,
		pdf_blob_name TEXT,
		pdf_url TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// CreateSession persists a new session and returns its ID.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.Session) (string, error) {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	id := session.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now()

	placeJSON, err := marshalNullable(session.Place)
	if err != nil {
		return "", fmt.Errorf("marshal place: %w", err)
	}
	inputsJSON, err := marshalNullable(session.Inputs)
	if err != nil {
		return "", fmt.Errorf("marshal inputs: %w", err)
	}
	agenticJSON, err := marshalNullable(session.Agentic)
	if err != nil {
		return "", fmt.Errorf("marshal agentic: %w", err)
	}
	formJSON, err := marshalNullable(session.Form)
	if err != nil {
		return "", fmt.Errorf("marshal form: %w", err)
	}

	query := `
		INSERT INTO sessions (
			id, status, place_json, inputs_json, agentic_json, form_json,
			msg, pdf_blob_name, pdf_url, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.execWithRetry(ctx, query,
		id, session.Status, placeJSON, inputsJSON, agenticJSON, formJSON,
		nullString(session.Msg), nullString(session.PDFBlobName), nullString(session.PDFURL),
		now.Unix(), now.Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return id, nil
}

// GetSession retrieves a session by ID. Returns (nil, nil) when missing.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	query := `
		SELECT id, status, place_json, inputs_json, agentic_json, form_json,
		       msg, pdf_blob_name, pdf_url, created_at, updated_at
		FROM sessions WHERE id = ?`

	session, err := scanSession(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

// UpdateSession applies a partial update to an existing session. Fields not
// mentioned in the patch keep their stored value; inputs merge key-wise.
func (s *SQLiteStore) UpdateSession(ctx context.Context, id string, patch SessionPatch) error {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	current, err := s.getSessionLocked(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return ErrSessionNotFound
	}

	if patch.Status != nil {
		current.Status = *patch.Status
	}
	if patch.Place != nil {
		current.Place = patch.Place
	}
	if patch.Inputs != nil {
		current.Inputs = mergeInputs(current.Inputs, patch.Inputs)
	}
	if patch.Agentic != nil {
		current.Agentic = patch.Agentic
	}
	if patch.Form != nil {
		current.Form = patch.Form
	}
	if patch.Msg != nil {
		current.Msg = *patch.Msg
	}
	if patch.PDFBlobName != nil {
		current.PDFBlobName = *patch.PDFBlobName
	}
	if patch.PDFURL != nil {
		current.PDFURL = *patch.PDFURL
	}

	placeJSON, err := marshalNullable(current.Place)
	if err != nil {
		return fmt.Errorf("marshal place: %w", err)
	}
	inputsJSON, err := marshalNullable(current.Inputs)
	if err != nil {
		return fmt.Errorf("marshal inputs: %w", err)
	}
	agenticJSON, err := marshalNullable(current.Agentic)
	if err != nil {
		return fmt.Errorf("marshal agentic: %w", err)
	}
	formJSON, err := marshalNullable(current.Form)
	if err != nil {
		return fmt.Errorf("marshal form: %w", err)
	}

	query := `
		UPDATE sessions SET
			status = ?, place_json = ?, inputs_json = ?, agentic_json = ?,
			form_json = ?, msg = ?, pdf_blob_name = ?, pdf_url = ?, updated_at = ?
		WHERE id = ?`

	result, err := s.execWithRetry(ctx, query,
		current.Status, placeJSON, inputsJSON, agenticJSON, formJSON,
		nullString(current.Msg), nullString(current.PDFBlobName), nullString(current.PDFURL),
		time.Now().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// ListSessions returns up to limit sessions, newest first.
func (s *SQLiteStore) ListSessions(ctx context.Context, limit int) ([]*domain.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, status, place_json, inputs_json, agentic_json, form_json,
		       msg, pdf_blob_name, pdf_url, created_at, updated_at
		FROM sessions ORDER BY created_at DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// GetSessionPDFBlobName returns the stored PDF blob name, or "" when unset.
func (s *SQLiteStore) GetSessionPDFBlobName(ctx context.Context, id string) (string, error) {
	var blobName sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT pdf_blob_name FROM sessions WHERE id = ?`, id,
	).Scan(&blobName)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query pdf blob name: %w", err)
	}
	return blobName.String, nil
}

// execWithRetry retries writes that lose a lock race despite the busy
// timeout, backing off briefly between attempts.
func (s *SQLiteStore) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var result sql.Result
	var err error
	for attempt := 0; attempt < writeRetries; attempt++ {
		result, err = s.db.ExecContext(ctx, query, args...)
		if err == nil || !shared.IsSQLiteConflictError(err) {
			return result, err
		}
		time.Sleep(time.Duration(attempt+1) * 50 * time.Millisecond)
	}
	return result, err
}

func (s *SQLiteStore) getSessionLocked(ctx context.Context, id string) (*domain.Session, error) {
	query := `
		SELECT id, status, place_json, inputs_json, agentic_json, form_json,
		       msg, pdf_blob_name, pdf_url, created_at, updated_at
		FROM sessions WHERE id = ?`
	session, err := scanSession(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return session, err
}

func mergeInputs(current *domain.Inputs, patch *InputsPatch) *domain.Inputs {
	merged := &domain.Inputs{}
	if current != nil {
		*merged = *current
	}
	if patch.Step1 != nil {
		merged.Step1 = patch.Step1
	}
	if patch.Step2 != nil {
		merged.Step2 = patch.Step2
	}
	if patch.Markdown != nil {
		merged.Markdown = *patch.Markdown
	}
	if patch.HTML != nil {
		merged.HTML = *patch.HTML
	}
	if patch.Agentic != nil {
		merged.Agentic = patch.Agentic
	}
	return merged
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var session domain.Session
	var placeJSON, inputsJSON, agenticJSON, formJSON sql.NullString
	var msg, pdfBlobName, pdfURL sql.NullString
	var createdAt, updatedAt int64

	err := row.Scan(
		&session.ID, &session.Status, &placeJSON, &inputsJSON, &agenticJSON,
		&formJSON, &msg, &pdfBlobName, &pdfURL, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	if err := unmarshalNullable(placeJSON, &session.Place); err != nil {
		return nil, fmt.Errorf("unmarshal place: %w", err)
	}
	if err := unmarshalNullable(inputsJSON, &session.Inputs); err != nil {
		return nil, fmt.Errorf("unmarshal inputs: %w", err)
	}
	if err := unmarshalNullable(agenticJSON, &session.Agentic); err != nil {
		return nil, fmt.Errorf("unmarshal agentic: %w", err)
	}
	if err := unmarshalNullable(formJSON, &session.Form); err != nil {
		return nil, fmt.Errorf("unmarshal form: %w", err)
	}

	session.Msg = msg.String
	session.PDFBlobName = pdfBlobName.String
	session.PDFURL = pdfURL.String
	session.CreatedAt = time.Unix(createdAt, 0)
	session.UpdatedAt = time.Unix(updatedAt, 0)
	return &session, nil
}

func marshalNullable[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func unmarshalNullable[T any](column sql.NullString, target **T) error {
	if !column.Valid || column.String == "" {
		return nil
	}
	var value T
	if err := json.Unmarshal([]byte(column.String), &value); err != nil {
		return err
	}
	*target = &value
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
