// Package backup keeps an institutional copy of every submitted case. The
// copy is best effort: the case backend remains the system of record, and a
// failed backup never fails a submission.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	id "intake-gateway/pkg/domain"
)

// Record is one archived submission.
type Record struct {
	ID        string
	CaseID    string
	Folio     string
	FormID    string
	UserID    id.UserID
	Payload   json.RawMessage
	Device    string
	ClientIP  string
	CreatedAt time.Time
}

// Store archives submission records.
type Store interface {
	Save(ctx context.Context, rec *Record) error
}

const schema = `
CREATE TABLE IF NOT EXISTS submission_backups (
	id         UUID PRIMARY KEY,
	case_id    TEXT NOT NULL,
	folio      TEXT NOT NULL DEFAULT '',
	form_id    TEXT NOT NULL,
	user_id    UUID NOT NULL,
	payload    JSONB NOT NULL,
	device     TEXT NOT NULL DEFAULT '',
	client_ip  TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS submission_backups_case_id_idx ON submission_backups (case_id);
CREATE INDEX IF NOT EXISTS submission_backups_user_id_idx ON submission_backups (user_id);
`

// PostgresStore archives submissions in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the backup table if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure backup schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, rec *Record) error {
	if rec == nil {
		return fmt.Errorf("backup record is required")
	}
	recID := rec.ID
	if recID == "" {
		recID = uuid.NewString()
	}
	query := `
		INSERT INTO submission_backups
			(id, case_id, folio, form_id, user_id, payload, device, client_ip, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.pool.Exec(ctx, query,
		recID, rec.CaseID, rec.Folio, rec.FormID, rec.UserID.String(),
		rec.Payload, rec.Device, rec.ClientIP, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save submission backup: %w", err)
	}
	return nil
}

// MemoryStore keeps records in memory. Test double.
type MemoryStore struct {
	mu      sync.Mutex
	records []Record
	// FailErr makes every Save return this error.
	FailErr error
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Save(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailErr != nil {
		return s.FailErr
	}
	if rec == nil {
		return fmt.Errorf("backup record is required")
	}
	s.records = append(s.records, *rec)
	return nil
}

// Records returns a copy of everything saved so far.
func (s *MemoryStore) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.records...)
}
