package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"intake/internal/catalog"
)

// Postgres persists journal entries in the submission_journal table. The
// pgx stdlib driver provides the *sql.DB.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Migrate creates the journal table when it does not exist yet.
func (s *Postgres) Migrate(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS submission_journal (
			id UUID PRIMARY KEY,
			submitted_at TIMESTAMPTZ NOT NULL,
			operator_id TEXT NOT NULL DEFAULT '',
			project_id TEXT NOT NULL DEFAULT '',
			apartment_id TEXT NOT NULL DEFAULT '',
			buyer_ids TEXT NOT NULL DEFAULT '',
			communication_id TEXT NOT NULL DEFAULT '',
			outcome TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT ''
		)`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create submission_journal: %w", err)
	}
	return nil
}

func (s *Postgres) Append(ctx context.Context, entry Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.SubmittedAt.IsZero() {
		entry.SubmittedAt = time.Now()
	}
	ids := make([]string, len(entry.BuyerIDs))
	for i, id := range entry.BuyerIDs {
		ids[i] = string(id)
	}

	const query = `
		INSERT INTO submission_journal
			(id, submitted_at, operator_id, project_id, apartment_id, buyer_ids, communication_id, outcome, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.SubmittedAt,
		entry.OperatorID,
		string(entry.ProjectID),
		string(entry.ApartmentID),
		strings.Join(ids, ","),
		string(entry.CommunicationID),
		string(entry.Outcome),
		entry.Detail,
	)
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

func (s *Postgres) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
		SELECT id, submitted_at, operator_id, project_id, apartment_id, buyer_ids, communication_id, outcome, detail
		FROM submission_journal
		ORDER BY submitted_at DESC
		LIMIT $1`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var projectID, apartmentID, buyerIDs, communicationID, outcome string
		if err := rows.Scan(&e.ID, &e.SubmittedAt, &e.OperatorID, &projectID, &apartmentID, &buyerIDs, &communicationID, &outcome, &e.Detail); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.ProjectID = catalog.ItemID(projectID)
		e.ApartmentID = catalog.ItemID(apartmentID)
		e.CommunicationID = catalog.ItemID(communicationID)
		e.Outcome = Outcome(outcome)
		if buyerIDs != "" {
			for _, id := range strings.Split(buyerIDs, ",") {
				e.BuyerIDs = append(e.BuyerIDs, catalog.ItemID(id))
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

var _ Store = (*Postgres)(nil)
