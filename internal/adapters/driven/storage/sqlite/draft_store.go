package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/custodia-labs/protosmith/internal/core/domain"
	"github.com/custodia-labs/protosmith/internal/core/ports/driven"
)

// draftStore implements driven.DraftStore. Snapshots are stored as JSON
// and never updated.
type draftStore struct {
	store *Store
}

var _ driven.DraftStore = (*draftStore)(nil)

// SaveSnapshot appends one snapshot row.
func (s *draftStore) SaveSnapshot(ctx context.Context, runID string, stage domain.Stage, draft *domain.ProtocolDraft) error {
	if draft == nil {
		return domain.ErrInvalidInput
	}
	body, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("marshalling draft: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO draft_snapshots (draft_id, protocol_id, run_id, stage, version, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, draft.ID, draft.ProtocolID, runID, string(stage), draft.Version, string(body), time.Now().UnixNano())
	if err != nil {
		return unavailable("saving snapshot", err)
	}
	return nil
}

// ListSnapshots returns a draft's snapshots in save order.
func (s *draftStore) ListSnapshots(ctx context.Context, draftID string) ([]driven.DraftSnapshot, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT run_id, stage, body FROM draft_snapshots WHERE draft_id = ? ORDER BY seq
	`, draftID)
	if err != nil {
		return nil, unavailable("listing snapshots", err)
	}
	defer rows.Close()

	snaps := []driven.DraftSnapshot{}
	for rows.Next() {
		var runID, stage, body string
		if err := rows.Scan(&runID, &stage, &body); err != nil {
			return nil, unavailable("scanning snapshot", err)
		}
		draft, err := decodeDraft(body)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, driven.DraftSnapshot{RunID: runID, Stage: domain.Stage(stage), Draft: draft})
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("reading snapshots", err)
	}
	return snaps, nil
}

// Latest returns the most recent snapshot for a protocol.
func (s *draftStore) Latest(ctx context.Context, protocolID string) (*domain.ProtocolDraft, error) {
	var body string
	err := s.store.db.QueryRowContext(ctx, `
		SELECT body FROM draft_snapshots WHERE protocol_id = ? ORDER BY seq DESC LIMIT 1
	`, protocolID).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, unavailable("loading latest snapshot", err)
	}
	return decodeDraft(body)
}

func decodeDraft(body string) (*domain.ProtocolDraft, error) {
	var draft domain.ProtocolDraft
	if err := json.Unmarshal([]byte(body), &draft); err != nil {
		return nil, fmt.Errorf("unmarshalling draft: %w", err)
	}
	return &draft, nil
}
