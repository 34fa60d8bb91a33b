package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/custodia-labs/protosmith/internal/adapters/driven/storage/rank"
	"github.com/custodia-labs/protosmith/internal/core/domain"
	"github.com/custodia-labs/protosmith/internal/core/ports/driven"
)

// embeddingStore implements driven.EmbeddingStore.
type embeddingStore struct {
	store *Store

	mu         sync.RWMutex
	dimensions int
}

var _ driven.EmbeddingStore = (*embeddingStore)(nil)

// Add stores items in one transaction.
func (s *embeddingStore) Add(ctx context.Context, items []domain.ContextItem) error {
	if len(items) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dims := s.dimensions
	if dims == 0 {
		dims = len(items[0].Embedding)
	}
	for _, item := range items {
		if item.ProtocolID == "" {
			return fmt.Errorf("%w: item %s has no protocol", domain.ErrInvalidInput, item.ID)
		}
		if len(item.Embedding) != dims || dims == 0 {
			return fmt.Errorf("%w: item %s has %d dimensions, store has %d",
				domain.ErrInvalidInput, item.ID, len(item.Embedding), dims)
		}
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if s.dimensions == 0 {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO store_meta (key, value) VALUES (?, ?)",
			dimensionsKey, strconv.Itoa(dims)); err != nil {
			return unavailable("saving dimensions", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO context_items
			(id, protocol_id, source_type, raw_content, chunk_index, embedding, metadata, content_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return unavailable("preparing insert", err)
	}
	defer stmt.Close()

	for _, item := range items {
		metadataJSON, err := json.Marshal(item.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			item.ID, item.ProtocolID, string(item.SourceType), item.RawContent, item.ChunkIndex,
			float32SliceToBytes(item.Embedding), string(metadataJSON), item.Metadata.ContentHash,
			item.CreatedAt.UnixNano(),
		); err != nil {
			return unavailable("inserting item "+item.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return unavailable("commit", err)
	}
	s.dimensions = dims
	return nil
}

// Query loads protocolID's rows and ranks them by cosine similarity.
func (s *embeddingStore) Query(ctx context.Context, protocolID string, vector []float32, k int) ([]domain.ScoredItem, error) {
	if k <= 0 {
		return []domain.ScoredItem{}, nil
	}
	if dims := s.Dimensions(); dims != 0 && len(vector) != dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, store has %d",
			domain.ErrInvalidInput, len(vector), dims)
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, protocol_id, source_type, raw_content, chunk_index, embedding, metadata, created_at
		FROM context_items WHERE protocol_id = ?
	`, protocolID)
	if err != nil {
		return nil, unavailable("querying items", err)
	}
	defer rows.Close()

	var items []domain.ContextItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("reading items", err)
	}

	return rank.TopK(items, vector, k), nil
}

// Delete removes every item owned by protocolID.
func (s *embeddingStore) Delete(ctx context.Context, protocolID string) error {
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM context_items WHERE protocol_id = ?", protocolID); err != nil {
		return unavailable("deleting items", err)
	}
	return nil
}

// DeleteItem removes one item.
func (s *embeddingStore) DeleteItem(ctx context.Context, protocolID, itemID string) error {
	res, err := s.store.db.ExecContext(ctx,
		"DELETE FROM context_items WHERE protocol_id = ? AND id = ?", protocolID, itemID)
	if err != nil {
		return unavailable("deleting item", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("deleting item", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Count returns the number of items owned by protocolID.
func (s *embeddingStore) Count(ctx context.Context, protocolID string) (int, error) {
	var n int
	err := s.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM context_items WHERE protocol_id = ?", protocolID).Scan(&n)
	if err != nil {
		return 0, unavailable("counting items", err)
	}
	return n, nil
}

// HasContentHash reports whether protocolID already holds a source with hash.
func (s *embeddingStore) HasContentHash(ctx context.Context, protocolID, hash string) (bool, error) {
	var exists int
	err := s.store.db.QueryRowContext(ctx,
		"SELECT 1 FROM context_items WHERE protocol_id = ? AND content_hash = ? LIMIT 1",
		protocolID, hash).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, unavailable("checking content hash", err)
	}
	return true, nil
}

// Dimensions returns the fixed vector size, or 0 if not yet fixed.
func (s *embeddingStore) Dimensions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimensions
}

// Close is a no-op; the owning Store closes the database.
func (s *embeddingStore) Close() error {
	return nil
}

func scanItem(rows *sql.Rows) (domain.ContextItem, error) {
	var item domain.ContextItem
	var sourceType, metadataJSON string
	var embedding []byte
	var createdAt int64

	if err := rows.Scan(&item.ID, &item.ProtocolID, &sourceType, &item.RawContent, &item.ChunkIndex,
		&embedding, &metadataJSON, &createdAt); err != nil {
		return item, unavailable("scanning item", err)
	}

	item.SourceType = domain.SourceType(sourceType)
	item.Embedding = bytesToFloat32Slice(embedding)
	item.CreatedAt = time.Unix(0, createdAt).UTC()
	if err := json.Unmarshal([]byte(metadataJSON), &item.Metadata); err != nil {
		return item, fmt.Errorf("unmarshalling metadata for %s: %w", item.ID, err)
	}
	return item, nil
}
