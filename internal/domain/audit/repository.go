package audit

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

const insertQuery = `
	INSERT INTO audit_log (id, actor_id, action, entity_type, entity_id, before_state, after_state)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
`

// RecordTx appends an entry inside the caller's transaction, so a
// rolled-back mutation never leaves an orphan audit record.
func (r *Repository) RecordTx(ctx context.Context, tx *sqlx.Tx, entry Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	_, err := tx.ExecContext(ctx, insertQuery,
		entry.ID, entry.ActorID, entry.Action, entry.EntityType, entry.EntityID,
		nullableJSON(entry.BeforeState), nullableJSON(entry.AfterState))
	return err
}

// Record appends an entry outside any transaction
func (r *Repository) Record(ctx context.Context, entry Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	_, err := r.db.ExecContext(ctx, insertQuery,
		entry.ID, entry.ActorID, entry.Action, entry.EntityType, entry.EntityID,
		nullableJSON(entry.BeforeState), nullableJSON(entry.AfterState))
	return err
}

// ListByEntity returns entries for one entity, newest first
func (r *Repository) ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	entries := []Entry{}
	err := r.db.SelectContext(ctx, &entries, `
		SELECT id, actor_id, action, entity_type, entity_id, before_state, after_state, created_at
		FROM audit_log
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`, entityType, entityID, limit)
	return entries, err
}

// Snapshot marshals an entity for a before/after state column. Marshal
// failures degrade to null rather than blocking the mutation.
func Snapshot(v interface{}) json.RawMessage {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

func nullableJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
