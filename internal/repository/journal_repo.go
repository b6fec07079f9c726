package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"smarthome_sync/internal/models"

	"github.com/google/uuid"
)

type MutationLogSQLite struct {
	db *sql.DB
}

func NewMutationLogSQLite(db *sql.DB) *MutationLogSQLite { return &MutationLogSQLite{db: db} }

var _ Journal = (*MutationLogSQLite)(nil)

const insertMutationEventSQL = `
		INSERT INTO mutation_events (id, occurred_at, entity_kind, entity_id, attribute, outcome, error, meta)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

const selectMutationEventsSQL = `SELECT id, occurred_at, entity_kind, entity_id, attribute, outcome, error, meta FROM mutation_events`

// Record appends e. Missing ID and OccurredAt are filled in.
func (r *MutationLogSQLite) Record(ctx context.Context, e models.MutationEvent) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	} else {
		e.OccurredAt = e.OccurredAt.UTC()
	}

	var metaPtr *string
	if e.Metadata != nil {
		if b, err := json.Marshal(e.Metadata); err == nil {
			s := string(b)
			metaPtr = &s
		}
	}

	var errPtr *string
	if e.Error != "" {
		errPtr = &e.Error
	}

	_, err := r.db.ExecContext(ctx, insertMutationEventSQL,
		e.ID,
		e.OccurredAt,
		strings.ToLower(strings.TrimSpace(e.EntityKind)),
		e.EntityID,
		e.Attribute,
		strings.ToLower(strings.TrimSpace(e.Outcome)),
		errPtr,
		metaPtr,
	)
	return err
}

// List returns events within [From, To] matching the filter, oldest first.
func (r *MutationLogSQLite) List(ctx context.Context, f Filter) ([]models.MutationEvent, error) {
	var (
		conds []string
		args  []any
	)

	if !f.From.IsZero() {
		conds = append(conds, "occurred_at >= ?")
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		conds = append(conds, "occurred_at <= ?")
		args = append(args, f.To.UTC())
	}
	if outcome := strings.ToLower(strings.TrimSpace(f.Outcome)); outcome != "" {
		conds = append(conds, "outcome = ?")
		args = append(args, outcome)
	}
	if kind := strings.ToLower(strings.TrimSpace(f.EntityKind)); kind != "" {
		conds = append(conds, "entity_kind = ?")
		args = append(args, kind)
	}

	q := selectMutationEventsSQL
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY occurred_at ASC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.MutationEvent, 0, 64)
	for rows.Next() {
		var ev models.MutationEvent
		var errStr, metaStr sql.NullString
		if err := rows.Scan(&ev.ID, &ev.OccurredAt, &ev.EntityKind, &ev.EntityID, &ev.Attribute, &ev.Outcome, &errStr, &metaStr); err != nil {
			return nil, err
		}
		ev.OccurredAt = ev.OccurredAt.UTC()
		ev.Error = errStr.String

		if metaStr.Valid && metaStr.String != "" {
			var v any
			if err := json.Unmarshal([]byte(metaStr.String), &v); err == nil {
				ev.Metadata = v
			} else {
				ev.Metadata = metaStr.String
			}
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
