package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"smarthome_sync/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return c
}

func newMockJournal(t *testing.T) (*MutationLogSQLite, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("mock expectations: %v", err)
		}
		_ = db.Close()
	})
	return NewMutationLogSQLite(db), mock
}

var eventColumns = []string{"id", "occurred_at", "entity_kind", "entity_id", "attribute", "outcome", "error", "meta"}

func TestRecord_FillsDefaultsAndNormalizes(t *testing.T) {
	t.Parallel()
	repo, mock := newMockJournal(t)

	mock.ExpectExec(regexp.QuoteMeta(insertMutationEventSQL)).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "device", 4, "power", "rolled_back", "remote error: status 500", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Record(testCtx(t), models.MutationEvent{
		EntityKind: " Device ",
		EntityID:   4,
		Attribute:  "power",
		Outcome:    "ROLLED_BACK",
		Error:      "remote error: status 500",
		Metadata:   map[string]any{"previous": false, "desired": true},
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
}

func TestRecord_ConfirmedHasNullError(t *testing.T) {
	t.Parallel()
	repo, mock := newMockJournal(t)

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 3600))
	mock.ExpectExec(regexp.QuoteMeta(insertMutationEventSQL)).
		WithArgs("ev-1", at.UTC(), "light", 2, "level", "confirmed", nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Record(testCtx(t), models.MutationEvent{
		ID: "ev-1", OccurredAt: at, EntityKind: "light", EntityID: 2, Attribute: "level", Outcome: "confirmed",
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
}

func TestRecord_DBError(t *testing.T) {
	t.Parallel()
	repo, mock := newMockJournal(t)

	mock.ExpectExec("INSERT INTO mutation_events").WillReturnError(errors.New("disk full"))

	err := repo.Record(testCtx(t), models.MutationEvent{EntityKind: "device", Outcome: "confirmed"})
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected error, got %v", err)
	}
}

func TestList_NoFilter_ParsesMetadata(t *testing.T) {
	t.Parallel()
	repo, mock := newMockJournal(t)

	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	js, _ := json.Marshal(map[string]any{"desired": true})

	rows := sqlmock.NewRows(eventColumns).
		AddRow("1", now, "device", 1, "power", "confirmed", nil, string(js)).
		AddRow("2", now.Add(time.Minute), "light", 5, "level", "rolled_back", "network error: eof", "{broken").
		AddRow("3", now.Add(2*time.Minute), "light", 5, "is_active", "indeterminate", nil, nil)

	mock.ExpectQuery(regexp.QuoteMeta(selectMutationEventsSQL + " ORDER BY occurred_at ASC")).WillReturnRows(rows)

	got, err := repo.List(testCtx(t), Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("want 3, got %d", len(got))
	}
	if b, _ := json.Marshal(got[0].Metadata); string(b) != string(js) {
		t.Fatalf("metadata mismatch: %s vs %s", b, js)
	}
	if got[1].Error != "network error: eof" || got[1].Metadata != "{broken" {
		t.Fatalf("unexpected second event: %+v", got[1])
	}
	if got[2].Metadata != nil || got[2].Error != "" {
		t.Fatalf("expected empty error and metadata, got %+v", got[2])
	}
}

func TestList_WithFilter(t *testing.T) {
	t.Parallel()
	repo, mock := newMockJournal(t)

	from := time.Date(2026, 1, 1, 11, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	query := selectMutationEventsSQL + ` WHERE occurred_at >= ? AND occurred_at <= ? AND outcome = ? AND entity_kind = ? ORDER BY occurred_at ASC`

	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs(from, to, "rolled_back", "device").
		WillReturnRows(sqlmock.NewRows(eventColumns).AddRow("9", from, "device", 3, "mode", "rolled_back", "x", nil))

	got, err := repo.List(testCtx(t), Filter{From: from, To: to, Outcome: " Rolled_Back ", EntityKind: "DEVICE"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].ID != "9" || got[0].Attribute != "mode" {
		t.Fatalf("unexpected results: %+v", got)
	}
}

func TestList_QueryError(t *testing.T) {
	t.Parallel()
	repo, mock := newMockJournal(t)

	mock.ExpectQuery("SELECT id").WillReturnError(sql.ErrConnDone)

	if _, err := repo.List(testCtx(t), Filter{}); !errors.Is(err, sql.ErrConnDone) {
		t.Fatalf("expected ErrConnDone, got %v", err)
	}
}

func TestList_ScanError(t *testing.T) {
	t.Parallel()
	repo, mock := newMockJournal(t)

	rows := sqlmock.NewRows(eventColumns).AddRow("x", 123, "device", 1, "power", "confirmed", nil, nil)
	mock.ExpectQuery("SELECT id").WillReturnRows(rows)

	if _, err := repo.List(testCtx(t), Filter{}); err == nil {
		t.Fatal("expected scan error, got nil")
	}
}
