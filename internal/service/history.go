package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"smarthome_sync/internal/models"
	"smarthome_sync/internal/repository"
)

// HistoryFilter selects journal entries. Zero fields match everything.
type HistoryFilter struct {
	From       time.Time // inclusive
	To         time.Time // inclusive
	Outcome    string    // confirmed | rolled_back | indeterminate
	EntityKind string    // device | light
}

type HistoryService struct {
	journal repository.Journal
}

func NewHistoryService(journal repository.Journal) *HistoryService {
	return &HistoryService{journal: journal}
}

const (
	layoutDateTime = "2006-01-02 15:04:05"
	layoutDate     = "2006-01-02"
)

// ParseFilterTime accepts RFC3339, "YYYY-MM-DD HH:MM:SS" or "YYYY-MM-DD",
// normalized to UTC. A date-only upper bound covers the whole day.
func ParseFilterTime(s string, upper bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, layoutDateTime, layoutDate} {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if upper && layout == layoutDate {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q: use RFC3339, 'YYYY-MM-DD HH:MM:SS' or 'YYYY-MM-DD'", s)
}

var errInvalidTimeRange = errors.New("invalid time range: From must be <= To")

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

func normalizeFilter(f HistoryFilter) (repository.Filter, error) {
	out := repository.Filter{
		From:       normalizeToUTC(f.From),
		To:         normalizeToUTC(f.To),
		Outcome:    strings.ToLower(strings.TrimSpace(f.Outcome)),
		EntityKind: strings.ToLower(strings.TrimSpace(f.EntityKind)),
	}
	if !out.From.IsZero() && !out.To.IsZero() && out.From.After(out.To) {
		return repository.Filter{}, errInvalidTimeRange
	}
	return out, nil
}

func (s *HistoryService) List(ctx context.Context, f HistoryFilter) ([]models.MutationEvent, error) {
	rf, err := normalizeFilter(f)
	if err != nil {
		return nil, err
	}
	return s.journal.List(ctx, rf)
}
