package audit

import (
	"context"
	"errors"
	"time"

	"github.com/DawitTemesgen1/akilesiya-backend/core"
)

var ErrNotFound = errors.New("change log not found")

// TrailLimit caps the audit report at the most recent rows.
const TrailLimit = 100

type (
	Repository interface {
		// Record appends one audit entry; the caller decides the executor,
		// typically the surrounding transaction.
		Record(ctx context.Context, entry Entry, exec ...core.DBExecutor) error
		// Trail returns the tenant's entries newest first, optionally
		// filtered to the given action types, capped at limit rows.
		Trail(ctx context.Context, tenantID string, actionTypes []string, limit int, exec ...core.DBExecutor) ([]TrailEntry, error)

		RecordChange(ctx context.Context, change ChangeLog, exec ...core.DBExecutor) error
		QueryChanges(ctx context.Context, userID string, unreviewedOnly bool, exec ...core.DBExecutor) ([]ChangeLog, error)
		MarkChangeReviewed(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service interface {
		Record(ctx context.Context, entry Entry, exec ...core.DBExecutor) error
		Trail(ctx context.Context, tenantID string, actionTypes []string) ([]TrailEntry, error)
		RecordChange(ctx context.Context, change ChangeLog, exec ...core.DBExecutor) error
		QueryChanges(ctx context.Context, userID string, unreviewedOnly bool) ([]ChangeLog, error)
		ReviewChange(ctx context.Context, id string) error
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Record(ctx context.Context, entry Entry, exec ...core.DBExecutor) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	return svc.repo.Record(ctx, entry, exec...)
}

func (svc *service) Trail(ctx context.Context, tenantID string, actionTypes []string) ([]TrailEntry, error) {
	return svc.repo.Trail(ctx, tenantID, actionTypes, TrailLimit)
}

func (svc *service) RecordChange(ctx context.Context, change ChangeLog, exec ...core.DBExecutor) error {
	if change.CreatedAt.IsZero() {
		change.CreatedAt = time.Now().UTC()
	}
	return svc.repo.RecordChange(ctx, change, exec...)
}

func (svc *service) QueryChanges(ctx context.Context, userID string, unreviewedOnly bool) ([]ChangeLog, error) {
	return svc.repo.QueryChanges(ctx, userID, unreviewedOnly)
}

func (svc *service) ReviewChange(ctx context.Context, id string) error {
	return svc.repo.MarkChangeReviewed(ctx, id)
}
