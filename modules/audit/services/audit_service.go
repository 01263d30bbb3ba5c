package services

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/itamops/assetman/modules/audit/domain/audit"
)

type Filter struct {
	SubjectID *uuid.UUID
	EventType *string
	ActorID   *uuid.UUID
	Limit     int
}

type AuditRepository interface {
	Insert(ctx context.Context, e *audit.Event) error
	MaxSeq(ctx context.Context) (int64, error)
	List(ctx context.Context, f Filter) ([]audit.Event, error)
}

// AuditService owns the append-only event sequence. Coordinator services are
// the only writers; external callers only query.
type AuditService struct {
	repo AuditRepository
	seq  atomic.Int64
}

func NewAuditService(repo AuditRepository) *AuditService {
	return &AuditService{repo: repo}
}

// Load primes the sequence counter from durable storage. Call once at startup
// before any Append.
func (s *AuditService) Load(ctx context.Context) error {
	max, err := s.repo.MaxSeq(ctx)
	if err != nil {
		return err
	}
	s.seq.Store(max)
	return nil
}

// Append assigns the next sequence number and writes the event inside the
// caller's transaction. A rolled-back append leaves a gap in the sequence,
// which is fine: ordering requires monotonicity, not density.
func (s *AuditService) Append(ctx context.Context, e *audit.Event) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	e.Seq = s.seq.Add(1)
	return s.repo.Insert(ctx, e)
}

// Query lists events descending by occurrence time, sequence number breaking
// ties.
func (s *AuditService) Query(ctx context.Context, f Filter) ([]audit.Event, error) {
	if f.Limit <= 0 {
		f.Limit = 100
	}
	return s.repo.List(ctx, f)
}
