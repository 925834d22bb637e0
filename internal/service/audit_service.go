package service

import (
	"context"
	"sync"
	"time"

	"github.com/Drix10/hypothesis-arena-sub001/internal/model"
	"github.com/Drix10/hypothesis-arena-sub001/internal/pkg/logger"
)

const (
	auditQueueSize = 256
	auditRingSize  = 512
	insertTimeout  = 5 * time.Second
)

// DecisionStore is the durable sink. Nil store means buffer-only mode.
type DecisionStore interface {
	Insert(ctx context.Context, rec *model.DecisionRecord) error
	List(ctx context.Context, symbol string, limit int) ([]model.DecisionRecord, error)
}

// AuditService ingests decision records asynchronously so the trading
// pipeline never blocks on persistence. Records land in an in-memory ring
// regardless, and in Postgres when a store is attached.
type AuditService struct {
	store DecisionStore

	queue chan *model.DecisionRecord
	done  chan struct{}

	mu   sync.RWMutex
	ring []*model.DecisionRecord
	next int
}

func NewAuditService(store DecisionStore) *AuditService {
	s := &AuditService{
		store: store,
		queue: make(chan *model.DecisionRecord, auditQueueSize),
		done:  make(chan struct{}),
		ring:  make([]*model.DecisionRecord, 0, auditRingSize),
	}
	go s.consume()
	return s
}

// Record enqueues without blocking. A full queue drops the record from
// the durable path but still keeps it in the ring.
func (s *AuditService) Record(rec *model.DecisionRecord) {
	s.remember(rec)
	select {
	case s.queue <- rec:
	default:
		logger.Warn("audit queue full, record kept in memory only", "id", rec.ID)
	}
}

func (s *AuditService) remember(rec *model.DecisionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ring) < auditRingSize {
		s.ring = append(s.ring, rec)
		return
	}
	s.ring[s.next] = rec
	s.next = (s.next + 1) % auditRingSize
}

func (s *AuditService) consume() {
	defer close(s.done)
	for rec := range s.queue {
		if s.store == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
		if err := s.store.Insert(ctx, rec); err != nil {
			logger.Error("decision insert failed", "id", rec.ID, "error", err)
		}
		cancel()
	}
}

// List prefers the durable store and falls back to the ring.
func (s *AuditService) List(ctx context.Context, symbol string, limit int) ([]model.DecisionRecord, error) {
	if s.store != nil {
		recs, err := s.store.List(ctx, symbol, limit)
		if err == nil {
			return recs, nil
		}
		logger.Warn("decision store list failed, serving ring buffer", "error", err)
	}
	return s.listRing(symbol, limit), nil
}

func (s *AuditService) listRing(symbol string, limit int) []model.DecisionRecord {
	if limit <= 0 {
		limit = 100
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.DecisionRecord, 0, limit)
	// Walk newest-first from the ring cursor.
	for i := len(s.ring) - 1; i >= 0 && len(out) < limit; i-- {
		idx := (s.next + i) % len(s.ring)
		rec := s.ring[idx]
		if rec == nil {
			continue
		}
		if symbol != "" && rec.Symbol != symbol {
			continue
		}
		out = append(out, *rec)
	}
	return out
}

// Close drains the queue, then waits for the consumer to finish.
func (s *AuditService) Close() {
	close(s.queue)
	select {
	case <-s.done:
	case <-time.After(insertTimeout):
		logger.Warn("audit consumer did not drain in time")
	}
}
