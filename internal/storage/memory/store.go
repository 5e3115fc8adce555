// Package memory is the in-memory trace archive used when no persistent
// storage is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/moisesoliveira-dev/ServiceCustomerIA/internal/storage"
	"github.com/moisesoliveira-dev/ServiceCustomerIA/internal/trace"
)

// Store is an in-memory implementation of TraceArchive.
type Store struct {
	mu      sync.RWMutex
	records map[string]*storage.Record
	order   []string
}

// New creates a new in-memory archive.
func New() *Store {
	return &Store{
		records: make(map[string]*storage.Record),
	}
}

func (s *Store) Save(ctx context.Context, companyID string, tr *trace.Trace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[tr.ID]; exists {
		return fmt.Errorf("trace %s already archived", tr.ID)
	}

	s.records[tr.ID] = &storage.Record{CompanyID: companyID, Trace: tr}
	s.order = append(s.order, tr.ID)
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*storage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.records[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return rec, nil
}

func (s *Store) List(ctx context.Context, opts storage.ListOptions) ([]*storage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Most recent first.
	var result []*storage.Record
	for i := len(s.order) - 1; i >= 0; i-- {
		rec := s.records[s.order[i]]
		if opts.CompanyID != "" && rec.CompanyID != opts.CompanyID {
			continue
		}
		result = append(result, rec)
	}

	start := opts.Offset
	if start >= len(result) {
		return []*storage.Record{}, nil
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}
	return result[start:end], nil
}

func (s *Store) Close() error {
	return nil
}

var _ storage.TraceArchive = (*Store)(nil)
