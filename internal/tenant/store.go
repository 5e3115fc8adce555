package tenant

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/moisesoliveira-dev/ServiceCustomerIA/internal/graph"
	"github.com/moisesoliveira-dev/ServiceCustomerIA/internal/output"
	"github.com/moisesoliveira-dev/ServiceCustomerIA/internal/schema"
)

// ErrNotFound is returned when a company or destination does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalid is returned when a mutation carries bad input.
var ErrInvalid = errors.New("invalid input")

// Store holds all companies for a session. The mutex guards membership and
// the active selection; mutations inside one company are serialized per
// tenant by the surrounding application.
type Store struct {
	mu        sync.RWMutex
	defaults  schema.Defaults
	companies map[string]*Company
	order     []string
	activeID  string

	historyCap int
}

// StoreOption configures a store.
type StoreOption func(*Store)

// WithHistoryCap sets the delivery history cap applied to new destinations.
func WithHistoryCap(cap int) StoreOption {
	return func(s *Store) {
		s.historyCap = cap
	}
}

// NewStore creates an empty store seeded with the global defaults. The
// defaults are cloned up front so later edits to the caller's copy cannot
// leak into tenants.
func NewStore(defaults schema.Defaults, opts ...StoreOption) *Store {
	s := &Store{
		defaults:   defaults.Clone(),
		companies:  make(map[string]*Company),
		historyCap: output.DefaultHistoryCap,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create adds a company and makes it the active tenant. The canonical schema
// and output template are deep-copied from the global defaults; the pipeline
// graph is seeded with the canonical backbone.
func (s *Store) Create(name string, crm CRMType) (*Company, error) {
	if name == "" {
		return nil, fmt.Errorf("company name must not be empty: %w", ErrInvalid)
	}
	if !crm.Valid() {
		return nil, fmt.Errorf("unknown CRM type %q: %w", crm, ErrInvalid)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := &Company{
		ID:              "comp_" + uuid.New().String(),
		Name:            name,
		CRM:             crm,
		CanonicalSchema: schema.DeepCopy(s.defaults.CanonicalSchema),
		OutputTemplate:  schema.DeepCopy(s.defaults.OutputTemplate),
		Ingest: IngestConfig{
			Instructions: fmt.Sprintf("Default mapping instructions for %s payloads.", crm),
			SourceSample: schema.SampleSourceDocument,
		},
		Graph: graph.New(),
	}

	s.companies[c.ID] = c
	s.order = append(s.order, c.ID)
	s.activeID = c.ID
	return c, nil
}

// Delete removes a company. Deleting the active tenant atomically promotes
// the first remaining company, or clears the selection when none remain.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.companies[id]; !ok {
		return fmt.Errorf("company %s: %w", id, ErrNotFound)
	}

	delete(s.companies, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	if s.activeID == id {
		if len(s.order) > 0 {
			s.activeID = s.order[0]
		} else {
			s.activeID = ""
		}
	}
	return nil
}

// SetActive selects the active tenant.
func (s *Store) SetActive(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.companies[id]; !ok {
		return fmt.Errorf("company %s: %w", id, ErrNotFound)
	}
	s.activeID = id
	return nil
}

// Active returns the active company, or nil when the store is empty.
func (s *Store) Active() *Company {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.activeID == "" {
		return nil
	}
	return s.companies[s.activeID]
}

// Get returns a company by ID.
func (s *Store) Get(id string) (*Company, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.companies[id]
	return c, ok
}

// List returns all companies in creation order.
func (s *Store) List() []*Company {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Company, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.companies[id])
	}
	return out
}

// Defaults returns a clone of the global defaults.
func (s *Store) Defaults() schema.Defaults {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaults.Clone()
}

// AddDestination creates a destination for the company with the store's
// history cap applied.
func (s *Store) AddDestination(companyID string, cfg output.Config) (*output.Destination, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.companies[companyID]
	if !ok {
		return nil, fmt.Errorf("company %s: %w", companyID, ErrNotFound)
	}
	if !cfg.Method.Valid() {
		return nil, fmt.Errorf("unsupported method %q: %w", cfg.Method, ErrInvalid)
	}

	d := &output.Destination{
		ID:         "dest_" + uuid.New().String(),
		HistoryCap: s.historyCap,
	}
	d.Update(cfg)
	c.Destinations = append(c.Destinations, d)
	return d, nil
}

// UpdateDestination replaces a destination's configurable fields, keeping its
// identity and history.
func (s *Store) UpdateDestination(companyID, destID string, cfg output.Config) (*output.Destination, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.companies[companyID]
	if !ok {
		return nil, fmt.Errorf("company %s: %w", companyID, ErrNotFound)
	}
	d, ok := c.Destination(destID)
	if !ok {
		return nil, fmt.Errorf("destination %s: %w", destID, ErrNotFound)
	}
	if !cfg.Method.Valid() {
		return nil, fmt.Errorf("unsupported method %q: %w", cfg.Method, ErrInvalid)
	}
	d.Update(cfg)
	return d, nil
}

// RemoveDestination deletes a destination from the company.
func (s *Store) RemoveDestination(companyID, destID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.companies[companyID]
	if !ok {
		return fmt.Errorf("company %s: %w", companyID, ErrNotFound)
	}
	for i, d := range c.Destinations {
		if d.ID == destID {
			c.Destinations = append(c.Destinations[:i], c.Destinations[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("destination %s: %w", destID, ErrNotFound)
}
