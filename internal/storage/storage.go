// Package storage defines the archive for completed execution traces. The
// in-memory implementation is the default; the sqlite implementation persists
// across restarts when configured.
package storage

import (
	"context"
	"errors"

	"github.com/moisesoliveira-dev/ServiceCustomerIA/internal/trace"
)

// ErrNotFound is returned when a trace is not in the archive.
var ErrNotFound = errors.New("trace not found")

// Record is an archived trace together with the company it ran for.
type Record struct {
	CompanyID string       `json:"company_id"`
	Trace     *trace.Trace `json:"trace"`
}

// ListOptions filters and pages archive listings.
type ListOptions struct {
	CompanyID string
	Limit     int
	Offset    int
}

// TraceArchive stores completed traces. Implementations must be safe for
// concurrent use.
type TraceArchive interface {
	Save(ctx context.Context, companyID string, tr *trace.Trace) error
	Get(ctx context.Context, id string) (*Record, error)
	List(ctx context.Context, opts ListOptions) ([]*Record, error)
	Close() error
}
