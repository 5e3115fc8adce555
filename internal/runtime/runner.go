// Package runtime orchestrates a full pipeline run for one tenant: ingest the
// source payload, transform it into the canonical document, consult the graph
// for eligible workers, dispatch every configured destination and record the
// whole run as an execution trace.
package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/moisesoliveira-dev/ServiceCustomerIA/internal/output"
	"github.com/moisesoliveira-dev/ServiceCustomerIA/internal/storage"
	"github.com/moisesoliveira-dev/ServiceCustomerIA/internal/tenant"
	"github.com/moisesoliveira-dev/ServiceCustomerIA/internal/trace"
	"github.com/moisesoliveira-dev/ServiceCustomerIA/internal/transform"
)

// Step names recorded in execution traces.
const (
	StepIngest    = "ingest"
	StepTransform = "transform"
	StepRoute     = "route"
	StepDeliver   = "deliver"
)

// Runner executes pipeline runs. Runs for one tenant are serialized by the
// caller; distinct tenants may run concurrently against distinct companies.
type Runner struct {
	engine   *transform.Engine
	router   *output.Router
	recorder *trace.Recorder
	archive  storage.TraceArchive
	logger   *slog.Logger
	now      func() time.Time
}

// NewRunner wires a runner from its collaborators. The archive may be nil,
// in which case completed traces live only in the recorder.
func NewRunner(engine *transform.Engine, router *output.Router, recorder *trace.Recorder, archive storage.TraceArchive, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		engine:   engine,
		router:   router,
		recorder: recorder,
		archive:  archive,
		logger:   logger,
		now:      time.Now,
	}
}

// Recorder exposes the run recorder for trace reads.
func (r *Runner) Recorder() *trace.Recorder { return r.recorder }

// Run executes the pipeline for the company with the given source payload.
// The returned trace always reflects the run, including failures; the error
// reports why a run stopped early.
func (r *Runner) Run(ctx context.Context, company *tenant.Company, source string) (*trace.Trace, error) {
	sessionID := "ses_" + uuid.New().String()
	traceID := r.recorder.Begin(sessionID)

	r.logger.Info("pipeline run started",
		slog.String("trace_id", traceID),
		slog.String("company_id", company.ID),
		slog.String("crm", string(company.CRM)),
	)

	runErr := r.execute(ctx, traceID, sessionID, company, source)
	if runErr == nil {
		if err := r.recorder.Close(traceID); err != nil {
			return nil, fmt.Errorf("close trace: %w", err)
		}
	}

	tr, _ := r.recorder.Get(traceID)
	r.archiveTrace(company.ID, tr)

	r.logger.Info("pipeline run finished",
		slog.String("trace_id", traceID),
		slog.String("status", string(tr.Status)),
		slog.Duration("duration", tr.Duration),
	)
	return tr, runErr
}

func (r *Runner) execute(ctx context.Context, traceID, sessionID string, company *tenant.Company, source string) error {
	// Ingest: the payload must at least be JSON before it reaches the model.
	var sourceDoc map[string]any
	if err := json.Unmarshal([]byte(source), &sourceDoc); err != nil {
		r.failStep(traceID, StepIngest, map[string]any{"raw": source}, err)
		return fmt.Errorf("source payload is not valid JSON: %w", err)
	}
	r.completeStep(traceID, StepIngest,
		map[string]any{"raw": source},
		map[string]any{"crm": string(company.CRM), "fields": len(sourceDoc)},
	)

	canonical, err := r.engine.Transform(ctx, source, company.CanonicalSchema, company.Ingest.Instructions)
	if err != nil {
		r.failStep(traceID, StepTransform, sourceDoc, err)
		return err
	}
	r.completeStep(traceID, StepTransform, sourceDoc, canonical)

	workers := company.Graph.ReachableWorkers()
	r.completeStep(traceID, StepRoute, canonical, map[string]any{
		"eligible_workers": workers,
		"count":            len(workers),
	})

	vars := r.buildVariables(sessionID, canonical)
	for _, dest := range company.Destinations {
		exec, err := r.router.Dispatch(ctx, dest, vars)
		if err != nil {
			// Template failures and cancellations stop the run; delivery
			// failures never reach here, they are recorded as data.
			r.failStep(traceID, StepDeliver, map[string]any{"destination": dest.Name}, err)
			return err
		}
		r.completeStep(traceID, StepDeliver,
			map[string]any{"destination": dest.Name, "url": dest.URL},
			map[string]any{"status": exec.StatusCode, "duration": exec.Duration.String(), "error": exec.Error},
		)
	}
	return nil
}

// buildVariables exposes the canonical document to templates: the whole
// document as ai.output, each top-level field under the doc namespace, plus
// the run's session ID and timestamp.
func (r *Runner) buildVariables(sessionID string, canonical map[string]any) output.Variables {
	vars := output.Variables{
		"conversation.id":  sessionID,
		"system.timestamp": r.now().Format(time.RFC3339),
	}
	if raw, err := json.Marshal(canonical); err == nil {
		vars["ai.output"] = string(raw)
	}
	if name, ok := canonical["user_name"].(string); ok {
		vars["customer.name"] = name
	}
	return vars.Merge(output.FromDocument("doc", canonical))
}

func (r *Runner) completeStep(traceID, name string, input, outputSnap map[string]any) {
	if err := r.recorder.Append(traceID, name, trace.StepCompleted, input, outputSnap); err != nil {
		r.logger.Error("failed to append step", slog.String("step", name), slog.String("error", err.Error()))
	}
}

func (r *Runner) failStep(traceID, name string, input map[string]any, cause error) {
	err := r.recorder.Append(traceID, name, trace.StepFailed, input, map[string]any{"error": cause.Error()})
	if err != nil && !errors.Is(err, trace.ErrTraceClosed) {
		r.logger.Error("failed to append step", slog.String("step", name), slog.String("error", err.Error()))
	}
}

func (r *Runner) archiveTrace(companyID string, tr *trace.Trace) {
	if r.archive == nil || tr == nil {
		return
	}
	// Archival is decoupled from the run lifecycle; a short timeout keeps a
	// slow store from holding the caller.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.archive.Save(ctx, companyID, tr); err != nil {
		r.logger.Error("failed to archive trace",
			slog.String("trace_id", tr.ID),
			slog.String("company_id", companyID),
			slog.String("error", err.Error()),
		)
	}
}
