package output

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Router interpolates canonical documents into destination templates and
// performs delivery, recording every attempt in the destination's history.
type Router struct {
	deliverer Deliverer
	logger    *slog.Logger
	now       func() time.Time
}

// NewRouter creates a router delivering through the given collaborator.
func NewRouter(deliverer Deliverer, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		deliverer: deliverer,
		logger:    logger,
		now:       time.Now,
	}
}

// Dispatch renders the destination's body template with vars and delivers it.
// Template failures are returned before any network attempt and leave the
// history untouched. Delivery failures are downgraded to data: the attempt is
// recorded with its error and a zero status code, and no error is returned.
// Context cancellation commits nothing.
func (r *Router) Dispatch(ctx context.Context, dest *Destination, vars Variables) (Execution, error) {
	payload, body, err := RenderBody(dest.BodyTemplate, vars)
	if err != nil {
		return Execution{}, err
	}

	result, err := r.deliverer.Send(ctx, dest.Method, dest.URL, dest.Headers, body)
	if ctx.Err() != nil {
		// Cancelled mid-flight: nothing may be observable.
		return Execution{}, ctx.Err()
	}

	exec := Execution{
		ID:        "exec_" + uuid.New().String(),
		Timestamp: r.now(),
		Payload:   payload,
	}

	if err != nil {
		exec.Error = err.Error()
		r.logger.Warn("delivery failed",
			slog.String("destination", dest.ID),
			slog.String("url", dest.URL),
			slog.String("error", err.Error()),
		)
	} else {
		exec.StatusCode = result.StatusCode
		exec.Duration = result.Duration
		exec.Response = parseResponse(result.Body)
		r.logger.Info("delivery completed",
			slog.String("destination", dest.ID),
			slog.Int("status", result.StatusCode),
			slog.Duration("duration", result.Duration),
		)
	}

	dest.recordExecution(exec)
	return exec, nil
}

func parseResponse(body string) map[string]any {
	if body == "" {
		return nil
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return map[string]any{"raw": body}
	}
	return doc
}
