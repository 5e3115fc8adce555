package runtime

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/moisesoliveira-dev/ServiceCustomerIA/internal/output"
	"github.com/moisesoliveira-dev/ServiceCustomerIA/internal/schema"
	"github.com/moisesoliveira-dev/ServiceCustomerIA/internal/storage"
	"github.com/moisesoliveira-dev/ServiceCustomerIA/internal/storage/memory"
	"github.com/moisesoliveira-dev/ServiceCustomerIA/internal/tenant"
	"github.com/moisesoliveira-dev/ServiceCustomerIA/internal/trace"
	"github.com/moisesoliveira-dev/ServiceCustomerIA/internal/transform"
)

func newTestRunner(t *testing.T, gen transform.GeneratorFunc, deliverer output.Deliverer) (*Runner, *memory.Store) {
	t.Helper()
	archive := memory.New()
	runner := NewRunner(
		transform.NewEngine(gen, nil),
		output.NewRouter(deliverer, nil),
		trace.NewRecorder(),
		archive,
		nil,
	)
	return runner, archive
}

func newTestCompany(t *testing.T) (*tenant.Store, *tenant.Company) {
	t.Helper()
	store := tenant.NewStore(schema.NewDefaults())
	company, err := store.Create("Acme Corp", tenant.CRMSalesforce)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return store, company
}

func stepNames(tr *trace.Trace) []string {
	names := make([]string, len(tr.Steps))
	for i, s := range tr.Steps {
		names[i] = s.Name
	}
	return names
}

func TestRun_Success(t *testing.T) {
	gen := transform.GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		return `{"user_name": "Jane Doe", "issue_title": "Login broken"}`, nil
	})
	runner, archive := newTestRunner(t, gen, &output.Simulator{})
	store, company := newTestCompany(t)

	if _, err := store.AddDestination(company.ID, output.Config{
		Name:         "CRM Callback",
		URL:          "https://crm.example.com/hook",
		Method:       output.MethodPost,
		BodyTemplate: `{"who": "{{customer.name}}", "at": "{{system.timestamp}}"}`,
	}); err != nil {
		t.Fatalf("AddDestination: %v", err)
	}

	tr, err := runner.Run(context.Background(), company, schema.SampleSourceDocument)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if tr.Status != trace.StatusSuccess {
		t.Fatalf("status = %s, want %s", tr.Status, trace.StatusSuccess)
	}

	want := []string{StepIngest, StepTransform, StepRoute, StepDeliver}
	got := stepNames(tr)
	if len(got) != len(want) {
		t.Fatalf("steps = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("step[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	if dest := company.Destinations[0]; len(dest.History) != 1 {
		t.Fatalf("history length = %d, want 1", len(dest.History))
	} else if !dest.History[0].Succeeded() {
		t.Fatalf("delivery did not succeed: %+v", dest.History[0])
	}

	recs, err := archive.List(context.Background(), storage.ListOptions{CompanyID: company.ID})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 1 || recs[0].Trace.ID != tr.ID {
		t.Fatalf("archive records = %+v, want trace %s", recs, tr.ID)
	}
}

func TestRun_BadSourceFailsIngest(t *testing.T) {
	gen := transform.GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		t.Fatal("generator must not run for unparseable input")
		return "", nil
	})
	runner, _ := newTestRunner(t, gen, &output.Simulator{})
	_, company := newTestCompany(t)

	tr, err := runner.Run(context.Background(), company, "not json at all")
	if err == nil {
		t.Fatal("expected error for non-JSON source")
	}
	if tr.Status != trace.StatusFailure {
		t.Fatalf("status = %s, want %s", tr.Status, trace.StatusFailure)
	}
	if len(tr.Steps) != 1 || tr.Steps[0].Name != StepIngest || tr.Steps[0].Status != trace.StepFailed {
		t.Fatalf("steps = %+v, want single failed ingest step", tr.Steps)
	}
}

func TestRun_GeneratorFailureClosesTrace(t *testing.T) {
	genErr := errors.New("model unavailable")
	gen := transform.GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		return "", genErr
	})
	runner, _ := newTestRunner(t, gen, &output.Simulator{})
	_, company := newTestCompany(t)

	tr, err := runner.Run(context.Background(), company, schema.SampleSourceDocument)
	if !errors.Is(err, genErr) {
		t.Fatalf("err = %v, want %v", err, genErr)
	}
	if tr.Status != trace.StatusFailure {
		t.Fatalf("status = %s, want %s", tr.Status, trace.StatusFailure)
	}
	last := tr.Steps[len(tr.Steps)-1]
	if last.Name != StepTransform || last.Status != trace.StepFailed {
		t.Fatalf("last step = %+v, want failed transform", last)
	}
}

func TestRun_InvalidTemplateFailsDeliverStep(t *testing.T) {
	gen := transform.GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		return `{"user_name": "Jane"}`, nil
	})
	runner, _ := newTestRunner(t, gen, &output.Simulator{})
	store, company := newTestCompany(t)

	if _, err := store.AddDestination(company.ID, output.Config{
		Name:         "Broken",
		URL:          "https://example.com",
		Method:       output.MethodPost,
		BodyTemplate: `{"oops": `,
	}); err != nil {
		t.Fatalf("AddDestination: %v", err)
	}

	tr, err := runner.Run(context.Background(), company, schema.SampleSourceDocument)
	if !errors.Is(err, output.ErrInvalidBodyTemplate) {
		t.Fatalf("err = %v, want %v", err, output.ErrInvalidBodyTemplate)
	}
	if tr.Status != trace.StatusFailure {
		t.Fatalf("status = %s, want %s", tr.Status, trace.StatusFailure)
	}
	if len(company.Destinations[0].History) != 0 {
		t.Fatal("invalid template must not record an execution")
	}
}

func TestRun_DeliveryFailureIsData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	gen := transform.GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		return `{"user_name": "Jane"}`, nil
	})
	runner, _ := newTestRunner(t, gen, output.NewHTTPDeliverer(0))
	store, company := newTestCompany(t)

	if _, err := store.AddDestination(company.ID, output.Config{
		Name:         "Flaky",
		URL:          srv.URL,
		Method:       output.MethodPost,
		BodyTemplate: `{"name": "{{customer.name}}"}`,
	}); err != nil {
		t.Fatalf("AddDestination: %v", err)
	}

	tr, err := runner.Run(context.Background(), company, schema.SampleSourceDocument)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if tr.Status != trace.StatusSuccess {
		t.Fatalf("status = %s, want %s; non-2xx responses are recorded, not fatal", tr.Status, trace.StatusSuccess)
	}
	hist := company.Destinations[0].History
	if len(hist) != 1 || hist[0].StatusCode != http.StatusBadGateway {
		t.Fatalf("history = %+v, want one 502 entry", hist)
	}
}

func TestRun_VariablesReachTemplate(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	gen := transform.GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		return `{"user_name": "Jane Doe", "issue_urgency": "high"}`, nil
	})
	runner, _ := newTestRunner(t, gen, output.NewHTTPDeliverer(0))
	store, company := newTestCompany(t)

	if _, err := store.AddDestination(company.ID, output.Config{
		Name:         "Echo",
		URL:          srv.URL,
		Method:       output.MethodPost,
		BodyTemplate: `{"name": "{{customer.name}}", "urgency": "{{doc.issue_urgency}}", "session": "{{conversation.id}}"}`,
	}); err != nil {
		t.Fatalf("AddDestination: %v", err)
	}

	if _, err := runner.Run(context.Background(), company, schema.SampleSourceDocument); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, frag := range []string{`"name": "Jane Doe"`, `"urgency": "high"`, `"session": "ses_`} {
		if !strings.Contains(body, frag) {
			t.Fatalf("delivered body %q missing %q", body, frag)
		}
	}
}
