package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/moisesoliveira-dev/ServiceCustomerIA/internal/graph"
	"github.com/moisesoliveira-dev/ServiceCustomerIA/internal/output"
	"github.com/moisesoliveira-dev/ServiceCustomerIA/internal/runtime"
	"github.com/moisesoliveira-dev/ServiceCustomerIA/internal/storage"
	"github.com/moisesoliveira-dev/ServiceCustomerIA/internal/tenant"
	"github.com/moisesoliveira-dev/ServiceCustomerIA/internal/transform"
)

// API serves the pipeline REST surface. Graph mutations and pipeline runs go
// through the API mutex so each company sees them one at a time.
type API struct {
	mu sync.Mutex

	store    *tenant.Store
	runner   *runtime.Runner
	engine   *transform.Engine
	dispatch *output.Router
	simulate *output.Router
	archive  storage.TraceArchive
}

func NewAPI(store *tenant.Store, runner *runtime.Runner, engine *transform.Engine, dispatch *output.Router, archive storage.TraceArchive) *API {
	return &API{
		store:    store,
		runner:   runner,
		engine:   engine,
		dispatch: dispatch,
		simulate: output.NewRouter(&output.Simulator{}, nil),
		archive:  archive,
	}
}

// Mount registers all routes on the router.
func (a *API) Mount(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", a.handleHealth)
		r.Get("/variables", a.handleVariables)
		r.Get("/defaults", a.handleDefaults)

		r.Route("/companies", func(r chi.Router) {
			r.Get("/", a.handleListCompanies)
			r.Post("/", a.handleCreateCompany)
			r.Get("/active", a.handleGetActive)
			r.Put("/active", a.handleSetActive)

			r.Route("/{companyID}", func(r chi.Router) {
				r.Get("/", a.handleGetCompany)
				r.Delete("/", a.handleDeleteCompany)
				r.Put("/ingest", a.handleUpdateIngest)
				r.Post("/runs", a.handleRun)
				r.Post("/transform/preview", a.handleTransformPreview)

				r.Route("/graph", func(r chi.Router) {
					r.Get("/", a.handleGetGraph)
					r.Post("/nodes", a.handleAddNode)
					r.Post("/edges", a.handleAddEdge)
					r.Delete("/edges/{edgeID}", a.handleRemoveEdge)
				})

				r.Route("/destinations", func(r chi.Router) {
					r.Get("/", a.handleListDestinations)
					r.Post("/", a.handleAddDestination)
					r.Put("/{destID}", a.handleUpdateDestination)
					r.Delete("/{destID}", a.handleRemoveDestination)
					r.Post("/{destID}/dispatch", a.handleDispatch)
					r.Post("/{destID}/simulate", a.handleSimulate)
					r.Delete("/{destID}/history", a.handleClearHistory)
				})
			})
		})

		r.Route("/traces", func(r chi.Router) {
			r.Get("/", a.handleListTraces)
			r.Get("/{traceID}", a.handleGetTrace)
		})
		r.Get("/archive", a.handleArchive)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":               "ok",
		"generation_available": a.engine.Available(),
	})
}

func (a *API) handleVariables(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"variables": output.KnownVariables})
}

func (a *API) handleDefaults(w http.ResponseWriter, r *http.Request) {
	d := a.store.Defaults()
	writeJSON(w, http.StatusOK, map[string]any{
		"canonical_schema": d.CanonicalSchema,
		"output_template":  d.OutputTemplate,
	})
}

type createCompanyRequest struct {
	Name string `json:"name"`
	CRM  string `json:"crm"`
}

func (a *API) handleListCompanies(w http.ResponseWriter, r *http.Request) {
	a.respondLocked(w, r, http.StatusOK, map[string]any{"companies": a.store.List()})
}

func (a *API) handleCreateCompany(w http.ResponseWriter, r *http.Request) {
	var req createCompanyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	c, err := a.store.Create(req.Name, tenant.CRMType(req.CRM))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	a.respondLocked(w, r, http.StatusCreated, c)
}

func (a *API) handleGetCompany(w http.ResponseWriter, r *http.Request) {
	c, ok := a.store.Get(chi.URLParam(r, "companyID"))
	if !ok {
		writeError(w, r, http.StatusNotFound, tenant.ErrNotFound)
		return
	}
	a.respondLocked(w, r, http.StatusOK, c)
}

func (a *API) handleDeleteCompany(w http.ResponseWriter, r *http.Request) {
	if err := a.store.Delete(chi.URLParam(r, "companyID")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleGetActive(w http.ResponseWriter, r *http.Request) {
	c := a.store.Active()
	if c == nil {
		writeError(w, r, http.StatusNotFound, errors.New("no active company"))
		return
	}
	a.respondLocked(w, r, http.StatusOK, c)
}

func (a *API) handleSetActive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if err := a.store.SetActive(req.ID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	a.respondLocked(w, r, http.StatusOK, a.store.Active())
}

func (a *API) handleUpdateIngest(w http.ResponseWriter, r *http.Request) {
	c, ok := a.store.Get(chi.URLParam(r, "companyID"))
	if !ok {
		writeError(w, r, http.StatusNotFound, tenant.ErrNotFound)
		return
	}
	var cfg tenant.IngestConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	a.mu.Lock()
	c.Ingest = cfg
	a.mu.Unlock()
	writeJSON(w, http.StatusOK, cfg)
}

type runRequest struct {
	Source string `json:"source"`
}

func (a *API) handleRun(w http.ResponseWriter, r *http.Request) {
	c, ok := a.store.Get(chi.URLParam(r, "companyID"))
	if !ok {
		writeError(w, r, http.StatusNotFound, tenant.ErrNotFound)
		return
	}
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	a.mu.Lock()
	source := req.Source
	if source == "" {
		source = c.Ingest.SourceSample
	}
	tr, err := a.runner.Run(r.Context(), c, source)
	a.mu.Unlock()
	if err != nil {
		AddError(r.Context(), err)
	}
	// The trace reports the run outcome, failures included.
	writeJSON(w, http.StatusOK, tr)
}

func (a *API) handleTransformPreview(w http.ResponseWriter, r *http.Request) {
	c, ok := a.store.Get(chi.URLParam(r, "companyID"))
	if !ok {
		writeError(w, r, http.StatusNotFound, tenant.ErrNotFound)
		return
	}
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	// Snapshot the ingest config so a concurrent edit cannot race the read;
	// the generation call itself runs outside the lock.
	a.mu.Lock()
	source := req.Source
	if source == "" {
		source = c.Ingest.SourceSample
	}
	instructions := c.Ingest.Instructions
	a.mu.Unlock()

	doc, err := a.engine.Transform(r.Context(), source, c.CanonicalSchema, instructions)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

type graphResponse struct {
	Nodes []graph.Node `json:"nodes"`
	Edges []graph.Edge `json:"edges"`
}

func (a *API) handleGetGraph(w http.ResponseWriter, r *http.Request) {
	c, ok := a.store.Get(chi.URLParam(r, "companyID"))
	if !ok {
		writeError(w, r, http.StatusNotFound, tenant.ErrNotFound)
		return
	}

	a.mu.Lock()
	resp := graphResponse{Nodes: c.Graph.Nodes(), Edges: c.Graph.Edges()}
	a.mu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}

type addNodeRequest struct {
	Kind graph.Kind     `json:"kind"`
	Meta graph.Metadata `json:"meta"`
}

func (a *API) handleAddNode(w http.ResponseWriter, r *http.Request) {
	c, ok := a.store.Get(chi.URLParam(r, "companyID"))
	if !ok {
		writeError(w, r, http.StatusNotFound, tenant.ErrNotFound)
		return
	}
	var req addNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	a.mu.Lock()
	id, err := c.Graph.AddNode(req.Kind, req.Meta)
	var node graph.Node
	if err == nil {
		node, _ = c.Graph.Node(id)
	}
	a.mu.Unlock()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, node)
}

type addEdgeRequest struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

func (a *API) handleAddEdge(w http.ResponseWriter, r *http.Request) {
	c, ok := a.store.Get(chi.URLParam(r, "companyID"))
	if !ok {
		writeError(w, r, http.StatusNotFound, tenant.ErrNotFound)
		return
	}
	var req addEdgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	a.mu.Lock()
	id, err := c.Graph.Connect(req.Source, req.Target)
	a.mu.Unlock()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (a *API) handleRemoveEdge(w http.ResponseWriter, r *http.Request) {
	c, ok := a.store.Get(chi.URLParam(r, "companyID"))
	if !ok {
		writeError(w, r, http.StatusNotFound, tenant.ErrNotFound)
		return
	}

	a.mu.Lock()
	err := c.Graph.RemoveEdge(chi.URLParam(r, "edgeID"))
	a.mu.Unlock()
	if err != nil {
		// The only removal failure is an unknown edge.
		writeError(w, r, http.StatusNotFound, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleListDestinations(w http.ResponseWriter, r *http.Request) {
	c, ok := a.store.Get(chi.URLParam(r, "companyID"))
	if !ok {
		writeError(w, r, http.StatusNotFound, tenant.ErrNotFound)
		return
	}
	a.respondLocked(w, r, http.StatusOK, map[string]any{"destinations": c.Destinations})
}

func (a *API) handleAddDestination(w http.ResponseWriter, r *http.Request) {
	var cfg output.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	a.mu.Lock()
	d, err := a.store.AddDestination(chi.URLParam(r, "companyID"), cfg)
	a.mu.Unlock()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	a.respondLocked(w, r, http.StatusCreated, d)
}

func (a *API) handleUpdateDestination(w http.ResponseWriter, r *http.Request) {
	var cfg output.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	a.mu.Lock()
	d, err := a.store.UpdateDestination(chi.URLParam(r, "companyID"), chi.URLParam(r, "destID"), cfg)
	a.mu.Unlock()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	a.respondLocked(w, r, http.StatusOK, d)
}

func (a *API) handleRemoveDestination(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	err := a.store.RemoveDestination(chi.URLParam(r, "companyID"), chi.URLParam(r, "destID"))
	a.mu.Unlock()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type dispatchRequest struct {
	Variables map[string]string `json:"variables"`
}

func (a *API) handleDispatch(w http.ResponseWriter, r *http.Request) {
	a.deliver(w, r, a.dispatch)
}

// handleSimulate runs the destination against the simulator instead of the
// network. The canned execution lands in history like a real one.
func (a *API) handleSimulate(w http.ResponseWriter, r *http.Request) {
	a.deliver(w, r, a.simulate)
}

func (a *API) deliver(w http.ResponseWriter, r *http.Request, router *output.Router) {
	c, ok := a.store.Get(chi.URLParam(r, "companyID"))
	if !ok {
		writeError(w, r, http.StatusNotFound, tenant.ErrNotFound)
		return
	}
	var req dispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	a.mu.Lock()
	d, ok := c.Destination(chi.URLParam(r, "destID"))
	if !ok {
		a.mu.Unlock()
		writeError(w, r, http.StatusNotFound, tenant.ErrNotFound)
		return
	}
	exec, err := router.Dispatch(r.Context(), d, output.Variables(req.Variables))
	a.mu.Unlock()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exec)
}

func (a *API) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	c, ok := a.store.Get(chi.URLParam(r, "companyID"))
	if !ok {
		writeError(w, r, http.StatusNotFound, tenant.ErrNotFound)
		return
	}
	a.mu.Lock()
	d, ok := c.Destination(chi.URLParam(r, "destID"))
	if !ok {
		a.mu.Unlock()
		writeError(w, r, http.StatusNotFound, tenant.ErrNotFound)
		return
	}
	d.ClearHistory()
	a.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleListTraces(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"traces": a.runner.Recorder().List()})
}

func (a *API) handleGetTrace(w http.ResponseWriter, r *http.Request) {
	tr, ok := a.runner.Recorder().Get(chi.URLParam(r, "traceID"))
	if !ok {
		writeError(w, r, http.StatusNotFound, errors.New("trace not found"))
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

func (a *API) handleArchive(w http.ResponseWriter, r *http.Request) {
	opts := storage.ListOptions{
		CompanyID: r.URL.Query().Get("company_id"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		opts.Limit, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		opts.Offset, _ = strconv.Atoi(v)
	}

	recs, err := a.archive.List(r.Context(), opts)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": recs})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// respondLocked marshals v while holding the API mutex so live company
// state is never encoded concurrently with a mutation.
func (a *API) respondLocked(w http.ResponseWriter, r *http.Request, status int, v any) {
	a.mu.Lock()
	raw, err := json.Marshal(v)
	a.mu.Unlock()
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(raw)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	AddError(r.Context(), err)
	writeJSON(w, status, errorResponse{Error: err.Error(), Code: string(graph.CodeOf(err))})
}

// writeDomainError maps typed domain errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var tooLarge *transform.PromptTooLargeError
	switch {
	case errors.Is(err, tenant.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, tenant.ErrInvalid):
		status = http.StatusBadRequest
	case errors.Is(err, graph.ErrValidation), errors.Is(err, output.ErrInvalidBodyTemplate):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, transform.ErrGenerationUnavailable):
		status = http.StatusServiceUnavailable
	case transform.IsMalformedResponse(err):
		status = http.StatusBadGateway
	case errors.As(err, &tooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		status = http.StatusGatewayTimeout
	}
	writeError(w, r, status, err)
}
