package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/movieweb/internal/metrics"
	"github.com/desertthunder/movieweb/internal/models"
	"github.com/desertthunder/movieweb/internal/shared"
	"github.com/desertthunder/movieweb/internal/tasks"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// LibraryReader is the read and delete side of the library store.
//
// Implemented by [repositories.LibraryRepository].
type LibraryReader interface {
	Get(ctx context.Context, accountID, entryID string) (*models.LibraryEntry, error)
	Delete(ctx context.Context, accountID, entryID string) error
	List(ctx context.Context, accountID string, filter models.ListFilter) iter.Seq2[*models.LibraryEntry, error]
}

// LibraryHandler serves the /library JSON API for the authenticated account.
type LibraryHandler struct {
	reconciler tasks.Reconciler
	library    LibraryReader
	logger     *log.Logger
}

// NewLibraryHandler creates a LibraryHandler.
func NewLibraryHandler(reconciler tasks.Reconciler, library LibraryReader, logger *log.Logger) *LibraryHandler {
	return &LibraryHandler{reconciler: reconciler, library: library, logger: logger}
}

// Register adds the library routes to router, each behind auth.
func (h *LibraryHandler) Register(router Router, auth Middleware) {
	router.Handle(http.MethodGet, "/library", auth(http.HandlerFunc(h.list)))
	router.Handle(http.MethodPost, "/library", auth(http.HandlerFunc(h.add)))
	router.Handle(http.MethodPost, "/library/preview", auth(http.HandlerFunc(h.preview)))
	router.Handle(http.MethodGet, "/library/{id}", auth(http.HandlerFunc(h.get)))
	router.Handle(http.MethodPatch, "/library/{id}", auth(http.HandlerFunc(h.edit)))
	router.Handle(http.MethodDelete, "/library/{id}", auth(http.HandlerFunc(h.remove)))
}

// titleRequest is the body of POST /library and POST /library/preview.
type titleRequest struct {
	Title string    `json:"title"`
	Year  yearParam `json:"year,omitempty"`
}

// yearParam accepts a year sent either as a JSON number or a string.
type yearParam string

func (y *yearParam) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*y = yearParam(s)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("year must be a number or string")
	}
	*y = yearParam(strconv.Itoa(n))
	return nil
}

type addResponse struct {
	State string               `json:"state"`
	Entry *models.LibraryEntry `json:"entry"`
}

type listResponse struct {
	Entries []*models.LibraryEntry `json:"entries"`
	Count   int                    `json:"count"`
}

func (h *LibraryHandler) list(w http.ResponseWriter, r *http.Request) {
	accountID, _ := AccountFromContext(r.Context())

	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}

	entries := []*models.LibraryEntry{}
	for entry, err := range h.library.List(r.Context(), accountID, filter) {
		if err != nil {
			writeError(w, err)
			return
		}
		entries = append(entries, entry)
	}

	writeJSON(w, http.StatusOK, listResponse{Entries: entries, Count: len(entries)})
}

func (h *LibraryHandler) add(w http.ResponseWriter, r *http.Request) {
	accountID, _ := AccountFromContext(r.Context())

	var req titleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.reconciler.AddByTitle(r.Context(), nil, accountID, req.Title, string(req.Year))
	if err != nil {
		h.logger.Debug("add rejected", "account", accountID, "title", req.Title, "state", result.State, "error", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, addResponse{State: result.State.String(), Entry: result.Entry})
}

func (h *LibraryHandler) preview(w http.ResponseWriter, r *http.Request) {
	var req titleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	fields, err := h.reconciler.Preview(r.Context(), req.Title, string(req.Year))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"preview": fields})
}

func (h *LibraryHandler) get(w http.ResponseWriter, r *http.Request) {
	accountID, _ := AccountFromContext(r.Context())

	entry, err := h.library.Get(r.Context(), accountID, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

func (h *LibraryHandler) edit(w http.ResponseWriter, r *http.Request) {
	accountID, _ := AccountFromContext(r.Context())

	var fields models.EditableFields
	if err := decodeJSON(r, &fields); err != nil {
		writeError(w, err)
		return
	}

	entry, err := h.reconciler.Edit(r.Context(), accountID, r.PathValue("id"), fields)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

func (h *LibraryHandler) remove(w http.ResponseWriter, r *http.Request) {
	accountID, _ := AccountFromContext(r.Context())

	if err := h.library.Delete(r.Context(), accountID, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("entry deleted", "account", accountID, "entry", r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

// parseFilter reads the title, year, genre, and limit query parameters.
func parseFilter(r *http.Request) (models.ListFilter, error) {
	q := r.URL.Query()
	filter := models.ListFilter{Title: q.Get("title"), Genre: q.Get("genre")}

	for name, dst := range map[string]*int{"year": &filter.Year, "limit": &filter.Limit} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, fmt.Errorf("%w: %s must be a non-negative integer", shared.ErrInvalidArgument, name)
		}
		*dst = n
	}
	return filter, nil
}

// decodeJSON decodes a single JSON object, rejecting unknown fields so clients cannot
// smuggle in fields they are not allowed to change.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	return nil
}

type errorResponse struct {
	Error      string `json:"error"`
	Code       string `json:"code"`
	ExistingID string `json:"existing_id,omitempty"`
}

// StatusFor maps an error to its HTTP status and a stable machine-readable code.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, shared.ErrProviderDown), errors.Is(err, shared.ErrProviderUnavailable):
		return http.StatusServiceUnavailable, "provider_down"
	case errors.Is(err, shared.ErrNoMatch):
		return http.StatusNotFound, "no_match"
	case errors.Is(err, shared.ErrDuplicateEntry):
		return http.StatusConflict, "already_in_library"
	case errors.Is(err, shared.ErrDuplicateAccount):
		return http.StatusConflict, "account_name_taken"
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, shared.ErrNotAuthenticated), errors.Is(err, shared.ErrInvalidToken):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, shared.ErrInvalidInput), errors.Is(err, shared.ErrMissingArgument), errors.Is(err, shared.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_input"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, code := StatusFor(err)
	resp := errorResponse{Error: shared.UserMessage(err), Code: code}
	if id, ok := shared.ExistingEntryID(err); ok {
		resp.ExistingID = id
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := shared.MarshalJSON(v, false)
	if err != nil {
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
	w.Write([]byte("\n"))
}

// NewHandler assembles the full HTTP API: request logging and metrics on every route,
// account resolution on /library routes, plus /healthz and /metrics.
func NewHandler(library *LibraryHandler, accounts AccountResolver, secret []byte, ping func(context.Context) error, logger *log.Logger) http.Handler {
	router := NewBasicRouter()
	router.Use(RecoverMiddleware(logger), LoggingMiddleware(logger), metrics.Middleware)

	library.Register(router, AccountMiddleware(accounts, secret, logger))
	router.Handler(&opsHandler{ping: ping, metrics: metrics.Handler()})

	return router
}

// opsHandler serves the unauthenticated operational routes.
type opsHandler struct {
	ping    func(context.Context) error
	metrics http.Handler
}

func (h *opsHandler) Routes() []string {
	return []string{"GET /healthz", "GET /metrics"}
}

func (h *opsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/metrics" {
		h.metrics.ServeHTTP(w, r)
		return
	}

	if h.ping != nil {
		if err := h.ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
