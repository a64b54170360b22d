package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/movieweb/internal/models"
	"github.com/desertthunder/movieweb/internal/repositories"
	"github.com/desertthunder/movieweb/internal/shared"
	"github.com/desertthunder/movieweb/internal/tasks"
	tu "github.com/desertthunder/movieweb/internal/testing"
)

var inception = models.ProviderResult{
	Provider:   "mock",
	ExternalID: "tt1375666",
	Title:      "Inception",
	Year:       "2010",
	Director:   "Christopher Nolan",
	Genre:      "Action, Sci-Fi",
	Rating:     "8.8",
}

type apiFixture struct {
	handler  http.Handler
	provider *tu.MockProvider
	secret   []byte
}

func newFixture(t *testing.T, secret []byte) *apiFixture {
	t.Helper()

	db := tu.SetupTestDB(t)
	logger := log.New(io.Discard)
	provider := tu.NewMockProvider(inception)
	library := repositories.NewLibraryRepository(db)
	reconciler := tasks.NewReconciliationService(provider, library, logger)

	handler := NewHandler(
		NewLibraryHandler(reconciler, library, logger),
		repositories.NewAccountRepository(db),
		secret,
		db.PingContext,
		logger,
	)
	return &apiFixture{handler: handler, provider: provider, secret: secret}
}

// do sends a request as account (when not empty) and decodes a JSON response into out (when not nil).
func (f *apiFixture) do(t *testing.T, method, path, account, body string, out any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if account != "" {
		req.Header.Set(AccountHeader, account)
	}

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if out != nil && rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("%s %s: invalid JSON %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec
}

type entryBody struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Year           *int     `json:"year"`
	Notes          string   `json:"notes"`
	PersonalRating *int     `json:"personal_rating"`
	Flags          []string `json:"degraded_flags"`
}

type errorBody struct {
	Error      string `json:"error"`
	Code       string `json:"code"`
	ExistingID string `json:"existing_id"`
}

func TestLibraryAPI(t *testing.T) {
	f := newFixture(t, nil)

	var added struct {
		State string    `json:"state"`
		Entry entryBody `json:"entry"`
	}

	t.Run("requires an account", func(t *testing.T) {
		var body errorBody
		rec := f.do(t, http.MethodGet, "/library", "", "", &body)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
		if body.Code != "unauthenticated" {
			t.Errorf("code = %q", body.Code)
		}
	})

	t.Run("add", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/library", "u1", `{"title": "Inception", "year": 2010}`, &added)
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		if added.State != "INSERTED" || added.Entry.Title != "Inception" {
			t.Errorf("unexpected response %+v", added)
		}
		if added.Entry.Year == nil || *added.Entry.Year != 2010 {
			t.Errorf("year = %v, want 2010", added.Entry.Year)
		}
	})

	t.Run("add twice conflicts", func(t *testing.T) {
		var body errorBody
		rec := f.do(t, http.MethodPost, "/library", "u1", `{"title": "Inception"}`, &body)
		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d, want 409", rec.Code)
		}
		if body.ExistingID != added.Entry.ID {
			t.Errorf("existing_id = %q, want %q", body.ExistingID, added.Entry.ID)
		}
		if !strings.Contains(body.Error, "already in your library") {
			t.Errorf("error = %q", body.Error)
		}
	})

	t.Run("libraries are isolated", func(t *testing.T) {
		var list struct {
			Entries []entryBody `json:"entries"`
			Count   int         `json:"count"`
		}
		f.do(t, http.MethodGet, "/library", "u2", "", &list)
		if list.Count != 0 || len(list.Entries) != 0 {
			t.Errorf("u2 sees %d entries", list.Count)
		}

		f.do(t, http.MethodGet, "/library", "u1", "", &list)
		if list.Count != 1 {
			t.Errorf("u1 sees %d entries, want 1", list.Count)
		}

		if rec := f.do(t, http.MethodGet, "/library/"+added.Entry.ID, "u2", "", nil); rec.Code != http.StatusNotFound {
			t.Errorf("u2 GET status = %d, want 404", rec.Code)
		}
		if rec := f.do(t, http.MethodGet, "/library/"+added.Entry.ID, "u1", "", nil); rec.Code != http.StatusOK {
			t.Errorf("u1 GET status = %d, want 200", rec.Code)
		}
	})

	t.Run("list filters", func(t *testing.T) {
		var list struct {
			Count int `json:"count"`
		}
		f.do(t, http.MethodGet, "/library?title=incep&year=2010", "u1", "", &list)
		if list.Count != 1 {
			t.Errorf("filtered count = %d, want 1", list.Count)
		}
		f.do(t, http.MethodGet, "/library?genre=western", "u1", "", &list)
		if list.Count != 0 {
			t.Errorf("genre filtered count = %d, want 0", list.Count)
		}
		if rec := f.do(t, http.MethodGet, "/library?limit=many", "u1", "", nil); rec.Code != http.StatusBadRequest {
			t.Errorf("bad limit status = %d, want 400", rec.Code)
		}
	})

	t.Run("edit", func(t *testing.T) {
		tests := []struct {
			name    string
			account string
			body    string
			status  int
		}{
			{name: "rating and notes", account: "u1", body: `{"personal_rating": 9, "notes": "again"}`, status: http.StatusOK},
			{name: "title is not editable", account: "u1", body: `{"title": "Inception 2"}`, status: http.StatusBadRequest},
			{name: "rating out of range", account: "u1", body: `{"personal_rating": 11}`, status: http.StatusBadRequest},
			{name: "malformed", account: "u1", body: `{"notes":`, status: http.StatusBadRequest},
			{name: "other account", account: "u2", body: `{"notes": "mine"}`, status: http.StatusNotFound},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := f.do(t, http.MethodPatch, "/library/"+added.Entry.ID, tt.account, tt.body, nil)
				if rec.Code != tt.status {
					t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
				}
			})
		}

		var entry entryBody
		f.do(t, http.MethodGet, "/library/"+added.Entry.ID, "u1", "", &entry)
		if entry.Notes != "again" || entry.PersonalRating == nil || *entry.PersonalRating != 9 {
			t.Errorf("unexpected entry after edits %+v", entry)
		}
	})

	t.Run("preview", func(t *testing.T) {
		var body struct {
			Preview entryBody `json:"preview"`
		}
		rec := f.do(t, http.MethodPost, "/library/preview", "u2", `{"title": "Inception"}`, &body)
		if rec.Code != http.StatusOK || body.Preview.Title != "Inception" {
			t.Errorf("status = %d, preview = %+v", rec.Code, body.Preview)
		}
	})

	t.Run("no match", func(t *testing.T) {
		var body errorBody
		rec := f.do(t, http.MethodPost, "/library", "u1", `{"title": "Nothing At All"}`, &body)
		if rec.Code != http.StatusNotFound || body.Code != "no_match" {
			t.Errorf("status = %d, code = %q", rec.Code, body.Code)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if rec := f.do(t, http.MethodDelete, "/library/"+added.Entry.ID, "u2", "", nil); rec.Code != http.StatusNotFound {
			t.Errorf("foreign delete status = %d, want 404", rec.Code)
		}
		if rec := f.do(t, http.MethodDelete, "/library/"+added.Entry.ID, "u1", "", nil); rec.Code != http.StatusNoContent {
			t.Errorf("delete status = %d, want 204", rec.Code)
		}
		if rec := f.do(t, http.MethodDelete, "/library/"+added.Entry.ID, "u1", "", nil); rec.Code != http.StatusNotFound {
			t.Errorf("second delete status = %d, want 404", rec.Code)
		}
	})

	t.Run("method not allowed", func(t *testing.T) {
		if rec := f.do(t, http.MethodPut, "/library", "u1", "", nil); rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("status = %d, want 405", rec.Code)
		}
	})
}

func TestLibraryAPI_ProviderDown(t *testing.T) {
	f := newFixture(t, nil)
	f.provider.Err = fmt.Errorf("%w: timeout", shared.ErrProviderUnavailable)

	var body errorBody
	rec := f.do(t, http.MethodPost, "/library", "u1", `{"title": "Inception"}`, &body)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if body.Code != "provider_down" {
		t.Errorf("code = %q", body.Code)
	}

	var list struct {
		Count int `json:"count"`
	}
	f.do(t, http.MethodGet, "/library", "u1", "", &list)
	if list.Count != 0 {
		t.Errorf("library has %d entries after an outage", list.Count)
	}
}

func TestLibraryAPI_JWT(t *testing.T) {
	secret := []byte("test-secret")
	f := newFixture(t, secret)

	token, err := IssueToken(secret, "u1", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	expired, err := IssueToken(secret, "u1", -time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	forged, err := IssueToken([]byte("other-secret"), "u1", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "valid token", header: "Bearer " + token, status: http.StatusOK},
		{name: "missing token", header: "", status: http.StatusUnauthorized},
		{name: "expired token", header: "Bearer " + expired, status: http.StatusUnauthorized},
		{name: "wrong secret", header: "Bearer " + forged, status: http.StatusUnauthorized},
		{name: "not a token", header: "Bearer nope", status: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/library", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			// ignored when a secret is configured
			req.Header.Set(AccountHeader, "u1")

			rec := httptest.NewRecorder()
			f.handler.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}

	t.Run("IssueToken requires a secret", func(t *testing.T) {
		if _, err := IssueToken(nil, "u1", time.Hour); err == nil {
			t.Error("expected error without a secret")
		}
	})
}

func TestOperationalRoutes(t *testing.T) {
	f := newFixture(t, nil)

	t.Run("healthz", func(t *testing.T) {
		var body map[string]string
		rec := f.do(t, http.MethodGet, "/healthz", "", "", &body)
		if rec.Code != http.StatusOK || body["status"] != "ok" {
			t.Errorf("status = %d, body = %v", rec.Code, body)
		}
	})

	t.Run("metrics", func(t *testing.T) {
		f.do(t, http.MethodGet, "/library", "u1", "", nil)

		rec := f.do(t, http.MethodGet, "/metrics", "", "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `movieweb_http_requests_total{method="GET",route="GET /library",status="200"}`) {
			t.Errorf("metrics missing library request counter")
		}
	})

	t.Run("healthz reports a failing database", func(t *testing.T) {
		logger := log.New(io.Discard)
		handler := NewHandler(NewLibraryHandler(nil, nil, logger), nil, nil, func(context.Context) error {
			return fmt.Errorf("database is locked")
		}, logger)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", rec.Code)
		}
	})
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{err: fmt.Errorf("%w: %w", shared.ErrProviderDown, shared.ErrProviderUnavailable), status: http.StatusServiceUnavailable},
		{err: shared.ErrNoMatch, status: http.StatusNotFound},
		{err: &shared.DuplicateEntryError{ExistingID: "e1"}, status: http.StatusConflict},
		{err: fmt.Errorf("%w: carol", shared.ErrDuplicateAccount), status: http.StatusConflict},
		{err: fmt.Errorf("entry x: %w", shared.ErrNotFound), status: http.StatusNotFound},
		{err: shared.ErrInvalidInput, status: http.StatusBadRequest},
		{err: shared.ErrInvalidToken, status: http.StatusUnauthorized},
		{err: fmt.Errorf("disk full"), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got, _ := StatusFor(tt.err); got != tt.status {
				t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.status)
			}
		})
	}
}

func TestServer_Run(t *testing.T) {
	logger := log.New(io.Discard)
	srv := NewServer("127.0.0.1", 0, http.NotFoundHandler(), logger)
	if srv.Addr() != "127.0.0.1:0" {
		t.Errorf("Addr() = %q", srv.Addr())
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil after cancellation", err)
		}
	case <-time.After(ShutdownTimeout + time.Second):
		t.Fatal("server did not stop after cancellation")
	}
}

func TestBasicRouter_Handler(t *testing.T) {
	router := NewBasicRouter()
	var order []string
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "mw")
			next.ServeHTTP(w, r)
		})
	})
	router.Handler(&opsHandler{metrics: http.NotFoundHandler()})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || len(order) != 1 {
		t.Errorf("status = %d, middleware calls = %v", rec.Code, order)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /healthz status = %d, want 405", rec.Code)
	}
}
