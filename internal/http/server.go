package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"calcweb/internal/domain"
	"calcweb/internal/metrics"
	"calcweb/internal/service/auth"
	"calcweb/internal/service/calculator"
	"calcweb/internal/service/records"
)

// Session is the process-wide sign-in state.
type Session interface {
	IsAuthenticated() bool
	Set(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// API is everything the views need from the calculator service.
type API interface {
	auth.Authenticator
	calculator.API
}

type Server struct {
	session Session
	api     API
	catalog domain.Catalog
	records *records.Controller
	log     logrus.FieldLogger
	views   *views

	afterDelete atomic.Bool
}

func NewServer(session Session, api API, catalog domain.Catalog, recs *records.Controller, log logrus.FieldLogger) (*Server, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	v, err := loadViews()
	if err != nil {
		return nil, err
	}
	return &Server{
		session: session,
		api:     api,
		catalog: catalog,
		records: recs,
		log:     log,
		views:   v,
	}, nil
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: s.log, NoColor: true}),
		middleware.Recoverer,
		s.countRequests,
		s.requireSameOrigin,
	)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/login", s.handleLoginPage)
	r.Post("/login", s.handleLogin)
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/calculator", http.StatusFound)
	})

	r.Group(func(protected chi.Router) {
		protected.Use(s.requireSession)
		protected.Get("/calculator", s.handleCalculatorPage)
		protected.Post("/calculator", s.handleCalculate)
		protected.Get("/records", s.handleRecords)
		protected.Post("/records/{id}/delete", s.handleDeleteRecord)
		protected.Post("/logout", s.handleLogout)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"time":          time.Now().UTC().Format(time.RFC3339),
		"authenticated": s.session.IsAuthenticated(),
	})
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, "login", loginView{page: page{Title: "Login"}})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	form := auth.Form{
		Username: r.PostForm.Get("username"),
		Password: r.PostForm.Get("password"),
	}
	form, ok := auth.NewFlow(s.api, s.session, s.log).Submit(r.Context(), form)
	if !ok {
		s.render(w, "login", loginView{page: page{Title: "Login"}, Form: form})
		return
	}
	http.Redirect(w, r, "/calculator", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Clear(r.Context()); err != nil {
		s.log.WithError(err).Warn("failed to remove persisted session")
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) handleCalculatorPage(w http.ResponseWriter, r *http.Request) {
	flow := calculator.NewFlow(s.api, s.catalog, s.log)
	flow.Mount(r.Context())
	s.render(w, "calculator", s.calculatorView(flow))
}

func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	flow := calculator.NewFlow(s.api, s.catalog, s.log)
	flow.SetInputs(
		domain.OperationType(r.PostForm.Get("operation")),
		r.PostForm.Get("operand1"),
		r.PostForm.Get("operand2"),
	)
	flow.Calculate(r.Context())
	// A successful operation already carries the new balance.
	if flow.State().Result == nil {
		flow.RefreshBalance(r.Context())
	}
	s.render(w, "calculator", s.calculatorView(flow))
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	q := recordsQuery(r.URL.Query())
	// Right after a delete the controller already holds the refetched page
	// (or the delete error); show it as is.
	if !s.afterDelete.Swap(false) || !showing(s.records.Snapshot(), q) {
		s.records.Apply(q)
		if err := s.records.Wait(r.Context()); err != nil {
			return
		}
	}
	s.render(w, "records", s.recordsView())
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	if err := s.records.Wait(r.Context()); err != nil {
		return
	}
	// A failed delete is shown inline by the records view.
	_ = s.records.Delete(r.Context(), chi.URLParam(r, "id"))
	s.afterDelete.Store(true)
	state := s.records.Snapshot()
	http.Redirect(w, r, recordsURL(state.Page, state.PageSize, state.Search), http.StatusSeeOther)
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.session.IsAuthenticated() {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.ObserveHTTP(r.Method, route, status)
	})
}

// recordsQuery reads page, size and search. A missing or invalid value falls
// back to the first page of domain.DefaultPageSize.
func recordsQuery(values url.Values) domain.RecordsQuery {
	return domain.RecordsQuery{
		Page:   parseInt(values.Get("page"), 0),
		Size:   parseInt(values.Get("size"), domain.DefaultPageSize),
		Search: values.Get("search"),
	}
}

func showing(state records.State, q domain.RecordsQuery) bool {
	return state.Page == q.Page && state.PageSize == q.Size && state.Search == q.Search
}

func recordsURL(page, size int, search string) string {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	if search != "" {
		q.Set("search", search)
	}
	return "/records?" + q.Encode()
}

func parseInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
