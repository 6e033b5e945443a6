// Package server exposes the record importer over HTTP: documents are posted
// to standard-specific import endpoints and the resulting patient records are
// persisted and retrievable by patient id.
package server

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"github.com/santemetrics/recordkit/document"
	"github.com/santemetrics/recordkit/importer"
	"github.com/santemetrics/recordkit/record"
	"github.com/santemetrics/recordkit/store"
)

// maxDocumentBytes bounds the size of an uploaded document.
const maxDocumentBytes = 32 << 20

// Options defines the options for a server.
type Options struct {
	Addr       string
	AuthSecret string        // empty disables authentication
	CacheTTL   time.Duration // zero disables the import cache
}

// Server represents the record import REST server.
type Server struct {
	Options
	auth     *Auth
	builders map[string]*importer.Builder
	store    *store.Store
	cache    *cache.Cache // may be nil if not caching
	router   chi.Router
}

// New creates a server wiring both standard builders to a caller-owned
// measure registry and a record store.
func New(opts Options, registry *importer.Registry, st *store.Store) *Server {
	sv := &Server{
		Options: opts,
		auth:    NewAuth(opts.AuthSecret),
		builders: map[string]*importer.Builder{
			"c32": importer.NewC32Builder(registry),
			"ccr": importer.NewCCRBuilder(registry),
		},
		store: st,
	}
	if opts.CacheTTL != 0 {
		sv.cache = cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	}
	sv.router = sv.routes()
	return sv
}

// Handler returns the server's HTTP handler, for tests and embedding.
func (sv *Server) Handler() http.Handler {
	return sv.router
}

func (sv *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestLogger)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Group(func(r chi.Router) {
		r.Use(sv.auth.Middleware)
		r.Post("/import/{standard}", sv.handleImport)
		r.Get("/records", sv.handleList)
		r.Get("/records/{patientID}", sv.handleGet)
		r.Delete("/records/{patientID}", sv.handleDelete)
	})
	return r
}

// RunServer runs the REST server until an OS termination signal arrives,
// then shuts down gracefully.
func (sv *Server) RunServer() error {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	httpServer := &http.Server{
		Addr:         sv.Addr,
		Handler:      sv.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", sv.Addr).Bool("auth", sv.auth.Enabled()).Msg("http server listening")
		errc <- httpServer.ListenAndServe()
	}()
	select {
	case sig := <-sigs:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errc:
		return err
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

type importResponse struct {
	ImportID  string          `json:"import_id"`
	PatientID string          `json:"patient_id"`
	Cached    bool            `json:"cached,omitempty"`
	Record    *record.Patient `json:"record,omitempty"`
}

func (sv *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	standard := strings.ToLower(chi.URLParam(r, "standard"))
	builder, ok := sv.builders[standard]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown document standard %q", standard))
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxDocumentBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	importID := uuid.NewString()
	sum := sha256.Sum256(body)
	digest := hex.EncodeToString(sum[:])

	if sv.cache != nil {
		if patientID, found := sv.cache.Get(digest); found {
			log.Info().Str("import_id", importID).Str("standard", standard).Msg("serving import from cache")
			writeJSON(w, http.StatusOK, importResponse{
				ImportID:  importID,
				PatientID: patientID.(string),
				Cached:    true,
			})
			return
		}
	}

	doc, err := document.Parse(bytes.NewReader(body))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("malformed document: %w", err))
		return
	}
	pt, err := builder.Parse(r.Context(), doc)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	if sv.store != nil {
		if err := sv.store.Save(r.Context(), pt); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	if sv.cache != nil {
		sv.cache.Set(digest, pt.PatientID, cache.DefaultExpiration)
	}
	log.Info().
		Str("import_id", importID).
		Str("standard", standard).
		Str("patient_id", pt.PatientID).
		Int("sections", len(pt.Sections)).
		Str("subject", Subject(r.Context())).
		Msg("imported document")
	writeJSON(w, http.StatusCreated, importResponse{
		ImportID:  importID,
		PatientID: pt.PatientID,
		Record:    pt,
	})
}

func (sv *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	if sv.store == nil {
		writeError(w, http.StatusNotImplemented, errors.New("no record store configured"))
		return
	}
	body, err := sv.store.Get(r.Context(), chi.URLParam(r, "patientID"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

func (sv *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if sv.store == nil {
		writeError(w, http.StatusNotImplemented, errors.New("no record store configured"))
		return
	}
	list, err := sv.store.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if list == nil {
		list = []store.Summary{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (sv *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if sv.store == nil {
		writeError(w, http.StatusNotImplemented, errors.New("no record store configured"))
		return
	}
	if err := sv.store.Delete(r.Context(), chi.URLParam(r, "patientID")); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("writing response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
