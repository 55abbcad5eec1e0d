package api

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pbaille/attrs/internal/attribute"
	"github.com/pbaille/attrs/internal/domain"
	"github.com/pbaille/attrs/internal/errors"
	"github.com/pbaille/attrs/internal/logger"
	"github.com/pbaille/attrs/internal/observation"
)

// Server exposes the attribute service over HTTP
type Server struct {
	svc       *attribute.Service
	extractor attribute.Extractor
	addr      string
	log       *zap.SugaredLogger
}

// New creates a new API server. A nil extractor makes the extract endpoint
// report a warning instead of extracting.
func New(svc *attribute.Service, ex attribute.Extractor, addr string, log *zap.SugaredLogger) *Server {
	return &Server{svc: svc, extractor: ex, addr: addr, log: logger.OrNop(log)}
}

// Handler returns the routed handler with CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Attributes
	mux.HandleFunc("GET /attributes", s.listAttributes)
	mux.HandleFunc("GET /attributes/{key}", s.getAttribute)
	mux.HandleFunc("POST /attributes/{key}/promote", s.promoteAttribute)

	// Subjects
	mux.HandleFunc("GET /subjects/{id}/attributes", s.subjectValues)
	mux.HandleFunc("POST /subjects/{id}/observations", s.applyObservations)
	mux.HandleFunc("PUT /subjects/{id}/attributes/{key}", s.upsertAttribute)
	mux.HandleFunc("POST /subjects/{id}/answers", s.applyAnswers)
	mux.HandleFunc("POST /subjects/{id}/extract", s.extract)

	// Health check
	mux.HandleFunc("GET /health", s.health)

	return withCORS(mux)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infow("Starting server", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
	}

	s.log.Infow("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// withCORS adds CORS headers for frontend development
func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		h.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listAttributes(w http.ResponseWriter, r *http.Request) {
	status := domain.Status(strings.ToUpper(r.URL.Query().Get("status")))
	if status != "" && status != domain.StatusActive && status != domain.StatusPendingReview {
		writeError(w, http.StatusBadRequest, "status must be ACTIVE or PENDING_REVIEW")
		return
	}

	attrs, err := s.svc.ListAttributes(r.Context(), status)
	if err != nil {
		s.fail(w, err)
		return
	}
	if attrs == nil {
		attrs = []domain.Attribute{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"attributes": attrs})
}

func (s *Server) getAttribute(w http.ResponseWriter, r *http.Request) {
	attr, err := s.svc.ResolveAttributeByKey(r.Context(), r.PathValue("key"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attr)
}

func (s *Server) promoteAttribute(w http.ResponseWriter, r *http.Request) {
	attr, err := s.svc.PromoteAttribute(r.Context(), r.PathValue("key"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attr)
}

func (s *Server) subjectValues(w http.ResponseWriter, r *http.Request) {
	id, ok := subjectID(w, r)
	if !ok {
		return
	}
	values, err := s.svc.SubjectValues(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}
	if values == nil {
		values = []domain.SubjectValue{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"subject_id": id, "values": values})
}

// ObservationsRequest is the request body for applying raw observations
type ObservationsRequest struct {
	Items []json.RawMessage `json:"items"`
}

func (s *Server) applyObservations(w http.ResponseWriter, r *http.Request) {
	id, ok := subjectID(w, r)
	if !ok {
		return
	}
	var req ObservationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.svc.ApplyObservations(r.Context(), id, slices.Values(req.Items))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// UpsertRequest is the request body for setting one known attribute
type UpsertRequest struct {
	Value      string   `json:"value"`
	OptionCode string   `json:"option_code,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Evidence   *string  `json:"evidence,omitempty"`
}

func (s *Server) upsertAttribute(w http.ResponseWriter, r *http.Request) {
	id, ok := subjectID(w, r)
	if !ok {
		return
	}
	var req UpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Value) == "" && req.OptionCode == "" {
		writeError(w, http.StatusBadRequest, "value or option_code is required")
		return
	}

	confidence := observation.DefaultConfidence
	if req.Confidence != nil {
		confidence = *req.Confidence
	}
	key := r.PathValue("key")
	if err := s.svc.UpsertKnownAttribute(r.Context(), id, key, req.Value, req.OptionCode, confidence, req.Evidence); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"subject_id": id, "attribute_key": key})
}

// AnswersRequest is the request body for questionnaire answers
type AnswersRequest struct {
	Answers map[string]string `json:"answers"`
}

func (s *Server) applyAnswers(w http.ResponseWriter, r *http.Request) {
	id, ok := subjectID(w, r)
	if !ok {
		return
	}
	var req AnswersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.svc.ApplyAnswers(r.Context(), id, req.Answers)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ExtractRequest is the request body for free-text extraction
type ExtractRequest struct {
	Text string `json:"text"`
}

func (s *Server) extract(w http.ResponseWriter, r *http.Request) {
	id, ok := subjectID(w, r)
	if !ok {
		return
	}
	var req ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if s.extractor == nil {
		writeJSON(w, http.StatusOK, attribute.ExtractResult{Warning: "extractor not configured"})
		return
	}
	res, err := s.svc.ExtractAndApply(r.Context(), id, req.Text, s.extractor)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func subjectID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "subject id must be an integer")
		return 0, false
	}
	return id, true
}

// fail maps service errors onto HTTP statuses.
func (s *Server) fail(w http.ResponseWriter, err error) {
	if errors.IsNotFound(err) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.log.Errorw("Request failed", "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
