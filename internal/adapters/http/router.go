package httpadapter

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/enterprise-rag/internal/core/domain"
	"github.com/kirillkom/enterprise-rag/internal/core/ports"
	"github.com/kirillkom/enterprise-rag/internal/observability/metrics"
)

const serviceName = "rag-api"

// Authenticator validates credentials for token issuance.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (domain.User, error)
}

type RouterConfig struct {
	RateLimitRPS     float64
	RateLimitBurst   int
	MaxInFlight      int
	BackpressureWait time.Duration
	MaxUploadBytes   int64
}

func (c RouterConfig) normalize() RouterConfig {
	out := c
	if out.BackpressureWait <= 0 {
		out.BackpressureWait = 2 * time.Second
	}
	if out.MaxUploadBytes <= 0 {
		out.MaxUploadBytes = 64 << 20
	}
	return out
}

type Router struct {
	ingestUC ports.DocumentIngestor
	queryUC  ports.QueryService
	docs     ports.DocumentReader
	auth     Authenticator
	issuer   *TokenIssuer
	metrics  *metrics.HTTPServerMetrics
	cfg      RouterConfig
}

func NewRouter(
	ingestUC ports.DocumentIngestor,
	queryUC ports.QueryService,
	docs ports.DocumentReader,
	auth Authenticator,
	issuer *TokenIssuer,
	serverMetrics *metrics.HTTPServerMetrics,
	cfg RouterConfig,
) *Router {
	return &Router{
		ingestUC: ingestUC,
		queryUC:  queryUC,
		docs:     docs,
		auth:     auth,
		issuer:   issuer,
		metrics:  serverMetrics,
		cfg:      cfg.normalize(),
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.Handle("/metrics", rt.metrics.Handler())
	mux.HandleFunc("/v1/auth/token", rt.issueToken)
	mux.Handle("/v1/documents", authMiddleware(rt.issuer, requireRole(domain.RoleAdmin, rt.uploadDocument)))
	mux.Handle("/v1/documents/", authMiddleware(rt.issuer, http.HandlerFunc(rt.getDocumentByID)))
	mux.Handle("/v1/rag/query", authMiddleware(rt.issuer, http.HandlerFunc(rt.queryRAG)))

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.MaxInFlight, rt.cfg.BackpressureWait)
	handler = rateLimitMiddleware(handler, rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst)
	handler = rt.metrics.Middleware(serviceName, handler)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) issueToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := rt.auth.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := rt.issuer.Issue(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token issuance failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": token,
		"token_type":   "bearer",
	})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxUploadBytes)
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	doc, err := rt.ingestUC.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		r.FormValue("category"),
		file,
	)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "document id is required")
		return
	}

	doc, err := rt.docs.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) queryRAG(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Query        string   `json:"query"`
		TopK         int      `json:"top_k"`
		Alpha        *float64 `json:"alpha"`
		UseExpansion bool     `json:"use_expansion"`
		Category     string   `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	user, _ := userFromContext(r.Context())

	// A pointer keeps an explicit alpha of 0 (pure lexical) distinguishable
	// from an absent field.
	alpha := -1.0
	if req.Alpha != nil {
		alpha = *req.Alpha
	}

	start := time.Now()
	answer, err := rt.queryUC.Answer(r.Context(), domain.QueryRequest{
		Query:        req.Query,
		TopK:         req.TopK,
		Alpha:        alpha,
		UseExpansion: req.UseExpansion,
		Filter:       domain.SearchFilter{Category: req.Category},
		User:         user.Username,
	})
	if err != nil {
		if domain.IsKind(err, domain.ErrSecurityViolation) {
			rt.metrics.RecordGuardrailBlock(serviceName, guardrailCheckLabel(err))
		}
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}

	rt.metrics.RecordPipelineRun(serviceName, len(answer.Sources), time.Since(start))
	rt.metrics.RecordGrounding(serviceName, answer.GroundingScore, answer.Warning != "")
	rt.metrics.RecordExpansionVariants(serviceName, answer.Variants)

	writeJSON(w, http.StatusOK, answer)
}

func guardrailCheckLabel(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "Prompt Injection"):
		return "prompt_injection"
	case strings.Contains(msg, "toxic content"):
		return "toxicity"
	default:
		return "input_validation"
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
