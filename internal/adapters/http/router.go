package httpadapter

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/routers"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"

	"github.com/kirillkom/legal-intake/internal/config"
	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/core/ports"
	"github.com/kirillkom/legal-intake/internal/observability/metrics"
)

const (
	userIDHeader   = "X-User-Id"
	userRoleHeader = "X-User-Role"

	serviceName         = "api"
	xlsxContentType     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	multipartOverhead   = 1 << 20
	backpressureMaxWait = 250 * time.Millisecond
)

// Services groups the inbound ports the router exposes. ReviewExporter may
// be nil, in which case the export route answers 503.
type Services struct {
	Intake         ports.DocumentIntake
	Reader         ports.DocumentReader
	Extraction     ports.ExtractionService
	Classification ports.ClassificationService
	Compliance     ports.ComplianceService
	ReviewExporter ports.ReviewExporter
}

type Router struct {
	svc         Services
	cfg         config.Config
	httpMetrics *metrics.HTTPServerMetrics
	openapi     routers.Router
}

func NewRouter(cfg config.Config, svc Services, httpMetrics *metrics.HTTPServerMetrics) (*Router, error) {
	openapi, err := loadOpenAPI(context.Background())
	if err != nil {
		return nil, err
	}
	return &Router{
		svc:         svc,
		cfg:         cfg,
		httpMetrics: httpMetrics,
		openapi:     openapi,
	}, nil
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /openapi.yaml", rt.openAPIDocument)
	if rt.httpMetrics != nil {
		mux.Handle("GET /metrics", rt.httpMetrics.Handler())
	}

	mux.HandleFunc("POST /v1/documents", rt.uploadDocument)
	mux.HandleFunc("GET /v1/documents/{documentID}", rt.getDocument)
	mux.HandleFunc("GET /v1/documents/{documentID}/content", rt.retrieveDocument)
	mux.HandleFunc("POST /v1/documents/{documentID}/extractions", rt.extractDocument)
	mux.HandleFunc("POST /v1/documents/{documentID}/classifications", rt.classifyDocument)
	mux.HandleFunc("POST /v1/documents/{documentID}/analyses", rt.analyzeDocument)
	mux.HandleFunc("GET /v1/documents/{documentID}/results/{kind}", rt.latestResult)
	mux.HandleFunc("GET /v1/reviews/export", rt.exportReviews)

	var handler http.Handler = openAPIValidationMiddleware(rt.openapi, mux)
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxConnections, backpressureMaxWait)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	if rt.httpMetrics != nil {
		handler = rt.httpMetrics.Middleware(handler)
	}
	handler = accessLogMiddleware(handler)
	handler = recoverMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) openAPIDocument(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(OpenAPISpec())
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	requester, ok := rt.requester(w, r)
	if !ok {
		return
	}

	maxBytes := rt.cfg.MaxUploadBytes
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
	}
	reader, err := r.MultipartReader()
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "multipart/form-data body is required")
		return
	}

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			writeError(w, r, http.StatusBadRequest, "multipart field 'file' is required")
			return
		}
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid multipart body")
			return
		}
		if part.FormName() != "file" {
			_ = part.Close()
			continue
		}

		outcome, err := rt.svc.Intake.Upload(r.Context(), ports.UploadRequest{
			Filename:   part.FileName(),
			UploaderID: requester.ID,
			Body:       part,
		})
		_ = part.Close()
		if err != nil {
			writeOutcomeError(w, r, err, outcome)
			return
		}
		writeJSON(w, http.StatusAccepted, outcome)
		return
	}
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	requester, ok := rt.requester(w, r)
	if !ok {
		return
	}
	documentID, ok := documentIDParam(w, r)
	if !ok {
		return
	}

	doc, err := rt.svc.Reader.GetDocument(r.Context(), documentID, requester)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) retrieveDocument(w http.ResponseWriter, r *http.Request) {
	requester, ok := rt.requester(w, r)
	if !ok {
		return
	}
	documentID, ok := documentIDParam(w, r)
	if !ok {
		return
	}

	doc, err := rt.svc.Reader.GetDocument(r.Context(), documentID, requester)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	data, err := rt.svc.Intake.Retrieve(r.Context(), documentID, requester)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	contentType := doc.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.Filename}))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (rt *Router) extractDocument(w http.ResponseWriter, r *http.Request) {
	requester, ok := rt.requester(w, r)
	if !ok {
		return
	}
	documentID, ok := documentIDParam(w, r)
	if !ok {
		return
	}

	result, err := rt.svc.Extraction.Process(r.Context(), documentID, requester)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (rt *Router) classifyDocument(w http.ResponseWriter, r *http.Request) {
	requester, ok := rt.requester(w, r)
	if !ok {
		return
	}
	documentID, ok := documentIDParam(w, r)
	if !ok {
		return
	}

	result, err := rt.svc.Classification.Classify(r.Context(), documentID, requester)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (rt *Router) analyzeDocument(w http.ResponseWriter, r *http.Request) {
	requester, ok := rt.requester(w, r)
	if !ok {
		return
	}
	documentID, ok := documentIDParam(w, r)
	if !ok {
		return
	}

	var rawType string
	if err := runtime.BindQueryParameter("form", true, false, "type", r.URL.Query(), &rawType); err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("invalid query parameter type: %v", err))
		return
	}
	analysisType, valid := domain.ParseAnalysisType(rawType)
	if !valid {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("unknown analysis type %q", rawType))
		return
	}

	result, err := rt.svc.Compliance.Analyze(r.Context(), documentID, analysisType, requester)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (rt *Router) latestResult(w http.ResponseWriter, r *http.Request) {
	requester, ok := rt.requester(w, r)
	if !ok {
		return
	}
	documentID, ok := documentIDParam(w, r)
	if !ok {
		return
	}

	var rawKind string
	if err := bindPathParam("kind", r.PathValue("kind"), &rawKind); err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("invalid path parameter kind: %v", err))
		return
	}
	kind, valid := domain.ParseResultKind(rawKind)
	if !valid {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("unknown result kind %q", rawKind))
		return
	}

	view, err := rt.svc.Reader.LatestResult(r.Context(), documentID, kind, requester)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (rt *Router) exportReviews(w http.ResponseWriter, r *http.Request) {
	requester, ok := rt.requester(w, r)
	if !ok {
		return
	}
	if !requester.Elevated() {
		writeError(w, r, http.StatusForbidden, "review export requires an attorney, compliance officer or admin role")
		return
	}
	if rt.svc.ReviewExporter == nil {
		writeError(w, r, http.StatusServiceUnavailable, "review export is not configured")
		return
	}

	var buf bytes.Buffer
	if err := rt.svc.ReviewExporter.ExportPending(r.Context(), &buf); err != nil {
		writeDomainError(w, r, err)
		return
	}
	filename := "pending-reviews-" + time.Now().UTC().Format("20060102") + ".xlsx"
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// requester reads the caller identity set by the upstream gateway. The
// system role is reserved for the pipeline worker.
func (rt *Router) requester(w http.ResponseWriter, r *http.Request) (domain.Requester, bool) {
	id := strings.TrimSpace(r.Header.Get(userIDHeader))
	if id == "" {
		writeError(w, r, http.StatusUnauthorized, "missing "+userIDHeader+" header")
		return domain.Requester{}, false
	}
	role := domain.Role(strings.TrimSpace(r.Header.Get(userRoleHeader)))
	switch role {
	case "":
		role = domain.RoleClient
	case domain.RoleClient, domain.RoleParalegal, domain.RoleAttorney, domain.RoleComplianceOfficer, domain.RoleAdmin:
	default:
		writeError(w, r, http.StatusForbidden, fmt.Sprintf("role %q is not allowed", role))
		return domain.Requester{}, false
	}
	if role != domain.RoleClient && !rt.fromTrustedProxy(r) {
		writeError(w, r, http.StatusForbidden, fmt.Sprintf("role %q requires a gateway-authenticated request", role))
		return domain.Requester{}, false
	}
	return domain.Requester{ID: id, Role: role}, true
}

// fromTrustedProxy reports whether r carries the gateway stamp. With no
// header configured every request is trusted and identity rests with the
// deployment in front of the API.
func (rt *Router) fromTrustedProxy(r *http.Request) bool {
	name := strings.TrimSpace(rt.cfg.TrustedProxyHeader)
	if name == "" {
		return true
	}
	got := r.Header.Get(name)
	return got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(rt.cfg.TrustedProxyToken)) == 1
}

func documentIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	var raw string
	if err := bindPathParam("documentID", r.PathValue("documentID"), &raw); err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("invalid path parameter documentID: %v", err))
		return "", false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "documentID must be a UUID")
		return "", false
	}
	return id.String(), true
}

func bindPathParam(name, value string, dest any) error {
	return runtime.BindStyledParameterWithOptions("simple", name, value, dest, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
}

type errorResponse struct {
	Error     string   `json:"error"`
	RequestID string   `json:"request_id,omitempty"`
	Errors    []string `json:"errors,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message, RequestID: requestIDFromContext(r.Context())})
}

func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, mapErrorToHTTPStatus(err), err.Error())
}

// writeOutcomeError keeps the validation report next to the error so
// clients see every failed check.
func writeOutcomeError(w http.ResponseWriter, r *http.Request, err error, outcome ports.UploadOutcome) {
	status := mapErrorToHTTPStatus(err)
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		status = http.StatusRequestEntityTooLarge
	}
	writeJSON(w, status, errorResponse{
		Error:     err.Error(),
		RequestID: requestIDFromContext(r.Context()),
		Errors:    outcome.Errors,
		Warnings:  outcome.Warnings,
	})
}
