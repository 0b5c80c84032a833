package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/petalhr/petal/modules/payrollreview/services"
	"github.com/petalhr/petal/pkg/httperr"
)

type TenantIDGetter func(ctx context.Context) (tenantID string, ok bool)

// PrincipalGetter yields the authenticated user id. Verification rows are
// stamped with it; requests without a principal cannot verify.
type PrincipalGetter func(ctx context.Context) (userID string, ok bool)

type ReviewController struct {
	TenantID  TenantIDGetter
	Principal PrincipalGetter
	Service   services.ReviewService
}

type runRequest struct {
	RunUUID string `json:"run_uuid"`
}

type verifyRequest struct {
	RunUUID    string `json:"run_uuid"`
	EmployeeID string `json:"employee_id"`
	Notes      string `json:"notes"`
}

type recalculateRequest struct {
	RunUUID    string `json:"run_uuid"`
	EmployeeID string `json:"employee_id"`
}

type resolveIssueRequest struct {
	IssueUUID string `json:"issue_uuid"`
}

func (c ReviewController) HandleValidateAPI(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := c.TenantID(r.Context())
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "tenant_missing", "tenant missing")
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}
	req.RunUUID = strings.TrimSpace(req.RunUUID)
	if req.RunUUID == "" {
		writeError(w, r, http.StatusBadRequest, "missing_run_uuid", "run_uuid is required")
		return
	}

	summary, err := c.Service.Validate(r.Context(), tenantID, req.RunUUID)
	if err != nil {
		writeServiceError(w, r, err, "validate failed")
		return
	}
	writeJSON(w, summary)
}

func (c ReviewController) HandlePreviousRunAPI(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := c.TenantID(r.Context())
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "tenant_missing", "tenant missing")
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	runUUID := strings.TrimSpace(r.URL.Query().Get("run_uuid"))
	if runUUID == "" {
		writeError(w, r, http.StatusBadRequest, "missing_run_uuid", "run_uuid is required")
		return
	}

	run, items, found, err := c.Service.PreviousRun(r.Context(), tenantID, runUUID)
	if err != nil {
		writeServiceError(w, r, err, "previous run lookup failed")
		return
	}
	if !found {
		writeJSON(w, nil)
		return
	}
	writeJSON(w, map[string]any{
		"run":        run,
		"line_items": items,
	})
}

func (c ReviewController) HandleVerifyAPI(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := c.TenantID(r.Context())
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "tenant_missing", "tenant missing")
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	userID, ok := c.Principal(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "principal_missing", "principal missing")
		return
	}

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}
	req.RunUUID = strings.TrimSpace(req.RunUUID)
	if req.RunUUID == "" {
		writeError(w, r, http.StatusBadRequest, "missing_run_uuid", "run_uuid is required")
		return
	}

	status, err := c.Service.MarkEmployeeVerified(r.Context(), tenantID, req.RunUUID, req.EmployeeID, userID, req.Notes)
	if err != nil {
		writeServiceError(w, r, err, "verify failed")
		return
	}
	writeJSON(w, status)
}

func (c ReviewController) HandleVerifyAllAPI(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := c.TenantID(r.Context())
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "tenant_missing", "tenant missing")
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	userID, ok := c.Principal(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "principal_missing", "principal missing")
		return
	}

	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}
	req.RunUUID = strings.TrimSpace(req.RunUUID)
	if req.RunUUID == "" {
		writeError(w, r, http.StatusBadRequest, "missing_run_uuid", "run_uuid is required")
		return
	}

	count, err := c.Service.MarkAllVerified(r.Context(), tenantID, req.RunUUID, userID)
	if err != nil {
		writeServiceError(w, r, err, "verify all failed")
		return
	}
	writeJSON(w, map[string]any{"count": count})
}

func (c ReviewController) HandleVerificationStatusesAPI(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := c.TenantID(r.Context())
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "tenant_missing", "tenant missing")
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	runUUID := strings.TrimSpace(r.URL.Query().Get("run_uuid"))
	if runUUID == "" {
		writeError(w, r, http.StatusBadRequest, "missing_run_uuid", "run_uuid is required")
		return
	}

	statuses, err := c.Service.VerificationStatuses(r.Context(), tenantID, runUUID)
	if err != nil {
		writeServiceError(w, r, err, "verification statuses lookup failed")
		return
	}
	writeJSON(w, map[string]any{"statuses": statuses})
}

func (c ReviewController) HandleRecalculateAPI(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := c.TenantID(r.Context())
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "tenant_missing", "tenant missing")
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var req recalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}
	req.RunUUID = strings.TrimSpace(req.RunUUID)
	if req.RunUUID == "" {
		writeError(w, r, http.StatusBadRequest, "missing_run_uuid", "run_uuid is required")
		return
	}

	item, err := c.Service.RecalculateEmployee(r.Context(), tenantID, req.RunUUID, req.EmployeeID)
	if err != nil {
		writeServiceError(w, r, err, "recalculate failed")
		return
	}
	writeJSON(w, item)
}

func (c ReviewController) HandleOvertimeBreakdownAPI(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := c.TenantID(r.Context())
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "tenant_missing", "tenant missing")
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	runUUID := strings.TrimSpace(r.URL.Query().Get("run_uuid"))
	if runUUID == "" {
		writeError(w, r, http.StatusBadRequest, "missing_run_uuid", "run_uuid is required")
		return
	}
	employeeID := strings.TrimSpace(r.URL.Query().Get("employee_id"))

	breakdown, err := c.Service.OvertimeBreakdown(r.Context(), tenantID, runUUID, employeeID)
	if err != nil {
		writeServiceError(w, r, err, "overtime breakdown lookup failed")
		return
	}
	if breakdown == nil {
		writeJSON(w, nil)
		return
	}
	writeJSON(w, breakdown)
}

func (c ReviewController) HandleResolveIssueAPI(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := c.TenantID(r.Context())
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "tenant_missing", "tenant missing")
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var req resolveIssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}
	req.IssueUUID = strings.TrimSpace(req.IssueUUID)
	if req.IssueUUID == "" {
		writeError(w, r, http.StatusBadRequest, "missing_issue_uuid", "issue_uuid is required")
		return
	}

	if err := c.Service.ResolveIssue(r.Context(), tenantID, req.IssueUUID); err != nil {
		writeServiceError(w, r, err, "resolve failed")
		return
	}
	writeJSON(w, map[string]any{"issue_uuid": req.IssueUUID, "resolved": true})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(v)
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error, message string) {
	status := http.StatusInternalServerError
	code := "internal_error"
	switch {
	case httperr.IsBadRequest(err) || isPgInvalidInput(err):
		status = http.StatusBadRequest
		code = "invalid_request"
	case httperr.IsNotFound(err):
		status = http.StatusNotFound
		code = "not_found"
	}
	var badReq *httperr.BadRequestError
	if errors.As(err, &badReq) && badReq != nil && badReq.Error() != "" {
		message = badReq.Error()
	}
	var notFound *httperr.NotFoundError
	if errors.As(err, &notFound) && notFound != nil && notFound.Error() != "" {
		message = notFound.Error()
	}
	writeError(w, r, status, code, message)
}

type errorEnvelope struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	TraceID string            `json:"trace_id"`
	Meta    errorEnvelopeMeta `json:"meta"`
}

type errorEnvelopeMeta struct {
	Path   string `json:"path"`
	Method string `json:"method"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{
		Code:    code,
		Message: message,
		TraceID: traceIDFromRequest(r),
		Meta: errorEnvelopeMeta{
			Path:   r.URL.Path,
			Method: r.Method,
		},
	})
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil {
		return strings.TrimSpace(pgErr.Code)
	}
	return ""
}

func isPgInvalidInput(err error) bool {
	switch pgErrorCode(err) {
	case "22P02", "22003", "22007", "22008":
		return true
	default:
		return false
	}
}

func traceIDFromRequest(r *http.Request) string {
	traceparent := strings.TrimSpace(r.Header.Get("traceparent"))
	if traceparent == "" {
		return ""
	}
	parts := strings.Split(traceparent, "-")
	if len(parts) != 4 {
		return ""
	}
	traceID := strings.ToLower(parts[1])
	if len(traceID) != 32 || traceID == "00000000000000000000000000000000" {
		return ""
	}
	for _, ch := range traceID {
		if (ch < '0' || ch > '9') && (ch < 'a' || ch > 'f') {
			return ""
		}
	}
	return traceID
}
