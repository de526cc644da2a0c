package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/animus-labs/stamps/internal/domain"
	"github.com/animus-labs/stamps/internal/platform/auditlog"
	"github.com/animus-labs/stamps/internal/platform/auth"
	"github.com/animus-labs/stamps/internal/platform/httpserver"
	"github.com/animus-labs/stamps/internal/repo"
	"github.com/animus-labs/stamps/internal/service/reports"
	"github.com/animus-labs/stamps/internal/service/validation"
)

const (
	defaultListLimit  = 50
	defaultStatsLimit = 100
	maxLimit          = 500
)

type validationAPI struct {
	logger  *slog.Logger
	svc     *validation.Service
	reports *reports.Publisher
}

func newValidationAPI(logger *slog.Logger, svc *validation.Service, publisher *reports.Publisher) *validationAPI {
	return &validationAPI{
		logger:  logger,
		svc:     svc,
		reports: publisher,
	}
}

func (api *validationAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /data-types", api.handleListDataTypes)

	mux.HandleFunc("POST /validation-stamps", api.handleCreateStamp)
	mux.HandleFunc("GET /validation-stamps/{stamp_id}", api.handleGetStamp)
	mux.HandleFunc("PUT /validation-stamps/{stamp_id}/data-type", api.handleSetStampDataType)
	mux.HandleFunc("GET /validation-stamps/{stamp_id}/stats", api.handleStampStats)
	mux.HandleFunc("POST /validation-stamps/{stamp_id}/stats/reports", api.handlePublishStats)
	mux.HandleFunc("GET /validation-stamps/{stamp_id}/stats/reports/{report}", api.handleFetchStatsReport)

	mux.HandleFunc("POST /validation-runs", api.handleCreateRun)
	mux.HandleFunc("GET /validation-runs", api.handleListRuns)
	mux.HandleFunc("GET /validation-runs/{run_id}", api.handleGetRun)
	mux.HandleFunc("POST /validation-runs/{run_id}/statuses", api.handleAppendStatus)
}

type dataTypeConfig struct {
	TypeID   string          `json:"type_id"`
	Config   json.RawMessage `json:"config,omitempty"`
	Required bool            `json:"required"`
}

func (c *dataTypeConfig) domain() *domain.DataTypeConfig {
	if c == nil {
		return nil
	}
	return &domain.DataTypeConfig{TypeID: strings.TrimSpace(c.TypeID), Config: c.Config, Required: c.Required}
}

func dataTypeConfigFrom(c *domain.DataTypeConfig) *dataTypeConfig {
	if c == nil {
		return nil
	}
	return &dataTypeConfig{TypeID: c.TypeID, Config: c.Config, Required: c.Required}
}

type stampResponse struct {
	StampID     string          `json:"stamp_id"`
	BranchID    string          `json:"branch_id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	DataType    *dataTypeConfig `json:"data_type,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	CreatedBy   string          `json:"created_by"`
}

func stampFrom(s domain.ValidationStamp) stampResponse {
	return stampResponse{
		StampID:     s.ID,
		BranchID:    s.BranchID,
		Name:        s.Name,
		Description: s.Description,
		DataType:    dataTypeConfigFrom(s.DataType),
		CreatedAt:   s.Signature.Time,
		CreatedBy:   s.Signature.User,
	}
}

type statusResponse struct {
	Seq         int             `json:"seq"`
	Status      domain.StatusID `json:"status"`
	Description string          `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	CreatedBy   string          `json:"created_by"`
}

func statusFrom(s domain.ValidationRunStatus) statusResponse {
	return statusResponse{
		Seq:         s.Seq,
		Status:      s.Status,
		Description: s.Description,
		CreatedAt:   s.Signature.Time,
		CreatedBy:   s.Signature.User,
	}
}

type runData struct {
	TypeID string `json:"type_id"`
	Value  any    `json:"value"`
}

type runResponse struct {
	RunID      string           `json:"run_id"`
	BuildID    string           `json:"build_id"`
	StampID    string           `json:"stamp_id"`
	RunOrder   int              `json:"run_order"`
	CreatedAt  time.Time        `json:"created_at"`
	CreatedBy  string           `json:"created_by"`
	Data       *runData         `json:"data,omitempty"`
	LastStatus *statusResponse  `json:"last_status,omitempty"`
	Statuses   []statusResponse `json:"statuses"`
}

func runFrom(run domain.ValidationRun) runResponse {
	out := runResponse{
		RunID:     run.ID,
		BuildID:   run.BuildID,
		StampID:   run.StampID,
		RunOrder:  run.RunOrder,
		CreatedAt: run.Signature.Time,
		CreatedBy: run.Signature.User,
		Statuses:  make([]statusResponse, 0, len(run.Statuses)),
	}
	if run.Data != nil {
		out.Data = &runData{TypeID: run.Data.TypeID, Value: run.Data.Value}
	}
	for _, status := range run.Statuses {
		out.Statuses = append(out.Statuses, statusFrom(status))
	}
	if last, ok := run.LastStatus(); ok {
		s := statusFrom(last)
		out.LastStatus = &s
	}
	return out
}

func (api *validationAPI) handleListDataTypes(w http.ResponseWriter, r *http.Request) {
	type dataTypeItem struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	types := api.svc.Registry().Types()
	items := make([]dataTypeItem, 0, len(types))
	for _, dt := range types {
		items = append(items, dataTypeItem{ID: dt.ID(), Name: dt.Name()})
	}
	httpserver.WriteJSON(w, http.StatusOK, map[string]any{"data_types": items})
}

type createStampRequest struct {
	StampID     string          `json:"stamp_id,omitempty"`
	BranchID    string          `json:"branch_id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	DataType    *dataTypeConfig `json:"data_type,omitempty"`
}

func (api *validationAPI) handleCreateStamp(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.identity(w, r)
	if !ok {
		return
	}
	var req createStampRequest
	if err := decodeJSON(r, &req); err != nil {
		httpserver.WriteError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	stamp, err := api.svc.CreateStamp(withOrigin(r), validation.CreateStampInput{
		ID:          req.StampID,
		BranchID:    req.BranchID,
		Name:        req.Name,
		Description: req.Description,
		DataType:    req.DataType.domain(),
		Signature:   domain.Signature{User: identity.Subject},
	})
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusCreated, stampFrom(stamp))
}

func (api *validationAPI) handleGetStamp(w http.ResponseWriter, r *http.Request) {
	stamp, err := api.svc.GetStamp(r.Context(), r.PathValue("stamp_id"))
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, stampFrom(stamp))
}

type setDataTypeRequest struct {
	DataType *dataTypeConfig `json:"data_type"`
}

func (api *validationAPI) handleSetStampDataType(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.identity(w, r)
	if !ok {
		return
	}
	var req setDataTypeRequest
	if err := decodeJSON(r, &req); err != nil {
		httpserver.WriteError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	stamp, err := api.svc.SetStampDataType(withOrigin(r), r.PathValue("stamp_id"), req.DataType.domain(), domain.Signature{User: identity.Subject})
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, stampFrom(stamp))
}

func (api *validationAPI) handleStampStats(w http.ResponseWriter, r *http.Request) {
	limit := clampInt(parseIntQuery(r, "limit", defaultStatsLimit), 1, maxLimit)
	stats, err := api.svc.StampStats(r.Context(), r.PathValue("stamp_id"), limit)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, stats)
}

func (api *validationAPI) handlePublishStats(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.identity(w, r)
	if !ok {
		return
	}
	if api.reports == nil {
		httpserver.WriteError(w, r, http.StatusServiceUnavailable, "reports_unavailable")
		return
	}
	limit := clampInt(parseIntQuery(r, "limit", defaultStatsLimit), 1, maxLimit)
	stats, err := api.svc.StampStats(r.Context(), r.PathValue("stamp_id"), limit)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	report, err := api.reports.Publish(withOrigin(r), stats, identity.Subject)
	if err != nil {
		api.logger.Error("publish stats report failed", "stamp_id", stats.StampID, "error", err)
		httpserver.WriteError(w, r, http.StatusInternalServerError, "report_publish_failed")
		return
	}
	httpserver.WriteJSON(w, http.StatusCreated, report)
}

func (api *validationAPI) handleFetchStatsReport(w http.ResponseWriter, r *http.Request) {
	if api.reports == nil {
		httpserver.WriteError(w, r, http.StatusServiceUnavailable, "reports_unavailable")
		return
	}
	body, err := api.reports.Fetch(r.Context(), r.PathValue("stamp_id"), r.PathValue("report"), r.URL.Query().Get("sha256"))
	switch {
	case errors.Is(err, reports.ErrReportNotFound):
		httpserver.WriteError(w, r, http.StatusNotFound, "report_not_found")
		return
	case errors.Is(err, reports.ErrDigestMismatch):
		httpserver.WriteError(w, r, http.StatusConflict, "report_digest_mismatch")
		return
	case err != nil:
		api.logger.Error("fetch stats report failed", "stamp_id", r.PathValue("stamp_id"), "report", r.PathValue("report"), "error", err)
		httpserver.WriteError(w, r, http.StatusInternalServerError, "report_fetch_failed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

type createRunRequest struct {
	BuildID     string         `json:"build_id"`
	StampID     string         `json:"stamp_id"`
	Status      string         `json:"status,omitempty"`
	Description string         `json:"description,omitempty"`
	Data        *createRunData `json:"data,omitempty"`
}

type createRunData struct {
	TypeID string          `json:"type_id,omitempty"`
	Value  json.RawMessage `json:"value"`
}

func (api *validationAPI) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.identity(w, r)
	if !ok {
		return
	}
	var req createRunRequest
	if err := decodeJSON(r, &req); err != nil {
		httpserver.WriteError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	in := validation.CreateRunInput{
		BuildID:     req.BuildID,
		StampID:     req.StampID,
		Status:      parseStatus(req.Status),
		Signature:   domain.Signature{User: identity.Subject},
		Description: req.Description,
	}
	if req.Data != nil {
		in.Data = &validation.DataInput{TypeID: req.Data.TypeID, Value: req.Data.Value}
	}
	run, err := api.svc.CreateRun(withOrigin(r), in)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusCreated, runFrom(run))
}

func (api *validationAPI) handleListRuns(w http.ResponseWriter, r *http.Request) {
	filter := repo.RunFilter{
		BuildID: strings.TrimSpace(r.URL.Query().Get("build_id")),
		StampID: strings.TrimSpace(r.URL.Query().Get("stamp_id")),
		Limit:   clampInt(parseIntQuery(r, "limit", defaultListLimit), 1, maxLimit),
	}
	runs, err := api.svc.ListRuns(r.Context(), filter)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	items := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		items = append(items, runFrom(run))
	}
	httpserver.WriteJSON(w, http.StatusOK, map[string]any{"runs": items})
}

func (api *validationAPI) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := api.svc.GetRun(r.Context(), r.PathValue("run_id"))
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, runFrom(run))
}

type appendStatusRequest struct {
	Status      string `json:"status"`
	Description string `json:"description,omitempty"`
}

func (api *validationAPI) handleAppendStatus(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.identity(w, r)
	if !ok {
		return
	}
	var req appendStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		httpserver.WriteError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	entry, err := api.svc.AppendStatus(
		withOrigin(r),
		r.PathValue("run_id"),
		parseStatus(req.Status),
		domain.Signature{User: identity.Subject},
		req.Description,
	)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusCreated, statusFrom(entry))
}

func (api *validationAPI) identity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || strings.TrimSpace(identity.Subject) == "" {
		httpserver.WriteError(w, r, http.StatusInternalServerError, "internal_error")
		return auth.Identity{}, false
	}
	return identity, true
}

func (api *validationAPI) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		missing     *validation.MissingDataError
		unrequested *validation.UnrequestedDataError
		input       *validation.DataInputError
		config      *validation.ConfigInputError
		typeNF      *validation.DataTypeNotFoundError
		required    *validation.StatusRequiredError
		invalid     *validation.InvalidStatusError
	)
	switch {
	case errors.As(err, &missing):
		httpserver.WriteError(w, r, http.StatusBadRequest, "missing_data")
	case errors.As(err, &unrequested):
		httpserver.WriteError(w, r, http.StatusBadRequest, "unrequested_data")
	case errors.As(err, &input):
		requestID, _ := httpserver.RequestIDFromContext(r.Context())
		httpserver.WriteJSON(w, http.StatusBadRequest, map[string]any{
			"error":      "invalid_data",
			"field":      input.Field(),
			"message":    input.Cause.Error(),
			"request_id": requestID,
		})
	case errors.As(err, &config):
		httpserver.WriteError(w, r, http.StatusBadRequest, "invalid_config")
	case errors.As(err, &typeNF):
		httpserver.WriteError(w, r, http.StatusUnprocessableEntity, "data_type_not_found")
	case errors.As(err, &required):
		httpserver.WriteError(w, r, http.StatusBadRequest, "status_required")
	case errors.As(err, &invalid):
		httpserver.WriteError(w, r, http.StatusBadRequest, "invalid_status")
	case errors.Is(err, repo.ErrNotFound):
		httpserver.WriteError(w, r, http.StatusNotFound, "not_found")
	case errors.Is(err, repo.ErrConflict):
		httpserver.WriteError(w, r, http.StatusConflict, "conflict")
	case errors.Is(err, validation.ErrInvalidArgument):
		httpserver.WriteError(w, r, http.StatusBadRequest, "invalid_request")
	default:
		api.logger.Error("validation request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		httpserver.WriteError(w, r, http.StatusInternalServerError, "internal_error")
	}
}

// parseStatus canonicalizes a status id. Unknown ids pass through so the
// service reports them as invalid.
func parseStatus(raw string) domain.StatusID {
	if id, err := domain.ParseStatusID(raw); err == nil {
		return id
	}
	return domain.StatusID(strings.TrimSpace(raw))
}

// withOrigin attaches request metadata for audit rows written by the stores.
func withOrigin(r *http.Request) context.Context {
	requestID, _ := httpserver.RequestIDFromContext(r.Context())
	if requestID == "" {
		requestID = r.Header.Get(httpserver.HeaderRequestID)
	}
	return auditlog.WithOrigin(r.Context(), auditlog.Origin{
		RequestID: requestID,
		IP:        requestIP(r.RemoteAddr),
		UserAgent: r.UserAgent(),
	})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 4<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("multiple JSON values")
	}
	return nil
}

func requestIP(remoteAddr string) net.IP {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return nil
	}
	return net.ParseIP(host)
}

func parseIntQuery(r *http.Request, key string, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return parsed
}

func clampInt(v int, min int, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
