package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/minilos/origination-engine/internal/domain"
	"github.com/minilos/origination-engine/internal/service"
	customError "github.com/minilos/origination-engine/pkg/errors"
	"github.com/minilos/origination-engine/pkg/response"
	"github.com/minilos/origination-engine/pkg/utils"
)

const applicantHeader = "X-Applicant-ID"

type ApplicationHandler struct {
	service  *service.OriginationService
	validate *validator.Validate
	log      *zap.Logger
}

func NewApplicationHandler(svc *service.OriginationService, log *zap.Logger) *ApplicationHandler {
	if log == nil {
		log = zap.NewNop()
	}

	v := validator.New()
	_ = v.RegisterValidation("taxid", func(fl validator.FieldLevel) bool {
		return utils.IsValidTaxID(fl.Field().String())
	})
	_ = v.RegisterValidation("inmobile", func(fl validator.FieldLevel) bool {
		return utils.IsValidMobile(fl.Field().String())
	})

	return &ApplicationHandler{
		service:  svc,
		validate: v,
		log:      log,
	}
}

// RegisterRoutes mounts the application endpoints on the given router.
func (h *ApplicationHandler) RegisterRoutes(api *mux.Router) {
	api.HandleFunc("/applications", h.CreateApplication).Methods("POST")
	api.HandleFunc("/applications", h.ListMyApplications).Methods("GET")
	api.HandleFunc("/applications/stats/total", h.TotalApplications).Methods("GET")
	api.HandleFunc("/applications/{id}", h.GetFullHistory).Methods("GET")
	api.HandleFunc("/applications/{id}", h.UpdateApplication).Methods("PUT")
	api.HandleFunc("/applications/{id}/identity-check", h.RunIdentityCheck).Methods("POST")
	api.HandleFunc("/applications/{id}/identity-check/retry", h.RetryIdentityCheck).Methods("POST")
	api.HandleFunc("/applications/{id}/credit-check", h.RunCreditCheck).Methods("POST")
	api.HandleFunc("/admin/applications", h.AdminListApplications).Methods("GET")
}

// CreateApplication handles POST /api/v1/applications
func (h *ApplicationHandler) CreateApplication(w http.ResponseWriter, r *http.Request) {
	applicantID := r.Header.Get(applicantHeader)
	if applicantID == "" {
		response.Unauthorized(w, "missing "+applicantHeader+" header")
		return
	}

	var req domain.CreateApplicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		response.ErrorWithCode(w, http.StatusUnprocessableEntity,
			customError.ErrCodeValidationFailed, "Validation failed", err)
		return
	}

	app, err := h.service.CreateApplication(r.Context(), applicantID, &req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.Created(w, app)
}

// UpdateApplication handles PUT /api/v1/applications/{id}
func (h *ApplicationHandler) UpdateApplication(w http.ResponseWriter, r *http.Request) {
	id, ok := h.applicationID(w, r)
	if !ok {
		return
	}

	var req domain.UpdateApplicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		response.ErrorWithCode(w, http.StatusUnprocessableEntity,
			customError.ErrCodeValidationFailed, "Validation failed", err)
		return
	}

	app, err := h.service.UpdateApplication(r.Context(), id, &req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.Success(w, app)
}

// GetFullHistory handles GET /api/v1/applications/{id}
func (h *ApplicationHandler) GetFullHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.applicationID(w, r)
	if !ok {
		return
	}

	history, err := h.service.GetFullHistory(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.Success(w, history)
}

// RunIdentityCheck handles POST /api/v1/applications/{id}/identity-check
func (h *ApplicationHandler) RunIdentityCheck(w http.ResponseWriter, r *http.Request) {
	id, ok := h.applicationID(w, r)
	if !ok {
		return
	}

	res, err := h.service.RunIdentityCheck(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.Success(w, res)
}

// RetryIdentityCheck handles POST /api/v1/applications/{id}/identity-check/retry
func (h *ApplicationHandler) RetryIdentityCheck(w http.ResponseWriter, r *http.Request) {
	id, ok := h.applicationID(w, r)
	if !ok {
		return
	}

	res, err := h.service.RetryIdentityCheck(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.Success(w, res)
}

// RunCreditCheck handles POST /api/v1/applications/{id}/credit-check
func (h *ApplicationHandler) RunCreditCheck(w http.ResponseWriter, r *http.Request) {
	id, ok := h.applicationID(w, r)
	if !ok {
		return
	}

	res, err := h.service.RunCreditCheck(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.Success(w, res)
}

// ListMyApplications handles GET /api/v1/applications
func (h *ApplicationHandler) ListMyApplications(w http.ResponseWriter, r *http.Request) {
	applicantID := r.Header.Get(applicantHeader)
	if applicantID == "" {
		response.Unauthorized(w, "missing "+applicantHeader+" header")
		return
	}

	apps, err := h.service.ListByApplicant(r.Context(), applicantID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.Success(w, map[string]interface{}{
		"applications": apps,
		"count":        len(apps),
	})
}

// AdminListApplications handles GET /api/v1/admin/applications
func (h *ApplicationHandler) AdminListApplications(w http.ResponseWriter, r *http.Request) {
	filter := domain.ListFilter{}

	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = domain.ApplicationStatus(status)
		if !filter.Status.Valid() {
			response.BadRequest(w, "Invalid status filter: "+status, nil)
			return
		}
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			response.BadRequest(w, "Invalid limit parameter", err)
			return
		}
		filter.Limit = limit
	}

	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			response.BadRequest(w, "Invalid offset parameter", err)
			return
		}
		filter.Offset = offset
	}

	apps, err := h.service.ListApplications(r.Context(), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.Success(w, map[string]interface{}{
		"applications": apps,
		"count":        len(apps),
	})
}

// TotalApplications handles GET /api/v1/applications/stats/total
func (h *ApplicationHandler) TotalApplications(w http.ResponseWriter, r *http.Request) {
	total, err := h.service.TotalApplications(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.Success(w, map[string]int{"total": total})
}

func (h *ApplicationHandler) applicationID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		response.BadRequest(w, "Invalid application ID", err)
		return uuid.Nil, false
	}
	return id, true
}

func (h *ApplicationHandler) writeError(w http.ResponseWriter, err error) {
	status := customError.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", zap.Error(err))
	}

	var be *customError.BusinessError
	if errors.As(err, &be) {
		response.ErrorWithCode(w, status, be.Code, be.Message, be.Err)
		return
	}

	response.Error(w, status, "Internal server error", err)
}
