// Package handler exposes the scheduling core over HTTP: an authenticated
// provider surface and a token-gated public gateway.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"slotwise/internal/scheduling/service"
	apperrors "slotwise/pkg/errors"
	httputil "slotwise/pkg/http"
	"slotwise/pkg/logger"
	"slotwise/pkg/model"

	"github.com/julienschmidt/httprouter"
)

// ProviderIDHeader carries the provider identity resolved by the upstream
// dashboard auth layer.
const ProviderIDHeader = "X-Provider-ID"

type SchedulingHandler struct {
	negotiation   service.NegotiationService
	approval      service.ApprovalService
	query         service.QueryService
	clients       service.ClientService
	workingConfig service.WorkingConfigService
	log           *logger.Logger
}

func NewSchedulingHandler(
	negotiation service.NegotiationService,
	approval service.ApprovalService,
	query service.QueryService,
	clients service.ClientService,
	workingConfig service.WorkingConfigService,
	log *logger.Logger,
) *SchedulingHandler {
	return &SchedulingHandler{
		negotiation:   negotiation,
		approval:      approval,
		query:         query,
		clients:       clients,
		workingConfig: workingConfig,
		log:           log,
	}
}

func providerID(r *http.Request) (string, error) {
	id := r.Header.Get(ProviderIDHeader)
	if id == "" {
		return "", apperrors.Unauthorized("Missing " + ProviderIDHeader + " header")
	}
	return id, nil
}

type proposeRequest struct {
	ClientID string       `json:"client_id"`
	Slots    []model.Slot `json:"slots"`
}

func (h *SchedulingHandler) CreateProposal(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	provider, err := providerID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req proposeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		})
		return
	}

	proposal, err := h.negotiation.Propose(r.Context(), provider, req.ClientID, req.Slots)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteCreated(w, proposal)
}

func (h *SchedulingHandler) ListProposals(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	provider, err := providerID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	proposals, total, err := h.negotiation.ListByProvider(r.Context(), provider, limit, offset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WritePaginated(w, proposals, total, limit, int(offset))
}

type counterRequest struct {
	Slots []model.Slot `json:"slots"`
}

func (h *SchedulingHandler) CounterProposal(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if _, err := providerID(r); err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req counterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		})
		return
	}

	proposal, err := h.negotiation.Counter(r.Context(), ps.ByName("id"), model.OfferedByProvider, req.Slots)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, proposal)
}

func (h *SchedulingHandler) ListSchedules(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	provider, err := providerID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	schedules, total, err := h.approval.ListByProvider(r.Context(), provider, limit, offset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WritePaginated(w, schedules, total, limit, int(offset))
}

func (h *SchedulingHandler) GetSchedule(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if _, err := providerID(r); err != nil {
		httputil.WriteError(w, err)
		return
	}

	schedule, err := h.approval.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, schedule)
}

func (h *SchedulingHandler) RequestApproval(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if _, err := providerID(r); err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.approval.RequestApproval(r.Context(), ps.ByName("id")); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

type approveRequest struct {
	Action string                `json:"action"`
	Change *service.StagedChange `json:"change,omitempty"`
}

// Approve accepts the schedule or stages a change request, depending on
// the action.
func (h *SchedulingHandler) Approve(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if _, err := providerID(r); err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		})
		return
	}

	switch req.Action {
	case "accept":
		schedule, err := h.approval.Accept(r.Context(), ps.ByName("id"))
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteSuccess(w, schedule)
	case "request_change":
		if req.Change == nil {
			httputil.WriteError(w, apperrors.InvalidInput("request_change requires a change payload"))
			return
		}
		schedule, err := h.approval.RequestChange(r.Context(), ps.ByName("id"), *req.Change)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteSuccess(w, schedule)
	default:
		httputil.WriteError(w, apperrors.InvalidInput("action must be accept or request_change"))
	}
}

func (h *SchedulingHandler) CancelSchedule(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if _, err := providerID(r); err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.approval.Cancel(r.Context(), ps.ByName("id")); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *SchedulingHandler) GetWorkingConfig(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	provider, err := providerID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	wc, err := h.workingConfig.Get(r.Context(), provider)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, wc)
}

func (h *SchedulingHandler) PutWorkingConfig(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	provider, err := providerID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var update model.WorkingConfigUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		})
		return
	}

	wc, err := h.workingConfig.Put(r.Context(), provider, &update)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, wc)
}

func (h *SchedulingHandler) GetAvailability(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	provider, err := providerID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	query := r.URL.Query()
	date := query.Get("date")
	if date == "" {
		httputil.WriteError(w, apperrors.InvalidInput("date query parameter is required"))
		return
	}

	duration := 0
	if s := query.Get("duration"); s != "" {
		duration, err = strconv.Atoi(s)
		if err != nil {
			httputil.WriteError(w, apperrors.InvalidInput("invalid duration parameter: "+s))
			return
		}
	}

	slots, err := h.query.Availability(r.Context(), provider, date, duration)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, slots)
}

func (h *SchedulingHandler) CreateClient(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	provider, err := providerID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var client model.Client
	if err := json.NewDecoder(r.Body).Decode(&client); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		})
		return
	}
	client.ProviderID = provider

	created, err := h.clients.Register(r.Context(), &client)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteCreated(w, created)
}

func (h *SchedulingHandler) ListClients(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	provider, err := providerID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	clients, total, err := h.clients.ListByProvider(r.Context(), provider, limit, offset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WritePaginated(w, clients, total, limit, int(offset))
}

type contractRequest struct {
	Signed bool `json:"signed"`
}

func (h *SchedulingHandler) SetContractSigned(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if _, err := providerID(r); err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req contractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		})
		return
	}

	if err := h.clients.SetContractSigned(r.Context(), ps.ByName("id"), req.Signed); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *SchedulingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/proposals", h.CreateProposal)
	router.GET("/api/v1/proposals", h.ListProposals)
	router.POST("/api/v1/proposals/id/:id/counter", h.CounterProposal)

	router.GET("/api/v1/schedules", h.ListSchedules)
	router.GET("/api/v1/schedules/id/:id", h.GetSchedule)
	router.POST("/api/v1/schedules/id/:id/request-approval", h.RequestApproval)
	router.POST("/api/v1/schedules/id/:id/approve", h.Approve)
	router.POST("/api/v1/schedules/id/:id/cancel", h.CancelSchedule)

	router.GET("/api/v1/working-config", h.GetWorkingConfig)
	router.PUT("/api/v1/working-config", h.PutWorkingConfig)
	router.GET("/api/v1/availability", h.GetAvailability)

	router.POST("/api/v1/clients", h.CreateClient)
	router.GET("/api/v1/clients", h.ListClients)
	router.POST("/api/v1/clients/id/:id/contract", h.SetContractSigned)
}
