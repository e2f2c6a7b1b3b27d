package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	schederrors "slotwise/internal/scheduling/errors"
	"slotwise/internal/scheduling/service"
	apperrors "slotwise/pkg/errors"
	httputil "slotwise/pkg/http"
	"slotwise/pkg/linktoken"
	"slotwise/pkg/logger"
	"slotwise/pkg/model"

	"github.com/julienschmidt/httprouter"
)

// PublicHandler is the token-gated gateway clients reach from scheduling
// links. Every route verifies the capability token before touching any
// service, and responses are minimal projections.
type PublicHandler struct {
	tokens      *linktoken.Service
	negotiation service.NegotiationService
	approval    service.ApprovalService
	query       service.QueryService
	log         *logger.Logger
}

func NewPublicHandler(
	tokens *linktoken.Service,
	negotiation service.NegotiationService,
	approval service.ApprovalService,
	query service.QueryService,
	log *logger.Logger,
) *PublicHandler {
	return &PublicHandler{
		tokens:      tokens,
		negotiation: negotiation,
		approval:    approval,
		query:       query,
		log:         log,
	}
}

// linkToken extracts the capability token from the request.
func linkToken(r *http.Request) string {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = r.Header.Get("X-Link-Token")
	}
	return token
}

// tokenValid accepts either the plain or the timed token form. Timed tokens
// carry their issue timestamp and expire per the configured ttl.
func (h *PublicHandler) tokenValid(scheduleID, clientID, token string) bool {
	if strings.Contains(token, ".") {
		return h.tokens.VerifyTimed(scheduleID, clientID, token, time.Now())
	}
	return h.tokens.Verify(scheduleID, clientID, token)
}

// verifyClientToken gates routes bound to a client's booking link, where
// no schedule exists yet.
func (h *PublicHandler) verifyClientToken(r *http.Request, clientID string) error {
	if !h.tokenValid("", clientID, linkToken(r)) {
		return apperrors.Forbidden("Invalid or missing link token")
	}
	return nil
}

// verifyScheduleToken gates routes bound to one schedule. Tokens for
// schedules in a terminal state are refused even when the digest matches.
func (h *PublicHandler) verifyScheduleToken(r *http.Request, scheduleID, clientID string) (*model.Schedule, error) {
	if !h.tokenValid(scheduleID, clientID, linkToken(r)) {
		return nil, apperrors.Forbidden("Invalid or missing link token")
	}

	schedule, err := h.approval.GetByID(r.Context(), scheduleID)
	if err != nil {
		return nil, err
	}
	if schedule.ClientID != clientID {
		return nil, apperrors.Forbidden("Invalid or missing link token")
	}
	if !schedule.Active() {
		return nil, apperrors.Forbidden("This scheduling link is no longer valid")
	}
	return schedule, nil
}

// writePublicError collapses concurrency-class conflicts into one generic
// message so the public page never leaks why a slot was refused.
func (h *PublicHandler) writePublicError(w http.ResponseWriter, err error) {
	if errors.Is(err, schederrors.ErrSlotUnavailable) ||
		errors.Is(err, schederrors.ErrDoubleBooked) ||
		errors.Is(err, schederrors.ErrDuplicateBooking) {
		httputil.WriteError(w, apperrors.Conflict("This slot is no longer available. Please pick another time."))
		return
	}
	httputil.WriteError(w, err)
}

// scheduleView is the public projection of a schedule. Provider internals
// stay out of it.
type scheduleView struct {
	ID                string               `json:"id"`
	ScheduledDate     string               `json:"scheduled_date"`
	StartTime         string               `json:"start_time"`
	EndTime           string               `json:"end_time"`
	Status            model.ScheduleStatus `json:"status"`
	ApprovalStatus    model.ApprovalStatus `json:"approval_status"`
	ProposedDate      string               `json:"proposed_date,omitempty"`
	ProposedStartTime string               `json:"proposed_start_time,omitempty"`
	ProposedEndTime   string               `json:"proposed_end_time,omitempty"`
	ChangeReason      string               `json:"change_reason,omitempty"`
}

func publicSchedule(s *model.Schedule) scheduleView {
	return scheduleView{
		ID:                s.ID,
		ScheduledDate:     s.ScheduledDate,
		StartTime:         s.StartTime,
		EndTime:           s.EndTime,
		Status:            s.Status,
		ApprovalStatus:    s.ApprovalStatus,
		ProposedDate:      s.ProposedDate,
		ProposedStartTime: s.ProposedStartTime,
		ProposedEndTime:   s.ProposedEndTime,
		ChangeReason:      s.ChangeReason,
	}
}

// proposalView hides the provider id and bookkeeping fields.
type proposalView struct {
	ID        string               `json:"id"`
	Slots     []model.Slot         `json:"slots"`
	Round     int                  `json:"round"`
	OfferedBy model.OfferedBy      `json:"offered_by"`
	Status    model.ProposalStatus `json:"status"`
}

func publicProposal(p *model.Proposal) proposalView {
	return proposalView{
		ID:        p.ID,
		Slots:     p.Slots,
		Round:     p.Round,
		OfferedBy: p.OfferedBy,
		Status:    p.Status,
	}
}

func (h *PublicHandler) GetSchedulingInfo(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	clientID := ps.ByName("client_id")
	if err := h.verifyClientToken(r, clientID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	info, err := h.query.SchedulingInfo(r.Context(), clientID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, info)
}

func (h *PublicHandler) GetAvailability(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	clientID := ps.ByName("client_id")
	if err := h.verifyClientToken(r, clientID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		httputil.WriteError(w, apperrors.InvalidInput("date query parameter is required"))
		return
	}

	slots, err := h.query.AvailabilityForClient(r.Context(), clientID, date)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, slots)
}

func (h *PublicHandler) GetAvailabilityWindow(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	clientID := ps.ByName("client_id")
	if err := h.verifyClientToken(r, clientID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	from := r.URL.Query().Get("from")
	if from == "" {
		httputil.WriteError(w, apperrors.InvalidInput("from query parameter is required"))
		return
	}

	window, err := h.query.AvailabilityWindow(r.Context(), clientID, from)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, window)
}

func (h *PublicHandler) GetBusyIntervals(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	clientID := ps.ByName("client_id")
	if err := h.verifyClientToken(r, clientID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		httputil.WriteError(w, apperrors.InvalidInput("date query parameter is required"))
		return
	}

	busy, err := h.query.BusyIntervalsForClient(r.Context(), clientID, date)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, busy)
}

func (h *PublicHandler) GetProposal(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	clientID := ps.ByName("client_id")
	if err := h.verifyClientToken(r, clientID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	proposal, err := h.negotiation.GetPendingForClient(r.Context(), clientID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, publicProposal(proposal))
}

type acceptSlotRequest struct {
	SlotIndex int `json:"slot_index"`
}

func (h *PublicHandler) AcceptProposalSlot(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	clientID := ps.ByName("client_id")
	if err := h.verifyClientToken(r, clientID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req acceptSlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		})
		return
	}

	proposal, err := h.negotiation.GetPendingForClient(r.Context(), clientID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	schedule, err := h.negotiation.Accept(r.Context(), proposal.ID, req.SlotIndex)
	if err != nil {
		h.writePublicError(w, err)
		return
	}
	httputil.WriteCreated(w, publicSchedule(schedule))
}

func (h *PublicHandler) CounterProposal(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	clientID := ps.ByName("client_id")
	if err := h.verifyClientToken(r, clientID); err != nil {
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

	proposal, err := h.negotiation.GetPendingForClient(r.Context(), clientID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	countered, err := h.negotiation.Counter(r.Context(), proposal.ID, model.OfferedByClient, req.Slots)
	if err != nil {
		h.writePublicError(w, err)
		return
	}
	httputil.WriteSuccess(w, publicProposal(countered))
}

type directBookRequest struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
}

func (h *PublicHandler) DirectBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	clientID := ps.ByName("client_id")
	if err := h.verifyClientToken(r, clientID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req directBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		})
		return
	}

	schedule, err := h.approval.DirectBook(r.Context(), clientID, req.Date, req.StartTime)
	if err != nil {
		h.writePublicError(w, err)
		return
	}
	httputil.WriteCreated(w, publicSchedule(schedule))
}

func (h *PublicHandler) GetLatestAppointment(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	clientID := ps.ByName("client_id")
	if err := h.verifyClientToken(r, clientID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	schedule, err := h.query.LatestAppointment(r.Context(), clientID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, publicSchedule(schedule))
}

func (h *PublicHandler) GetChangeRequest(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	clientID := ps.ByName("client_id")
	scheduleID := ps.ByName("schedule_id")

	schedule, err := h.verifyScheduleToken(r, scheduleID, clientID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, publicSchedule(schedule))
}

func (h *PublicHandler) AcceptChangeRequest(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	clientID := ps.ByName("client_id")
	scheduleID := ps.ByName("schedule_id")

	if _, err := h.verifyScheduleToken(r, scheduleID, clientID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	schedule, err := h.approval.AcceptChange(r.Context(), scheduleID)
	if err != nil {
		h.writePublicError(w, err)
		return
	}
	httputil.WriteSuccess(w, publicSchedule(schedule))
}

func (h *PublicHandler) CounterChangeRequest(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	clientID := ps.ByName("client_id")
	scheduleID := ps.ByName("schedule_id")

	if _, err := h.verifyScheduleToken(r, scheduleID, clientID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	var change service.StagedChange
	if err := json.NewDecoder(r.Body).Decode(&change); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		})
		return
	}

	schedule, err := h.approval.ClientCounter(r.Context(), scheduleID, change)
	if err != nil {
		h.writePublicError(w, err)
		return
	}
	httputil.WriteSuccess(w, publicSchedule(schedule))
}

func (h *PublicHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/public/v1/clients/:client_id/info", h.GetSchedulingInfo)
	router.GET("/public/v1/clients/:client_id/availability", h.GetAvailability)
	router.GET("/public/v1/clients/:client_id/availability/window", h.GetAvailabilityWindow)
	router.GET("/public/v1/clients/:client_id/busy", h.GetBusyIntervals)
	router.GET("/public/v1/clients/:client_id/latest", h.GetLatestAppointment)

	router.GET("/public/v1/clients/:client_id/proposal", h.GetProposal)
	router.POST("/public/v1/clients/:client_id/proposal/accept", h.AcceptProposalSlot)
	router.POST("/public/v1/clients/:client_id/proposal/counter", h.CounterProposal)

	router.POST("/public/v1/clients/:client_id/book", h.DirectBook)

	router.GET("/public/v1/clients/:client_id/schedules/:schedule_id/change", h.GetChangeRequest)
	router.POST("/public/v1/clients/:client_id/schedules/:schedule_id/change/accept", h.AcceptChangeRequest)
	router.POST("/public/v1/clients/:client_id/schedules/:schedule_id/change/counter", h.CounterChangeRequest)
}
