// README: Service request intake, lookup and manual dispatch retry.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"evconnect/internal/modules/dispatch"
	"evconnect/internal/modules/servicereq"
	"evconnect/internal/types"
)

type ServiceHandler struct {
	services   *servicereq.Service
	dispatcher *dispatch.Coordinator
}

func NewServiceHandler(svc *servicereq.Service, dispatcher *dispatch.Coordinator) *ServiceHandler {
	return &ServiceHandler{services: svc, dispatcher: dispatcher}
}

type slotReq struct {
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

type createServiceReq struct {
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	MobileNumber  string    `json:"mobile_number"`
	Description   string    `json:"description"`
	Address       string    `json:"address"`
	City          string    `json:"city"`
	ServiceType   string    `json:"service_type"`
	Latitude      *float64  `json:"latitude"`
	Longitude     *float64  `json:"longitude"`
	UserAvailable []slotReq `json:"user_available"`
}

type serviceResp struct {
	ID            types.ID                      `json:"id"`
	FirstName     string                        `json:"first_name"`
	LastName      string                        `json:"last_name"`
	MobileNumber  string                        `json:"mobile_number"`
	Address       string                        `json:"address"`
	City          string                        `json:"city"`
	ServiceType   servicereq.Type               `json:"service_type"`
	Location      *types.Point                  `json:"location,omitempty"`
	State         servicereq.AssignmentState    `json:"state"`
	AgentID       *types.ID                     `json:"agent_id,omitempty"`
	UserAvailable []servicereq.AvailabilitySlot `json:"user_available,omitempty"`
	ScheduledAt   *time.Time                    `json:"scheduled_at,omitempty"`
	JobInProgress bool                          `json:"is_job_in_progress"`
	RequestedAt   time.Time                     `json:"requested_at"`
	AssignedAt    *time.Time                    `json:"assigned_at,omitempty"`
}

func toServiceResp(r *servicereq.ServiceRequest) serviceResp {
	return serviceResp{
		ID:            r.ID,
		FirstName:     r.FirstName,
		LastName:      r.LastName,
		MobileNumber:  r.MobileNumber,
		Address:       r.Address,
		City:          r.City,
		ServiceType:   r.Type,
		Location:      r.Location,
		State:         r.State(),
		AgentID:       r.AgentID,
		UserAvailable: r.UserAvailable,
		ScheduledAt:   r.ScheduledAt,
		JobInProgress: r.JobInProgress,
		RequestedAt:   r.RequestedAt,
		AssignedAt:    r.AssignedAt,
	}
}

func (h *ServiceHandler) Create(c *gin.Context) {
	var req createServiceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	cmd := servicereq.CreateCommand{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		MobileNumber: req.MobileNumber,
		Description:  req.Description,
		Address:      req.Address,
		City:         req.City,
		Type:         servicereq.Type(req.ServiceType),
	}
	if req.Latitude != nil && req.Longitude != nil {
		cmd.Location = &types.Point{Lat: *req.Latitude, Lng: *req.Longitude}
	}
	for _, s := range req.UserAvailable {
		cmd.UserAvailable = append(cmd.UserAvailable, servicereq.AvailabilitySlot{StartTime: s.StartTime, EndTime: s.EndTime})
	}

	created, err := h.services.Create(c.Request.Context(), cmd)
	if err != nil {
		writeDomainError(c, err)
		return
	}

	// The record stays created even when dispatch cannot start.
	resp := gin.H{"service": toServiceResp(created)}
	if err := h.dispatcher.OnCreated(c.Request.Context(), created); err != nil {
		_ = c.Error(err)
		resp["dispatch_error"] = err.Error()
	}
	writeJSON(c, http.StatusCreated, resp)
}

func (h *ServiceHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid service id")
		return
	}
	r, err := h.services.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toServiceResp(r))
}

// Assign is the explicit dispatch retry. Unlike intake it reports invalid
// coordinates as an error.
func (h *ServiceHandler) Assign(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid service id")
		return
	}
	if err := h.dispatcher.Dispatch(c.Request.Context(), types.ID(id)); err != nil {
		writeDomainError(c, err)
		return
	}
	r, err := h.services.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusAccepted, toServiceResp(r))
}
