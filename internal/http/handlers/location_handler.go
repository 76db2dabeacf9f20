// README: Agent location handlers.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"evconnect/internal/http/middleware"
	"evconnect/internal/modules/location"
	"evconnect/internal/types"
)

type LocationHandler struct {
	location *location.Service
}

func NewLocationHandler(svc *location.Service) *LocationHandler {
	return &LocationHandler{location: svc}
}

type locationReq struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (h *LocationHandler) Update(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "missing id")
		return
	}
	// Only the authenticated agent may update their own location.
	if middleware.CallerRole(c) != "agent" {
		writeError(c, http.StatusForbidden, "forbidden: agent role required")
		return
	}
	if middleware.CallerUID(c) != id {
		writeError(c, http.StatusForbidden, "forbidden: id does not match authenticated user")
		return
	}
	var req locationReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Latitude == nil || req.Longitude == nil {
		writeError(c, http.StatusBadRequest, "latitude and longitude are required")
		return
	}
	err := h.location.Update(c.Request.Context(), location.Update{
		AgentID:  types.ID(id),
		Position: types.Point{Lat: *req.Latitude, Lng: *req.Longitude},
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *LocationHandler) Nearby(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	radius, errRadius := strconv.ParseFloat(c.DefaultQuery("radius_miles", "50"), 64)
	if errLat != nil || errLng != nil || errRadius != nil {
		writeError(c, http.StatusBadRequest, "lat, lng and radius_miles must be numbers")
		return
	}
	found, err := h.location.Nearby(c.Request.Context(), types.Point{Lat: lat, Lng: lng}, radius)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]map[string]any, len(found))
	for i, n := range found {
		out[i] = map[string]any{
			"agent_id":       n.AgentID,
			"location":       n.Position,
			"distance_miles": n.DistanceMiles,
		}
	}
	writeJSON(c, http.StatusOK, map[string]any{"agents": out})
}
