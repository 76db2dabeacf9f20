package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"evconnect/internal/modules/dispatch"
	"evconnect/internal/types"
)

// LinkHandler serves the accept links sent to agents.
type LinkHandler struct {
	dispatcher *dispatch.Coordinator
}

func NewLinkHandler(dispatcher *dispatch.Coordinator) *LinkHandler {
	return &LinkHandler{dispatcher: dispatcher}
}

func (h *LinkHandler) Click(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusNotFound, "offer not found")
		return
	}
	r, err := h.dispatcher.Accept(c.Request.Context(), types.ID(id))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toServiceResp(r))
}
