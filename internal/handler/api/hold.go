package api

import (
	"errors"
	"net/http"

	reqdto "circulation-service/internal/handler/dto/request"
	resdto "circulation-service/internal/handler/dto/response"
	"circulation-service/internal/handler/middleware"
	"circulation-service/internal/usecase"
	"circulation-service/internal/usecase/queries"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type HoldHandler struct {
	commands usecase.CirculationCommands
	queries  queries.HoldQueries
}

func NewHoldHandler(commands usecase.CirculationCommands, holdQueries queries.HoldQueries) *HoldHandler {
	return &HoldHandler{
		commands: commands,
		queries:  holdQueries,
	}
}

func (h *HoldHandler) CreateHold(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	var req reqdto.CreateHoldRequest
	if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	created, err := h.commands.CreateHold(c.Request.Context(), req.ItemID, userID)
	if err != nil {
		respondCirculationError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resdto.FromHold(created))
}

func (h *HoldHandler) GetHold(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid hold ID format"})
		return
	}

	view, err := h.queries.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, queries.ErrHoldNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Hold not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, resdto.FromHoldView(view))
}

func (h *HoldHandler) GetUserHolds(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	views, err := h.queries.ListByUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	response := make([]*resdto.HoldResponse, len(views))
	for i, v := range views {
		response[i] = resdto.FromHoldView(v)
	}
	c.JSON(http.StatusOK, response)
}

// GetPendingHolds lists the confirmation queue for one library.
func (h *HoldHandler) GetPendingHolds(c *gin.Context) {
	libraryID, err := uuid.Parse(c.Param("libraryId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid library ID format"})
		return
	}

	views, err := h.queries.ListPendingByLibrary(c.Request.Context(), libraryID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	response := make([]*resdto.HoldResponse, len(views))
	for i, v := range views {
		response[i] = resdto.FromHoldView(v)
	}
	c.JSON(http.StatusOK, response)
}

func (h *HoldHandler) ConfirmHold(c *gin.Context) {
	staffID, holdID, ok := h.staffAndHoldID(c)
	if !ok {
		return
	}

	// The confirmation comment is optional, as is the body itself.
	var req reqdto.ConfirmHoldRequest
	if c.Request.ContentLength > 0 {
		if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
			return
		}
	}

	confirmed, err := h.commands.ConfirmHold(c.Request.Context(), holdID, staffID, req.GetComment())
	if err != nil {
		respondCirculationError(c, err)
		return
	}
	c.JSON(http.StatusOK, resdto.FromHold(confirmed))
}

func (h *HoldHandler) RejectHold(c *gin.Context) {
	staffID, holdID, ok := h.staffAndHoldID(c)
	if !ok {
		return
	}

	var req reqdto.RejectHoldRequest
	if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Reason is required"})
		return
	}

	rejected, err := h.commands.RejectHold(c.Request.Context(), holdID, staffID, req.Reason)
	if err != nil {
		respondCirculationError(c, err)
		return
	}
	c.JSON(http.StatusOK, resdto.FromHold(rejected))
}

func (h *HoldHandler) CancelHold(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	holdID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid hold ID format"})
		return
	}

	cancelled, err := h.commands.CancelHold(c.Request.Context(), holdID, userID)
	if err != nil {
		respondCirculationError(c, err)
		return
	}
	c.JSON(http.StatusOK, resdto.FromHold(cancelled))
}

func (h *HoldHandler) StartBorrowing(c *gin.Context) {
	staffID, holdID, ok := h.staffAndHoldID(c)
	if !ok {
		return
	}

	started, err := h.commands.MarkBorrowingStarted(c.Request.Context(), holdID, staffID)
	if err != nil {
		respondCirculationError(c, err)
		return
	}
	c.JSON(http.StatusOK, resdto.FromHold(started))
}

func (h *HoldHandler) staffAndHoldID(c *gin.Context) (staffID, holdID uuid.UUID, ok bool) {
	staffID, found := middleware.GetUserID(c)
	if !found {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return uuid.Nil, uuid.Nil, false
	}
	holdID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid hold ID format"})
		return uuid.Nil, uuid.Nil, false
	}
	return staffID, holdID, true
}
