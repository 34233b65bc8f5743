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

type LoanHandler struct {
	commands usecase.CirculationCommands
	queries  queries.LoanQueries
}

func NewLoanHandler(commands usecase.CirculationCommands, loanQueries queries.LoanQueries) *LoanHandler {
	return &LoanHandler{
		commands: commands,
		queries:  loanQueries,
	}
}

func (h *LoanHandler) GetLoan(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid loan ID format"})
		return
	}

	view, err := h.queries.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, queries.ErrLoanNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Loan not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, resdto.FromLoanView(view))
}

func (h *LoanHandler) GetUserLoans(c *gin.Context) {
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

	response := make([]*resdto.LoanResponse, len(views))
	for i, v := range views {
		response[i] = resdto.FromLoanView(v)
	}
	c.JSON(http.StatusOK, response)
}

// GetActiveLoans lists a library's live loans for the staff desk.
func (h *LoanHandler) GetActiveLoans(c *gin.Context) {
	libraryID, err := uuid.Parse(c.Param("libraryId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid library ID format"})
		return
	}

	views, err := h.queries.ListActiveByLibrary(c.Request.Context(), libraryID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	response := make([]*resdto.LoanResponse, len(views))
	for i, v := range views {
		response[i] = resdto.FromLoanView(v)
	}
	c.JSON(http.StatusOK, response)
}

func (h *LoanHandler) ReturnLoan(c *gin.Context) {
	staffID, loanID, ok := h.userAndLoanID(c)
	if !ok {
		return
	}

	returned, err := h.commands.ReturnLoan(c.Request.Context(), loanID, staffID)
	if err != nil {
		respondCirculationError(c, err)
		return
	}
	c.JSON(http.StatusOK, resdto.FromLoan(returned))
}

func (h *LoanHandler) CloseLoan(c *gin.Context) {
	staffID, loanID, ok := h.userAndLoanID(c)
	if !ok {
		return
	}

	closed, err := h.commands.CloseLoan(c.Request.Context(), loanID, staffID)
	if err != nil {
		respondCirculationError(c, err)
		return
	}
	c.JSON(http.StatusOK, resdto.FromLoan(closed))
}

func (h *LoanHandler) FlagNotReturned(c *gin.Context) {
	staffID, loanID, ok := h.userAndLoanID(c)
	if !ok {
		return
	}

	flagged, err := h.commands.FlagNotReturned(c.Request.Context(), loanID, staffID)
	if err != nil {
		respondCirculationError(c, err)
		return
	}
	c.JSON(http.StatusOK, resdto.FromLoan(flagged))
}

func (h *LoanHandler) ExtendLoan(c *gin.Context) {
	userID, loanID, ok := h.userAndLoanID(c)
	if !ok {
		return
	}

	var req reqdto.ExtendLoanRequest
	if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Days must be a positive number"})
		return
	}

	extended, err := h.commands.ExtendLoan(c.Request.Context(), loanID, userID, req.Days)
	if err != nil {
		respondCirculationError(c, err)
		return
	}
	c.JSON(http.StatusOK, resdto.FromLoan(extended))
}

func (h *LoanHandler) RecordFeedback(c *gin.Context) {
	userID, loanID, ok := h.userAndLoanID(c)
	if !ok {
		return
	}

	var req reqdto.FeedbackRequest
	if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Rating between 1 and 5 is required"})
		return
	}

	updated, err := h.commands.RecordFeedback(c.Request.Context(), loanID, userID, req.Text, req.Rating)
	if err != nil {
		respondCirculationError(c, err)
		return
	}
	c.JSON(http.StatusOK, resdto.FromLoan(updated))
}

func (h *LoanHandler) userAndLoanID(c *gin.Context) (userID, loanID uuid.UUID, ok bool) {
	userID, found := middleware.GetUserID(c)
	if !found {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return uuid.Nil, uuid.Nil, false
	}
	loanID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid loan ID format"})
		return uuid.Nil, uuid.Nil, false
	}
	return userID, loanID, true
}
