package api

import (
	"net/http"

	reqdto "circulation-service/internal/handler/dto/request"
	resdto "circulation-service/internal/handler/dto/response"
	"circulation-service/internal/handler/middleware"
	"circulation-service/internal/usecase"

	"github.com/gin-gonic/gin"
)

type CatalogHandler struct {
	commands usecase.CatalogCommands
}

func NewCatalogHandler(commands usecase.CatalogCommands) *CatalogHandler {
	return &CatalogHandler{commands: commands}
}

func (h *CatalogHandler) CreateItem(c *gin.Context) {
	staffID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	var req reqdto.CreateItemRequest
	if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	item, err := h.commands.AddItem(c.Request.Context(), staffID, req.Title, req.Author, req.GetISBN(), req.TotalCopies)
	if err != nil {
		respondCirculationError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resdto.FromItem(item))
}
