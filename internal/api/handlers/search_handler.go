package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/voicewise/insights/internal/models"
	"github.com/voicewise/insights/internal/services"
)

type SearchHandler struct {
	svc services.SearchService
}

func NewSearchHandler(svc services.SearchService) *SearchHandler {
	return &SearchHandler{svc: svc}
}

// Search serves GET /dashboard/search?q=&type=&limit=&skip=&threshold=&expand=.
// The tenant always comes from the token.
func (h *SearchHandler) Search(c *gin.Context) {
	tenantID, ok := requireTenantID(c)
	if !ok {
		return
	}

	var q models.SearchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "SearchHandler.Search", "invalid query", err)
		return
	}
	q.TenantID = tenantID
	res, err := h.svc.Search(c.Request.Context(), q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
