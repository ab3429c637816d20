package categories

import (
	"net/http"

	"c3exam-backend/login"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler { return &Handler{repo: repo} }

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/categories", login.RequireAuth(), h.list)
}

func (h *Handler) list(c *gin.Context) {
	list, err := h.repo.All()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list})
}
