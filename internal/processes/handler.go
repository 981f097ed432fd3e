package processes

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tcontas-backend/internal/shared/server/middleware"
	"tcontas-backend/internal/shared/server/respond"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	authed := rg.Group("", middleware.RequireAuth())
	authed.GET("/processes", h.list)
	authed.GET("/processes/:numero", h.get)
	authed.POST("/processes", h.create)
	authed.PATCH("/processes/:numero/status", h.setStatus)
}

func (h *Handler) create(c *gin.Context) {
	var in CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	p, err := h.Svc.Create(c.Request.Context(), middleware.UserIDFromContext(c), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Set("processNumber", p.Numero)
	respond.Created(c, p)
}

func (h *Handler) list(c *gin.Context) {
	items, err := h.Svc.List(c.Request.Context(), c.Query("kind"), c.Query("status"))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"items": items})
}

func (h *Handler) get(c *gin.Context) {
	c.Set("processNumber", c.Param("numero"))
	p, err := h.Svc.Get(c.Request.Context(), c.Param("numero"))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, p)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) setStatus(c *gin.Context) {
	c.Set("processNumber", c.Param("numero"))
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	p, err := h.Svc.SetStatus(c.Request.Context(), c.Param("numero"), req.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Set("statusTransition", string(p.Status))
	respond.OK(c, p)
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "process not found", nil)
	case errors.Is(err, ErrAlreadyExists):
		respond.Error(c, http.StatusConflict, "conflict", "process already exists", nil)
	case errors.Is(err, ErrInvalidTransition):
		respond.Error(c, http.StatusConflict, "invalid_transition", err.Error(), nil)
	case errors.Is(err, ErrConflict):
		respond.Error(c, http.StatusConflict, "conflict", "process was changed by another request", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "unexpected error", nil)
	}
}
