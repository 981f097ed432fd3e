package documents

import (
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"tcontas-backend/internal/shared/server/middleware"
	"tcontas-backend/internal/shared/server/respond"
)

// multipartSlack covers form boundaries and the small text fields next to the file.
const multipartSlack = 1 << 20

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches document routes. Every route requires a user; upload
// checks identity itself so the size gate runs first.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/processes/:numero/documents", h.upload)

	authed := rg.Group("", middleware.RequireAuth())
	authed.GET("/document-types", h.types)
	authed.GET("/processes/:numero/documents", h.list)
	authed.GET("/documents/:id", h.get)
	authed.GET("/documents/:id/url", h.signedURL)
	authed.DELETE("/documents/:id", h.delete)
	authed.PATCH("/documents/:id/status", h.setStatus)
}

func (h *Handler) upload(c *gin.Context) {
	limit := h.Svc.maxUploadBytes()
	if c.Request.ContentLength > limit+multipartSlack {
		writeError(c, ErrFileTooLarge)
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartSlack)

	processNumber := c.Param("numero")
	c.Set("processNumber", processNumber)

	in := UploadInput{
		UserID:        middleware.UserIDFromContext(c),
		ProcessNumber: processNumber,
		Size:          -1,
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
			writeError(c, ErrFileTooLarge)
			return
		}
		// No file: let the service report identity before validation.
		_, svcErr := h.Svc.Upload(c.Request.Context(), in)
		writeError(c, svcErr)
		return
	}

	in.FileName = fileHeader.Filename
	in.Size = fileHeader.Size
	in.ContentType = fileHeader.Header.Get("Content-Type")
	in.DocumentType = c.PostForm("documentType")
	in.Description = c.PostForm("description")

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()
	in.Body = file

	res, err := h.Svc.Upload(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Set("documentId", res.Document.ID)
	respond.Created(c, toUploadResponse(res))
}

func (h *Handler) list(c *gin.Context) {
	processNumber := c.Param("numero")
	c.Set("processNumber", processNumber)
	query := strings.TrimSpace(c.Query("q"))

	docs, err := h.Svc.Search(c.Request.Context(), processNumber, query)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, ListResponse{
		Items:    docs,
		Query:    query,
		Searched: utf8.RuneCountInString(query) >= h.Svc.searchMinChars(),
	})
}

func (h *Handler) get(c *gin.Context) {
	c.Set("documentId", c.Param("id"))
	doc, err := h.Svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, doc)
}

func (h *Handler) delete(c *gin.Context) {
	c.Set("documentId", c.Param("id"))
	if err := h.Svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	respond.NoContent(c)
}

func (h *Handler) setStatus(c *gin.Context) {
	c.Set("documentId", c.Param("id"))
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	doc, err := h.Svc.SetStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Set("statusTransition", string(doc.Status))
	respond.OK(c, doc)
}

func (h *Handler) signedURL(c *gin.Context) {
	c.Set("documentId", c.Param("id"))
	purpose := URLPurpose(strings.ToLower(strings.TrimSpace(c.Query("purpose"))))
	link, err := h.Svc.SignedURL(c.Request.Context(), c.Param("id"), purpose)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, link)
}

func (h *Handler) types(c *gin.Context) {
	out := make([]TypeOption, 0, len(Types()))
	for _, t := range Types() {
		out = append(out, TypeOption{Value: t, Label: t.Label()})
	}
	respond.OK(c, out)
}

// writeError maps service failures to HTTP responses.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrFileTooLarge):
		respond.Error(c, http.StatusRequestEntityTooLarge, "file_too_large", "file exceeds the 50 MB limit", nil)
	case errors.Is(err, ErrNotAuthenticated):
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "login required", nil)
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", strings.TrimPrefix(err.Error(), ErrInvalidInput.Error()+": "), nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
	case errors.Is(err, ErrProcessNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "process not found", nil)
	case errors.Is(err, ErrInvalidTransition):
		respond.Error(c, http.StatusConflict, "invalid_transition", err.Error(), nil)
	case errors.Is(err, ErrConflict):
		respond.Error(c, http.StatusConflict, "conflict", "document was changed by another request", nil)
	case errors.Is(err, ErrStorageWriteFailed):
		respond.Error(c, http.StatusBadGateway, "storage_write_failed", "failed to store file", nil)
	case errors.Is(err, ErrMetadataWriteFailed):
		respond.Error(c, http.StatusInternalServerError, "metadata_write_failed", "failed to record document", nil)
	case errors.Is(err, ErrDeleteFailed):
		respond.Error(c, http.StatusBadGateway, "delete_failed", "failed to delete document", nil)
	case errors.Is(err, ErrSearchFailed):
		respond.Error(c, http.StatusBadGateway, "search_failed", "search is unavailable", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "unexpected error", nil)
	}
}
