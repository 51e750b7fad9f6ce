package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"visatrack/internal/shared/server/middleware"
	"visatrack/internal/shared/server/respond"
	"visatrack/internal/shared/telemetry"
)

// Handler exposes the document lifecycle over HTTP.
type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes mounts the document endpoints on the given group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/documents/upload", h.upload)
	rg.GET("/documents", h.list)
	rg.GET("/documents/:id/status", h.status)
	rg.PUT("/documents/:id/verify", h.verify)
	rg.DELETE("/documents/:id", h.remove)
}

type uploadPayload struct {
	FileName     string `json:"file_name"`
	FileType     string `json:"file_type"`
	DocumentType string `json:"document_type"`
}

func (h *Handler) upload(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var payload uploadPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		if errors.Is(err, io.EOF) {
			respond.Error(c, http.StatusBadRequest, ErrorCodeMissingBody, "Request body is required", nil)
			return
		}
		respond.Error(c, http.StatusBadRequest, ErrorCodeInvalidJSON, "Invalid JSON in request body", nil)
		return
	}

	negotiation, err := h.Svc.NegotiateUpload(requestContext(c), userID, UploadRequest{
		FileName:     payload.FileName,
		FileType:     payload.FileType,
		DocumentType: payload.DocumentType,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, reason(err), nil)
		case errors.Is(err, ErrSignUpload):
			respond.Error(c, http.StatusInternalServerError, ErrorCodeStorage, "Failed to generate upload URL. Please try again.", nil)
		case errors.Is(err, ErrCreateRecord):
			respond.Error(c, http.StatusInternalServerError, ErrorCodeDatabase, "Failed to create document record. Please try again.", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "An unexpected error occurred", nil)
		}
		return
	}

	c.Set("documentId", negotiation.DocumentID)
	respond.JSONMessage(c, http.StatusOK, negotiation, "Upload URL generated successfully")
}

func (h *Handler) status(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	documentID := c.Param("id")

	doc, err := h.Svc.Status(requestContext(c), userID, documentID)
	if err != nil {
		h.renderLookupError(c, documentID, err, "Error retrieving document status")
		return
	}

	c.Set("documentId", doc.ID)
	c.Set("documentStatus", string(doc.Status))
	respond.OK(c, toStatusResponse(doc))
}

func (h *Handler) list(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			respond.Error(c, http.StatusBadRequest, ErrorCodeInvalidLimit, "Limit must be between 1 and 100", nil)
			return
		}
		limit = parsed
	}

	docs, err := h.Svc.List(requestContext(c), userID, limit)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, ErrorCodeDatabase, "Error retrieving documents", nil)
		return
	}

	statusFilter := strings.ToLower(strings.TrimSpace(c.Query("status")))
	summaries := make([]documentSummary, 0, len(docs))
	for _, doc := range docs {
		if statusFilter != "" && strings.ToLower(string(doc.Status)) != statusFilter {
			continue
		}
		summaries = append(summaries, toSummary(doc))
	}

	respond.OK(c, gin.H{"documents": summaries, "count": len(summaries)})
}

type verifyPayload struct {
	VerifiedData map[string]string `json:"verified_data"`
}

func (h *Handler) verify(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	documentID := c.Param("id")

	var payload verifyPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		if errors.Is(err, io.EOF) {
			respond.Error(c, http.StatusBadRequest, ErrorCodeMissingBody, "Request body is required", nil)
			return
		}
		respond.Error(c, http.StatusBadRequest, ErrorCodeInvalidJSON, "Invalid JSON in request body", nil)
		return
	}

	doc, err := h.Svc.Verify(requestContext(c), userID, documentID, payload.VerifiedData)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, ErrorCodeDocumentNotFound, fmt.Sprintf("Document %s not found", documentID), nil)
		case errors.Is(err, ErrNotVerifiable):
			respond.Error(c, http.StatusConflict, ErrorCodeInvalidStatus, "Document is not awaiting verification", nil)
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, reason(err), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, ErrorCodeDatabase, "Failed to apply corrections. Please try again.", nil)
		}
		return
	}

	c.Set("documentId", doc.ID)
	c.Set("documentStatus", string(doc.Status))
	respond.JSONMessage(c, http.StatusOK, toStatusResponse(doc), "Corrections applied")
}

func (h *Handler) remove(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	documentID := c.Param("id")

	if err := h.Svc.Delete(requestContext(c), userID, documentID); err != nil {
		h.renderLookupError(c, documentID, err, "Failed to delete document")
		return
	}

	c.Set("documentId", documentID)
	respond.OK(c, gin.H{"document_id": documentID, "deleted": true})
}

func (h *Handler) renderLookupError(c *gin.Context, documentID string, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, ErrorCodeDocumentNotFound, fmt.Sprintf("Document %s not found", documentID), nil)
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, reason(err), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, ErrorCodeDatabase, fallback, nil)
	}
}

// requestContext carries the middleware request ID into the service layer so
// background work and telemetry stay correlated with the originating call.
func requestContext(c *gin.Context) context.Context {
	return telemetry.WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
}

// reason strips the sentinel prefix so clients see only the human-readable part.
func reason(err error) string {
	msg := err.Error()
	if rest, ok := strings.CutPrefix(msg, ErrInvalidInput.Error()+": "); ok {
		return rest
	}
	return msg
}
