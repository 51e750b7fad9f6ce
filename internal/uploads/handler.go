package uploads

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"visatrack/internal/documents"
	"visatrack/internal/shared/server/middleware"
	"visatrack/internal/shared/server/respond"
	"visatrack/internal/shared/storage/object"
	"visatrack/internal/shared/telemetry"
)

const (
	fileField = "file"
	// maxObjectBytes mirrors the largest size any policy may be signed
	// for; the per-upload limit inside the policy is what gets enforced.
	maxObjectBytes = 10 << 20
	// formOverhead pads the request cap so the boundary and policy
	// fields never push a maximum-size file over the limit.
	formOverhead  = 1 << 20
	maxFieldBytes = 8 << 10
)

// Completer is notified once a verified object has been written.
type Completer interface {
	ObjectStored(ctx context.Context, storageKey string, sizeBytes int64) error
}

// Handler is the local storage endpoint: it accepts the multipart form
// a client builds from a negotiated upload, checks the signed policy
// and streams the file part into the object store.
type Handler struct {
	Signer *LocalSigner
	Store  object.ObjectStore
	Docs   Completer
}

func NewHandler(signer *LocalSigner, store object.ObjectStore, docs Completer) *Handler {
	return &Handler{Signer: signer, Store: store, Docs: docs}
}

// RegisterRoutes mounts the storage endpoint at the server root. The
// route is exempt from auth; the signed policy is the credential.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.POST(receivePath, h.receive)
}

func (h *Handler) receive(c *gin.Context) {
	ctx := telemetry.WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxObjectBytes+formOverhead)
	mr, err := c.Request.MultipartReader()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "INVALID_FORM", "A multipart form upload is required", nil)
		return
	}

	form := map[string]string{}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			respond.Error(c, http.StatusBadRequest, "INVALID_FORM", "Form has no file part", nil)
			return
		}
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "INVALID_FORM", "Malformed multipart form", nil)
			return
		}

		if part.FormName() != fileField {
			value, err := readFormValue(part)
			if err != nil {
				respond.Error(c, http.StatusBadRequest, "INVALID_FORM", "Malformed multipart form", nil)
				return
			}
			form[part.FormName()] = value
			continue
		}

		// The file part is last; every policy field is in hand.
		policy, err := h.Signer.Verify(form)
		if err != nil {
			respond.Error(c, http.StatusForbidden, "INVALID_SIGNATURE", "Upload credential is invalid or expired", nil)
			return
		}

		h.store(c, ctx, policy, part)
		return
	}
}

func (h *Handler) store(c *gin.Context, ctx context.Context, policy SignedPolicy, part io.Reader) {
	limited := io.LimitReader(part, policy.MaxBytes+1)
	size, err := h.Store.SaveWithKey(ctx, policy.Key, policy.ContentType, limited)
	if err != nil {
		telemetry.Error("storage.save_failed", map[string]any{
			"request_id":  telemetry.RequestIDFrom(ctx),
			"storage_key": policy.Key,
			"err":         err.Error(),
		})
		respond.Error(c, http.StatusInternalServerError, "STORAGE_ERROR", "Failed to store the uploaded file", nil)
		return
	}
	if size > policy.MaxBytes {
		_ = h.Store.Delete(ctx, policy.Key)
		respond.Error(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "File exceeds the signed size limit", nil)
		return
	}

	if err := h.Docs.ObjectStored(ctx, policy.Key, size); err != nil {
		if errors.Is(err, documents.ErrNotFound) {
			_ = h.Store.Delete(ctx, policy.Key)
			respond.Error(c, http.StatusNotFound, documents.ErrorCodeDocumentNotFound, "No document record matches this upload", nil)
			return
		}
		telemetry.Error("storage.complete_failed", map[string]any{
			"request_id":  telemetry.RequestIDFrom(ctx),
			"storage_key": policy.Key,
			"err":         err.Error(),
		})
		respond.Error(c, http.StatusInternalServerError, documents.ErrorCodeInternal, "Failed to register the uploaded file", nil)
		return
	}

	c.Status(http.StatusNoContent)
}

func readFormValue(part io.Reader) (string, error) {
	raw, err := io.ReadAll(io.LimitReader(part, maxFieldBytes))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
