package upload

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"jobboard/internal/pkg/logger"
	"jobboard/internal/pkg/response"
	"jobboard/internal/pkg/validator"
)

// multipart framing and metadata fields on top of the file bytes
const formOverhead = 1 << 20

type Handler struct {
	service   *Service
	maxMemory int64
}

func NewHandler(service *Service, maxMemory int64) *Handler {
	return &Handler{service: service, maxMemory: maxMemory}
}

// UploadFile handles POST /api/v1/files
func (h *Handler) UploadFile(c *gin.Context) {
	ownerID := mustUserID(c)
	if ownerID == 0 {
		return
	}

	rules := h.service.Rules()
	limit := max(rules.MaxImageSize, rules.MaxDocumentSize) + formOverhead
	form, ok := h.parseForm(c, limit)
	if !ok {
		return
	}
	defer form.RemoveAll()

	meta := readFileForm(form, "", "file")
	if errs := validator.Validate(&meta); errs != nil {
		response.CustomError(c, http.StatusUnprocessableEntity, "VALIDATION_ERROR", errs)
		return
	}

	candidate, err := meta.candidate(firstFile(form, "file"))
	if err != nil {
		response.CustomError(c, http.StatusBadRequest, "INVALID_FORM", err)
		return
	}

	result, err := h.service.UploadSingle(c.Request.Context(), ownerID, candidate)
	if err != nil {
		h.uploadError(c, err)
		return
	}

	switch {
	case result.ValidationError != nil:
		response.ErrorWithDetails(c, http.StatusUnprocessableEntity, "VALIDATION_ERROR",
			result.ValidationError.Message, result.ValidationError)
	case result.QuotaError != nil:
		response.ErrorWithDetails(c, http.StatusRequestEntityTooLarge, "QUOTA_EXCEEDED",
			"Upload exceeds the storage quota", result.QuotaError)
	default:
		response.Success(c, http.StatusCreated, result.File)
	}
}

// UploadBatch handles POST /api/v1/files/batch
func (h *Handler) UploadBatch(c *gin.Context) {
	ownerID := mustUserID(c)
	if ownerID == 0 {
		return
	}

	rules := h.service.Rules()
	limit := int64(h.service.BatchLimit())*rules.MaxDocumentSize + formOverhead
	form, ok := h.parseForm(c, limit)
	if !ok {
		return
	}
	defer form.RemoveAll()

	indexes := batchIndexes(form)
	if len(indexes) == 0 {
		response.CustomError(c, http.StatusBadRequest, "EMPTY_BATCH", "At least one file is required")
		return
	}
	if len(indexes) > h.service.BatchLimit() {
		response.CustomError(c, http.StatusBadRequest, "BATCH_TOO_LARGE",
			"At most "+strconv.Itoa(h.service.BatchLimit())+" files can be uploaded at once")
		return
	}

	metas := make([]FileForm, len(indexes))
	for n, i := range indexes {
		prefix := slotPrefix(i)
		metas[n] = readFileForm(form, prefix+".", prefix)
		if errs := validator.Validate(&metas[n]); errs != nil {
			response.ErrorWithDetails(c, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Invalid field "+prefix, errs)
			return
		}
	}

	candidates := make([]Candidate, 0, len(indexes))
	for n, i := range indexes {
		cand, err := metas[n].candidate(firstFile(form, slotPrefix(i)+".file"))
		if err != nil {
			closeStreams(candidates)
			response.CustomError(c, http.StatusBadRequest, "INVALID_FORM", err)
			return
		}
		candidates = append(candidates, cand)
	}

	result, err := h.service.UploadBatch(c.Request.Context(), ownerID, candidates)
	if err != nil {
		h.uploadError(c, err)
		return
	}

	switch {
	case len(result.ValidationErrors) > 0:
		response.ErrorWithDetails(c, http.StatusUnprocessableEntity, "VALIDATION_ERROR",
			result.ValidationErrors[0].Message, result.ValidationErrors)
	case result.QuotaError != nil:
		response.ErrorWithDetails(c, http.StatusRequestEntityTooLarge, "QUOTA_EXCEEDED",
			"Upload exceeds the storage quota", result.QuotaError)
	default:
		response.Success(c, http.StatusCreated, result.Files)
	}
}

// ListFiles handles GET /api/v1/files
func (h *Handler) ListFiles(c *gin.Context) {
	ownerID := mustUserID(c)
	if ownerID == 0 {
		return
	}

	listing, err := h.service.ListFiles(c.Request.Context(), ownerID)
	if err != nil {
		h.uploadError(c, err)
		return
	}
	response.Success(c, http.StatusOK, listing)
}

// RenameFile handles PATCH /api/v1/files/name
func (h *Handler) RenameFile(c *gin.Context) {
	ownerID := mustUserID(c)
	if ownerID == 0 {
		return
	}

	var req RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.CustomError(c, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.CustomError(c, http.StatusUnprocessableEntity, "VALIDATION_ERROR", errs)
		return
	}

	f, verr, err := h.service.RenameFile(c.Request.Context(), ownerID, req.Path, req.Name)
	if err != nil {
		h.uploadError(c, err)
		return
	}
	if verr != nil {
		response.ErrorWithDetails(c, http.StatusUnprocessableEntity, "VALIDATION_ERROR", verr.Message, verr)
		return
	}
	response.Success(c, http.StatusOK, f)
}

// DeleteFile handles DELETE /api/v1/files?path=
func (h *Handler) DeleteFile(c *gin.Context) {
	ownerID := mustUserID(c)
	if ownerID == 0 {
		return
	}

	path := c.Query("path")
	if path == "" {
		response.CustomError(c, http.StatusBadRequest, "INVALID_PATH", "path is required")
		return
	}

	if err := h.service.DeleteFile(c.Request.Context(), ownerID, path); err != nil {
		h.uploadError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// PurgeOwner handles DELETE /api/v1/admin/owners/:id/files
func (h *Handler) PurgeOwner(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.CustomError(c, http.StatusBadRequest, "INVALID_ID", "Invalid owner ID")
		return
	}

	n, err := h.service.PurgeOwner(c.Request.Context(), id)
	if err != nil {
		h.uploadError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": n})
}

// parseForm buffers the multipart body, spilling large parts to disk.
func (h *Handler) parseForm(c *gin.Context, limit int64) (*multipart.Form, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	if err := c.Request.ParseMultipartForm(h.maxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			response.CustomError(c, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body is too large")
		case isDisconnect(err):
			logger.InfoContext(c.Request.Context(), "client disconnected during upload", "error", err)
			response.CustomError(c, http.StatusBadRequest, "UPLOAD_INTERRUPTED", "Upload was interrupted")
		default:
			response.CustomError(c, http.StatusBadRequest, "INVALID_FORM", "Expected a multipart form")
		}
		return nil, false
	}
	return c.Request.MultipartForm, true
}

func (h *Handler) uploadError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrOwnerNotFound):
		response.CustomError(c, http.StatusNotFound, "OWNER_NOT_FOUND", "Owner not found")
	case errors.Is(err, ErrFileNotFound):
		response.CustomError(c, http.StatusNotFound, "FILE_NOT_FOUND", "File not found")
	case errors.Is(err, ErrImageRename):
		response.CustomError(c, http.StatusBadRequest, "IMAGE_RENAME", "The profile image cannot be renamed")
	case errors.Is(err, ErrEmptyBatch):
		response.CustomError(c, http.StatusBadRequest, "EMPTY_BATCH", "At least one file is required")
	case errors.Is(err, ErrBatchTooLarge):
		response.CustomError(c, http.StatusBadRequest, "BATCH_TOO_LARGE", err)
	case errors.Is(err, ErrDisconnected):
		response.CustomError(c, http.StatusBadRequest, "UPLOAD_INTERRUPTED", "Upload was interrupted")
	default:
		logger.ErrorContext(c.Request.Context(), "upload request failed", "error", err)
		response.CustomError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

func closeStreams(candidates []Candidate) {
	for _, c := range candidates {
		if c.Stream != nil {
			_ = c.Stream.Close()
		}
	}
}

func mustUserID(c *gin.Context) int64 {
	id, exists := c.Get("user_id")
	if !exists {
		response.CustomError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return 0
	}
	switch v := id.(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	}
	response.CustomError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid user id")
	return 0
}
