package handler

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appErrors "github.com/truonghoc-dev/truonghoc-api/pkg/errors"
	"github.com/truonghoc-dev/truonghoc-api/pkg/response"
	"github.com/truonghoc-dev/truonghoc-api/pkg/storage"
)

// UploadedFile describes one stored upload returned to the caller.
type UploadedFile struct {
	OriginalName string    `json:"original_name"`
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	URL          string    `json:"url"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// UploadHandler stores multipart uploads on local disk and hands back
// signed download URLs.
type UploadHandler struct {
	store        *storage.LocalStorage
	signer       *storage.SignedURLSigner
	maxFileSize  int64
	allowedMIMEs map[string]struct{}
}

// NewUploadHandler constructs UploadHandler. allowedMIMEs may be empty to
// accept any content type.
func NewUploadHandler(store *storage.LocalStorage, signer *storage.SignedURLSigner, maxFileSize int64, allowedMIMEs []string) *UploadHandler {
	allowed := make(map[string]struct{}, len(allowedMIMEs))
	for _, m := range allowedMIMEs {
		allowed[strings.ToLower(m)] = struct{}{}
	}
	return &UploadHandler{store: store, signer: signer, maxFileSize: maxFileSize, allowedMIMEs: allowed}
}

// Single godoc
// @Summary Upload one file
// @Tags Uploads
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "File to upload"
// @Success 201 {object} response.Envelope
// @Router /upload/single [post]
func (h *UploadHandler) Single(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file field is required"))
		return
	}
	uploaded, err := h.save(header)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, uploaded)
}

// Multiple godoc
// @Summary Upload several files at once
// @Tags Uploads
// @Accept multipart/form-data
// @Produce json
// @Param files formData file true "Files to upload"
// @Success 201 {object} response.Envelope
// @Router /upload/multiple [post]
func (h *UploadHandler) Multiple(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "multipart form is required"))
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "files field is required"))
		return
	}

	uploaded := make([]*UploadedFile, 0, len(headers))
	for _, header := range headers {
		file, err := h.save(header)
		if err != nil {
			response.Error(c, err)
			return
		}
		uploaded = append(uploaded, file)
	}
	response.Created(c, uploaded)
}

// Download godoc
// @Summary Download an uploaded file via a signed token
// @Tags Uploads
// @Produce application/octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} file
// @Router /upload/download [get]
func (h *UploadHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	_, relPath, _, err := h.signer.Parse(token, false)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, http.StatusUnauthorized, "invalid or expired download token"))
		return
	}
	file, err := h.store.Open(relPath)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "file not found"))
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat file"))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(relPath)))
	c.DataFromReader(http.StatusOK, info.Size(), "application/octet-stream", file, nil)
}

func (h *UploadHandler) save(header *multipart.FileHeader) (*UploadedFile, error) {
	if h.maxFileSize > 0 && header.Size > h.maxFileSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file %s exceeds the %d byte limit", header.Filename, h.maxFileSize))
	}
	if len(h.allowedMIMEs) > 0 {
		contentType := strings.ToLower(header.Header.Get("Content-Type"))
		if _, ok := h.allowedMIMEs[contentType]; !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("content type %s is not allowed", contentType))
		}
	}

	src, err := header.Open()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload")
	}
	defer src.Close()

	id := uuid.NewString()
	filename := id + strings.ToLower(filepath.Ext(header.Filename))
	relPath, err := h.store.SaveStream(filename, src)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store upload")
	}

	token, expires, err := h.signer.Generate(id, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}
	return &UploadedFile{
		OriginalName: header.Filename,
		Path:         relPath,
		Size:         header.Size,
		URL:          fmt.Sprintf("/api/v1/upload/download?token=%s", token),
		ExpiresAt:    expires,
	}, nil
}
