package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/prhi-portal-api/pkg/errors"
	"github.com/noah-isme/prhi-portal-api/pkg/response"
	"github.com/noah-isme/prhi-portal-api/pkg/storage"
)

type tokenParser interface {
	Parse(token string) (bucket, key string, expiresAt time.Time, err error)
}

// FileHandler serves objects of the local file store: public buckets directly and private
// objects through signed tokens.
type FileHandler struct {
	files  storage.ObjectStore
	signer tokenParser
	public map[string]struct{}
	logger *zap.Logger
}

// NewFileHandler creates a handler serving publicBuckets without authentication.
func NewFileHandler(files storage.ObjectStore, signer tokenParser, publicBuckets []string, logger *zap.Logger) *FileHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	public := make(map[string]struct{}, len(publicBuckets))
	for _, b := range publicBuckets {
		public[b] = struct{}{}
	}
	return &FileHandler{files: files, signer: signer, public: public, logger: logger}
}

// Public godoc
// @Summary Download a public object
// @Tags Files
// @Produce octet-stream
// @Param bucket path string true "Bucket"
// @Param key path string true "Object key"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /files/public/{bucket}/{key} [get]
func (h *FileHandler) Public(c *gin.Context) {
	bucket := c.Param("bucket")
	if _, ok := h.public[bucket]; !ok {
		response.Error(c, appErrors.ErrNotFound)
		return
	}
	h.serve(c, bucket, strings.TrimPrefix(c.Param("key"), "/"))
}

// Signed godoc
// @Summary Download through a signed link
// @Tags Files
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /files/signed/{token} [get]
func (h *FileHandler) Signed(c *gin.Context) {
	bucket, key, _, err := h.signer.Parse(c.Param("token"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired link"))
		return
	}
	h.serve(c, bucket, key)
}

func (h *FileHandler) serve(c *gin.Context, bucket, key string) {
	key, err := storage.CleanKey(key)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid file path"))
		return
	}
	rc, err := h.files.Get(c.Request.Context(), bucket, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			response.Error(c, appErrors.ErrNotFound)
			return
		}
		h.logger.Error("read object", zap.String("bucket", bucket), zap.String("key", key), zap.Error(err))
		response.Error(c, appErrors.ErrInternal)
		return
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	c.Header("Content-Disposition", "inline; filename=\""+storage.BaseName(key)+"\"")
	c.Data(http.StatusOK, http.DetectContentType(data), data)
}
