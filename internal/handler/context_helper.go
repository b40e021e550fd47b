package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/prhi-portal-api/internal/middleware"
	"github.com/noah-isme/prhi-portal-api/internal/models"
	"github.com/noah-isme/prhi-portal-api/internal/service"
	appErrors "github.com/noah-isme/prhi-portal-api/pkg/errors"
	"github.com/noah-isme/prhi-portal-api/pkg/response"
)

// maxUploadSize bounds a single uploaded file.
var maxUploadSize int64 = 20 << 20

// SetUploadLimit changes the per-file upload bound.
func SetUploadLimit(n int64) {
	if n > 0 {
		maxUploadSize = n
	}
}

// currentPortal returns the caller's portal and identity, writing 401 when either is missing.
func currentPortal(c *gin.Context) (*service.Portal, models.User, bool) {
	p := middleware.PortalFromContext(c)
	if p == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, models.User{}, false
	}
	user, ok := p.CurrentUser()
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, models.User{}, false
	}
	return p, user, true
}

func clientMeta(c *gin.Context) service.ClientMeta {
	return service.ClientMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return false
	}
	return true
}

// bindPayload reads dst from a JSON body, or from the "payload" field of a multipart form.
func bindPayload(c *gin.Context, dst interface{}) bool {
	if !isMultipart(c) {
		return bindJSON(c, dst)
	}
	raw := c.PostForm("payload")
	if raw == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "payload field required"))
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return false
	}
	return true
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}

func readUpload(fh *multipart.FileHeader) (models.Upload, error) {
	if fh.Size > maxUploadSize {
		return models.Upload{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s is larger than %d MB.", fh.Filename, maxUploadSize>>20))
	}
	f, err := fh.Open()
	if err != nil {
		return models.Upload{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable file")
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxUploadSize+1))
	if err != nil {
		return models.Upload{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable file")
	}
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return models.Upload{FileName: fh.Filename, ContentType: contentType, Data: data}, nil
}

// formUpload reads an optional single file field.
func formUpload(c *gin.Context, field string) (*models.Upload, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		if err == http.ErrMissingFile {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid multipart form")
	}
	up, err := readUpload(fh)
	if err != nil {
		return nil, err
	}
	return &up, nil
}

// formUploads reads every file of a repeated field.
func formUploads(c *gin.Context, field string) ([]models.Upload, error) {
	if !isMultipart(c) {
		return nil, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid multipart form")
	}
	var uploads []models.Upload
	for _, fh := range form.File[field] {
		up, err := readUpload(fh)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, up)
	}
	return uploads, nil
}

func userByID(users []models.User, id string) (models.User, bool) {
	for _, u := range users {
		if u.ID == id {
			return u, true
		}
	}
	return models.User{}, false
}

// fail reports a mutation error on the portal's channel and in the response. Partial
// failures already raised their own critical notice.
func fail(c *gin.Context, p *service.Portal, err error) {
	if !appErrors.IsPartialFailure(err) {
		p.Notifier.ShowError(service.UserMessage(err))
	}
	response.Error(c, err)
}

func invalid(err error) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, err.Error())
}
