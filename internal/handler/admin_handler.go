package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/prhi-portal-api/internal/dto"
	"github.com/noah-isme/prhi-portal-api/internal/service"
	"github.com/noah-isme/prhi-portal-api/internal/workflow"
	appErrors "github.com/noah-isme/prhi-portal-api/pkg/errors"
	"github.com/noah-isme/prhi-portal-api/pkg/response"
)

// AdminHandler serves user administration, analytics and roster exports.
type AdminHandler struct {
	exports *service.ExportService
	logger  *zap.Logger
}

// NewAdminHandler creates a new handler.
func NewAdminHandler(exports *service.ExportService, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{exports: exports, logger: logger}
}

// Users godoc
// @Summary List users
// @Tags Admin
// @Produce json
// @Param role query string false "Filter by role"
// @Success 200 {object} response.Envelope
// @Router /admin/users [get]
func (h *AdminHandler) Users(c *gin.Context) {
	p, _, ok := currentPortal(c)
	if !ok {
		return
	}
	users := p.Store.Users()
	if role := strings.TrimSpace(c.Query("role")); role != "" {
		filtered := users[:0:0]
		for _, u := range users {
			if string(u.Role) == role {
				filtered = append(filtered, u)
			}
		}
		users = filtered
	}
	response.JSON(c, http.StatusOK, users, nil)
}

// CreateInstructor godoc
// @Summary Create an instructor account
// @Description Signs up the account and promotes it; the admin's session is kept
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body dto.InstructorRequest true "Instructor"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/instructors [post]
func (h *AdminHandler) CreateInstructor(c *gin.Context) {
	p, _, ok := currentPortal(c)
	if !ok {
		return
	}
	var req dto.InstructorRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := workflow.ForPortal(p).Instructor(req.ToInput()).Submit(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, p.Store.Instructors())
}

// DeleteUser godoc
// @Summary Delete a user
// @Tags Admin
// @Produce json
// @Param id path string true "User ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/users/{id} [delete]
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	p, admin, ok := currentPortal(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if id == admin.ID {
		fail(c, p, appErrors.Clone(appErrors.ErrValidation, "You cannot delete your own account."))
		return
	}
	target, found := userByID(p.Store.Users(), id)
	if !found {
		fail(c, p, appErrors.Clone(appErrors.ErrNotFound, "User not found."))
		return
	}
	if err := p.Sessions.DeleteAccount(c.Request.Context(), id); err != nil {
		fail(c, p, err)
		return
	}
	h.logger.Info("user deleted", zap.String("user_id", id), zap.String("by", admin.ID))
	p.Notifier.ShowSuccess(fmt.Sprintf("User %q has been deleted.", target.Name))
	response.NoContent(c)
}

// Analytics godoc
// @Summary Portal analytics
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/analytics [get]
func (h *AdminHandler) Analytics(c *gin.Context) {
	p, _, ok := currentPortal(c)
	if !ok {
		return
	}
	response.JSON(c, http.StatusOK, p.Store.Analytics(), nil)
}

// Dashboard godoc
// @Summary Dashboard counters
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/dashboard [get]
func (h *AdminHandler) Dashboard(c *gin.Context) {
	p, _, ok := currentPortal(c)
	if !ok {
		return
	}
	response.JSON(c, http.StatusOK, p.Store.DashboardStats(), nil)
}

// ExportApplicants godoc
// @Summary Export the applicant roster
// @Tags Admin
// @Produce octet-stream
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /admin/applicants/export [get]
func (h *AdminHandler) ExportApplicants(c *gin.Context) {
	p, _, ok := currentPortal(c)
	if !ok {
		return
	}
	format := service.ExportFormat(strings.ToLower(c.DefaultQuery("format", string(service.ExportCSV))))
	result, err := h.exports.Applicants(p.Store.Applicants(), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.FileName, result.ContentType, result.Data)
}
