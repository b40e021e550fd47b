package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/prhi-portal-api/internal/dto"
	"github.com/noah-isme/prhi-portal-api/internal/models"
	"github.com/noah-isme/prhi-portal-api/internal/workflow"
	"github.com/noah-isme/prhi-portal-api/pkg/response"
)

// ModuleHandler manages training modules and their lessons.
type ModuleHandler struct{}

// NewModuleHandler creates a new handler.
func NewModuleHandler() *ModuleHandler {
	return &ModuleHandler{}
}

// List godoc
// @Summary List modules
// @Description Instructors see their own modules, students the modules of their batch
// @Tags Modules
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /modules [get]
func (h *ModuleHandler) List(c *gin.Context) {
	p, _, ok := currentPortal(c)
	if !ok {
		return
	}
	response.JSON(c, http.StatusOK, p.Store.Modules(), nil)
}

// Create godoc
// @Summary Create a module
// @Tags Modules
// @Accept json,mpfd
// @Produce json
// @Param payload body dto.ModuleRequest true "Module; as multipart, a payload field plus lesson_file_<n> parts"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /modules [post]
func (h *ModuleHandler) Create(c *gin.Context) {
	h.save(c, "")
}

// Update godoc
// @Summary Edit a module
// @Tags Modules
// @Accept json,mpfd
// @Produce json
// @Param id path string true "Module ID"
// @Param payload body dto.ModuleRequest true "Module"
// @Success 200 {object} response.Envelope
// @Router /modules/{id} [put]
func (h *ModuleHandler) Update(c *gin.Context) {
	h.save(c, c.Param("id"))
}

func (h *ModuleHandler) save(c *gin.Context, editingID string) {
	p, _, ok := currentPortal(c)
	if !ok {
		return
	}
	var req dto.ModuleRequest
	if !bindPayload(c, &req) {
		return
	}
	uploads, err := lessonUploads(c, len(req.Lessons))
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := workflow.ForPortal(p).Module(req.ToDraft(uploads), editingID).Submit(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if editingID == "" {
		status = http.StatusCreated
	}
	response.JSON(c, status, p.Store.Modules(), nil)
}

func lessonUploads(c *gin.Context, lessons int) (map[int]models.Upload, error) {
	uploads := make(map[int]models.Upload)
	if !isMultipart(c) {
		return uploads, nil
	}
	for i := 0; i < lessons; i++ {
		up, err := formUpload(c, fmt.Sprintf("lesson_file_%d", i))
		if err != nil {
			return nil, err
		}
		if up != nil {
			uploads[i] = *up
		}
	}
	return uploads, nil
}

// Delete godoc
// @Summary Delete a module
// @Tags Modules
// @Param id path string true "Module ID"
// @Success 204 {object} response.Envelope
// @Router /modules/{id} [delete]
func (h *ModuleHandler) Delete(c *gin.Context) {
	p, _, ok := currentPortal(c)
	if !ok {
		return
	}
	if err := p.Store.DeleteTrainingModule(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, p, err)
		return
	}
	p.Notifier.ShowSuccess("Module deleted successfully.")
	response.NoContent(c)
}

// AssignBatches godoc
// @Summary Assign a module to batches
// @Description Replaces the module's batch assignments
// @Tags Modules
// @Accept json
// @Produce json
// @Param id path string true "Module ID"
// @Param payload body dto.ModuleBatchesRequest true "Batch ids"
// @Success 200 {object} response.Envelope
// @Router /modules/{id}/batches [put]
func (h *ModuleHandler) AssignBatches(c *gin.Context) {
	p, _, ok := currentPortal(c)
	if !ok {
		return
	}
	var req dto.ModuleBatchesRequest
	if !bindJSON(c, &req) {
		return
	}
	draft := workflow.ModuleBatches{ModuleID: c.Param("id"), BatchIDs: req.BatchIDs}
	if err := workflow.ForPortal(p).ModuleBatches(draft).Submit(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, p.Store.Modules(), nil)
}
