package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/prhi-portal-api/internal/dto"
	"github.com/noah-isme/prhi-portal-api/internal/workflow"
	appErrors "github.com/noah-isme/prhi-portal-api/pkg/errors"
	"github.com/noah-isme/prhi-portal-api/pkg/response"
)

// BatchHandler manages training batches.
type BatchHandler struct{}

// NewBatchHandler creates a new handler.
func NewBatchHandler() *BatchHandler {
	return &BatchHandler{}
}

// List godoc
// @Summary List batches
// @Tags Batches
// @Produce json
// @Param status query string false "active or completed"
// @Success 200 {object} response.Envelope
// @Router /batches [get]
func (h *BatchHandler) List(c *gin.Context) {
	p, _, ok := currentPortal(c)
	if !ok {
		return
	}
	switch c.Query("status") {
	case "active":
		response.JSON(c, http.StatusOK, p.Store.ActiveBatches(), nil)
	case "completed":
		response.JSON(c, http.StatusOK, p.Store.CompletedBatches(), nil)
	default:
		response.JSON(c, http.StatusOK, p.Store.Batches(), nil)
	}
}

// Create godoc
// @Summary Create a batch
// @Description The batch is named after the instructor's batch count and starts In Progress unless one is running
// @Tags Batches
// @Accept json
// @Produce json
// @Param payload body dto.BatchRequest true "Batch"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /batches [post]
func (h *BatchHandler) Create(c *gin.Context) {
	h.save(c, "")
}

// Update godoc
// @Summary Edit a batch
// @Tags Batches
// @Accept json
// @Produce json
// @Param id path string true "Batch ID"
// @Param payload body dto.BatchRequest true "Batch"
// @Success 200 {object} response.Envelope
// @Router /batches/{id} [put]
func (h *BatchHandler) Update(c *gin.Context) {
	h.save(c, c.Param("id"))
}

func (h *BatchHandler) save(c *gin.Context, editingID string) {
	p, _, ok := currentPortal(c)
	if !ok {
		return
	}
	var req dto.BatchRequest
	if !bindJSON(c, &req) {
		return
	}
	draft, err := req.ToDraft()
	if err != nil {
		response.Error(c, invalid(err))
		return
	}
	if err := workflow.ForPortal(p).Batch(draft, editingID).Submit(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	if editingID == "" {
		response.Created(c, p.Store.Batches())
		return
	}
	batch, _ := p.Store.Batch(editingID)
	response.JSON(c, http.StatusOK, batch, nil)
}

// Delete godoc
// @Summary Delete a batch
// @Tags Batches
// @Param id path string true "Batch ID"
// @Success 204 {object} response.Envelope
// @Router /batches/{id} [delete]
func (h *BatchHandler) Delete(c *gin.Context) {
	p, _, ok := currentPortal(c)
	if !ok {
		return
	}
	batch, found := p.Store.Batch(c.Param("id"))
	if !found {
		fail(c, p, appErrors.Clone(appErrors.ErrNotFound, "Batch not found."))
		return
	}
	if err := p.Store.DeleteBatch(c.Request.Context(), batch.ID); err != nil {
		fail(c, p, err)
		return
	}
	p.Notifier.ShowSuccess(fmt.Sprintf("Batch %q deleted successfully.", batch.Name))
	response.NoContent(c)
}

// Complete godoc
// @Summary Complete a batch
// @Description Marks the batch Completed and starts the instructor's next upcoming batch
// @Tags Batches
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Failure 207 {object} response.Envelope
// @Router /batches/{id}/complete [post]
func (h *BatchHandler) Complete(c *gin.Context) {
	p, _, ok := currentPortal(c)
	if !ok {
		return
	}
	batch, found := p.Store.Batch(c.Param("id"))
	if !found {
		fail(c, p, appErrors.Clone(appErrors.ErrNotFound, "Batch not found."))
		return
	}
	if err := p.Store.CompleteBatch(c.Request.Context(), batch.ID); err != nil {
		fail(c, p, err)
		return
	}
	p.Notifier.ShowSuccess(fmt.Sprintf("Batch %q completed. The next batch is now active if available.", batch.Name))
	response.JSON(c, http.StatusOK, p.Store.Batches(), nil)
}

// Students godoc
// @Summary Applicants enrolled in a batch
// @Tags Batches
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Router /batches/{id}/students [get]
func (h *BatchHandler) Students(c *gin.Context) {
	p, _, ok := currentPortal(c)
	if !ok {
		return
	}
	response.JSON(c, http.StatusOK, p.Store.StudentsInBatch(c.Param("id")), nil)
}
