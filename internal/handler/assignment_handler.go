package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/prhi-portal-api/internal/dto"
	"github.com/noah-isme/prhi-portal-api/internal/models"
	"github.com/noah-isme/prhi-portal-api/internal/workflow"
	appErrors "github.com/noah-isme/prhi-portal-api/pkg/errors"
	"github.com/noah-isme/prhi-portal-api/pkg/response"
)

// AssignmentHandler manages assignments, submissions and grading.
type AssignmentHandler struct{}

// NewAssignmentHandler creates a new handler.
func NewAssignmentHandler() *AssignmentHandler {
	return &AssignmentHandler{}
}

// List godoc
// @Summary List assignments
// @Description Instructors see their assignments, students the ones routed to them with their status
// @Tags Assignments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /assignments [get]
func (h *AssignmentHandler) List(c *gin.Context) {
	p, _, ok := currentPortal(c)
	if !ok {
		return
	}
	response.JSON(c, http.StatusOK, p.Store.Assignments(), nil)
}

// Create godoc
// @Summary Create an assignment
// @Tags Assignments
// @Accept json,mpfd
// @Produce json
// @Param payload body dto.AssignmentRequest true "Assignment; as multipart, a payload field plus files parts"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /assignments [post]
func (h *AssignmentHandler) Create(c *gin.Context) {
	h.save(c, "")
}

// Update godoc
// @Summary Edit an assignment
// @Tags Assignments
// @Accept json,mpfd
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body dto.AssignmentRequest true "Assignment"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id} [put]
func (h *AssignmentHandler) Update(c *gin.Context) {
	h.save(c, c.Param("id"))
}

func (h *AssignmentHandler) save(c *gin.Context, editingID string) {
	p, _, ok := currentPortal(c)
	if !ok {
		return
	}
	var req dto.AssignmentRequest
	if !bindPayload(c, &req) {
		return
	}
	draft, err := req.ToDraft()
	if err != nil {
		response.Error(c, invalid(err))
		return
	}
	uploads, err := formUploads(c, "files")
	if err != nil {
		response.Error(c, err)
		return
	}
	edit := workflow.AssignmentEdit{Draft: draft, Uploads: uploads}
	if err := workflow.ForPortal(p).Assignment(edit, editingID).Submit(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if editingID == "" {
		status = http.StatusCreated
	}
	response.JSON(c, status, p.Store.Assignments(), nil)
}

// Delete godoc
// @Summary Delete an assignment
// @Description Removes its submissions and stored files
// @Tags Assignments
// @Param id path string true "Assignment ID"
// @Success 204 {object} response.Envelope
// @Router /assignments/{id} [delete]
func (h *AssignmentHandler) Delete(c *gin.Context) {
	p, _, ok := currentPortal(c)
	if !ok {
		return
	}
	if err := p.Store.DeleteAssignment(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, p, err)
		return
	}
	p.Notifier.ShowSuccess("Assignment deleted.")
	response.NoContent(c)
}

// AssignStudents godoc
// @Summary Route an assignment to students
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body dto.AssignStudentsRequest true "Student emails"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id}/students [put]
func (h *AssignmentHandler) AssignStudents(c *gin.Context) {
	p, _, ok := currentPortal(c)
	if !ok {
		return
	}
	var req dto.AssignStudentsRequest
	if !bindJSON(c, &req) {
		return
	}
	draft := workflow.AssignmentStudents{AssignmentID: c.Param("id"), Emails: req.Emails}
	if err := workflow.ForPortal(p).AssignmentStudents(draft).Submit(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, p.Store.Assignments(), nil)
}

// Submissions godoc
// @Summary Submissions of an assignment
// @Tags Assignments
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id}/submissions [get]
func (h *AssignmentHandler) Submissions(c *gin.Context) {
	p, _, ok := currentPortal(c)
	if !ok {
		return
	}
	submissions, err := p.Store.GetSubmissionsForAssignment(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, p, err)
		return
	}
	response.JSON(c, http.StatusOK, submissions, nil)
}

// Submit godoc
// @Summary Submit an assignment
// @Tags Assignments
// @Accept json,mpfd
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body dto.SubmitRequest true "Answer; as multipart, a text field and an optional file part"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /assignments/{id}/submit [post]
func (h *AssignmentHandler) Submit(c *gin.Context) {
	p, _, ok := currentPortal(c)
	if !ok {
		return
	}
	var (
		req    dto.SubmitRequest
		upload *models.Upload
	)
	if isMultipart(c) {
		req.Text = c.PostForm("text")
		up, err := formUpload(c, "file")
		if err != nil {
			response.Error(c, err)
			return
		}
		upload = up
	} else if !bindJSON(c, &req) {
		return
	}

	id := c.Param("id")
	if err := p.Store.SubmitAssignment(c.Request.Context(), id, req.Text, upload); err != nil {
		fail(c, p, err)
		return
	}
	title := id
	for _, a := range p.Store.Assignments() {
		if a.ID == id {
			title = a.Title
			break
		}
	}
	p.Notifier.ShowSuccess(fmt.Sprintf("Successfully submitted %q.", title))
	response.Created(c, p.Store.Assignments())
}

// Pending godoc
// @Summary Submissions awaiting review
// @Tags Assignments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /submissions/pending [get]
func (h *AssignmentHandler) Pending(c *gin.Context) {
	p, _, ok := currentPortal(c)
	if !ok {
		return
	}
	response.JSON(c, http.StatusOK, p.Store.PendingSubmissions(), nil)
}

// Grade godoc
// @Summary Grade a submission
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body dto.GradeRequest true "Score and feedback"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /submissions/{id}/grade [post]
func (h *AssignmentHandler) Grade(c *gin.Context) {
	p, _, ok := currentPortal(c)
	if !ok {
		return
	}
	var req dto.GradeRequest
	if !bindJSON(c, &req) {
		return
	}
	id := c.Param("id")
	var pending *models.PendingSubmission
	for _, s := range p.Store.PendingSubmissions() {
		if s.SubmissionID == id {
			s := s
			pending = &s
			break
		}
	}
	if pending == nil {
		fail(c, p, appErrors.Clone(appErrors.ErrNotFound, "Submission not found or already graded."))
		return
	}
	draft := workflow.Grade{SubmissionID: id, StudentName: pending.StudentName, Score: req.Score, Feedback: req.Feedback}
	if err := workflow.ForPortal(p).Grading(draft).Submit(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, p.Store.PendingSubmissions(), nil)
}
