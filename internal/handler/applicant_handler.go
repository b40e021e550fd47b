package handler

import (
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/prhi-portal-api/internal/dto"
	"github.com/noah-isme/prhi-portal-api/internal/service"
	"github.com/noah-isme/prhi-portal-api/internal/workflow"
	appErrors "github.com/noah-isme/prhi-portal-api/pkg/errors"
	"github.com/noah-isme/prhi-portal-api/pkg/response"
)

// ApplicantHandler serves the applicant pipeline: review, enrollment, documents and assessment.
type ApplicantHandler struct {
	exports *service.ExportService
	logger  *zap.Logger
}

// NewApplicantHandler creates a new handler.
func NewApplicantHandler(exports *service.ExportService, logger *zap.Logger) *ApplicantHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApplicantHandler{exports: exports, logger: logger}
}

// Review godoc
// @Summary Applicants awaiting review
// @Description Applicants who passed the assessment and are not yet enrolled
// @Tags Applicants
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /applicants/review [get]
func (h *ApplicantHandler) Review(c *gin.Context) {
	p, _, ok := currentPortal(c)
	if !ok {
		return
	}
	response.JSON(c, http.StatusOK, p.Store.PendingReviewApplicants(), nil)
}

// Enrolled godoc
// @Summary Enrolled students
// @Tags Applicants
// @Produce json
// @Param search query string false "Name or email contains"
// @Param sort query string false "name, email, batch or assignments"
// @Param direction query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Router /applicants/enrolled [get]
func (h *ApplicantHandler) Enrolled(c *gin.Context) {
	p, _, ok := currentPortal(c)
	if !ok {
		return
	}
	students := p.Store.EnrolledStudents(c.Query("search"), c.Query("sort"), c.Query("direction"))
	response.JSON(c, http.StatusOK, students, nil)
}

// Enroll godoc
// @Summary Enroll an applicant
// @Tags Applicants
// @Accept json
// @Produce json
// @Param id path string true "Applicant ID"
// @Param payload body dto.EnrollRequest true "Batch"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /applicants/{id}/enroll [post]
func (h *ApplicantHandler) Enroll(c *gin.Context) {
	p, _, ok := currentPortal(c)
	if !ok {
		return
	}
	var req dto.EnrollRequest
	if !bindJSON(c, &req) {
		return
	}
	id := c.Param("id")
	applicant, _ := userByID(p.Store.Applicants(), id)
	draft := workflow.Enrollment{ApplicantID: id, ApplicantName: applicant.Name, BatchID: req.BatchID}
	if err := workflow.ForPortal(p).Enrollment(draft).Submit(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, p.Store.PendingReviewApplicants(), nil)
}

// Remediation godoc
// @Summary Send an applicant to remediation
// @Tags Applicants
// @Produce json
// @Param id path string true "Applicant ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /applicants/{id}/remediation [post]
func (h *ApplicantHandler) Remediation(c *gin.Context) {
	p, _, ok := currentPortal(c)
	if !ok {
		return
	}
	id := c.Param("id")
	applicant, _ := userByID(p.Store.Applicants(), id)
	if err := p.Store.SendToRemediation(c.Request.Context(), id); err != nil {
		fail(c, p, err)
		return
	}
	p.Notifier.ShowSuccess(fmt.Sprintf("%s has been sent for remediation.", applicant.Name))
	response.JSON(c, http.StatusOK, p.Store.PendingReviewApplicants(), nil)
}

// Documents godoc
// @Summary An applicant's document checklist
// @Tags Applicants
// @Produce json
// @Param id path string true "Applicant ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /applicants/{id}/documents [get]
func (h *ApplicantHandler) Documents(c *gin.Context) {
	p, _, ok := currentPortal(c)
	if !ok {
		return
	}
	applicant, found := userByID(p.Store.Applicants(), c.Param("id"))
	if !found {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "Applicant not found."))
		return
	}
	response.JSON(c, http.StatusOK, p.Store.GetDocumentsForStudent(applicant.Email), nil)
}

// ReviewDocument godoc
// @Summary Approve or reject a document
// @Description Rejections require a reason
// @Tags Applicants
// @Accept json
// @Produce json
// @Param id path string true "Applicant ID"
// @Param payload body dto.DocumentReviewRequest true "Review"
// @Success 200 {object} response.Envelope
// @Router /applicants/{id}/documents/review [post]
func (h *ApplicantHandler) ReviewDocument(c *gin.Context) {
	p, _, ok := currentPortal(c)
	if !ok {
		return
	}
	var req dto.DocumentReviewRequest
	if !bindJSON(c, &req) {
		return
	}
	id := c.Param("id")
	if err := p.Store.ReviewDocument(c.Request.Context(), id, req.Document, req.Approve, req.Reason); err != nil {
		fail(c, p, err)
		return
	}
	verdict := "rejected"
	if req.Approve {
		verdict = "approved"
	}
	p.Notifier.ShowSuccess(fmt.Sprintf("%s %s.", req.Document, verdict))
	applicant, _ := userByID(p.Store.Applicants(), id)
	response.JSON(c, http.StatusOK, p.Store.GetDocumentsForStudent(applicant.Email), nil)
}

// DocumentURL godoc
// @Summary Signed link to a private document
// @Tags Documents
// @Produce json
// @Param path query string true "Object key in the private bucket"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /documents/url [get]
func (h *ApplicantHandler) DocumentURL(c *gin.Context) {
	p, _, ok := currentPortal(c)
	if !ok {
		return
	}
	url, err := p.Store.GetSignedDocumentURL(c.Request.Context(), c.Query("path"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.SignedURLResponse{URL: url}, nil)
}

// Download godoc
// @Summary Download a private document
// @Tags Documents
// @Produce octet-stream
// @Param path query string true "Object key in the private bucket"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /documents/download [get]
func (h *ApplicantHandler) Download(c *gin.Context) {
	p, _, ok := currentPortal(c)
	if !ok {
		return
	}
	key := c.Query("path")
	data, err := p.Store.DownloadPrivateFile(c.Request.Context(), key)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, path.Base(key), http.DetectContentType(data), data)
}

type quizView struct {
	Status    string                 `json:"status"`
	Questions []service.QuizQuestion `json:"questions"`
}

// Quiz godoc
// @Summary Placement quiz
// @Tags Assessment
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /assessment/quiz [get]
func (h *ApplicantHandler) Quiz(c *gin.Context) {
	p, _, ok := currentPortal(c)
	if !ok {
		return
	}
	response.JSON(c, http.StatusOK, quizView{
		Status:    string(p.Store.AssessmentStatus()),
		Questions: service.QuizQuestions(),
	}, nil)
}

// SubmitQuiz godoc
// @Summary Submit the placement quiz
// @Tags Assessment
// @Accept json
// @Produce json
// @Param payload body dto.QuizSubmission true "Answers in question order"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /assessment/quiz [post]
func (h *ApplicantHandler) SubmitQuiz(c *gin.Context) {
	p, _, ok := currentPortal(c)
	if !ok {
		return
	}
	var req dto.QuizSubmission
	if !bindJSON(c, &req) {
		return
	}
	result, err := p.Store.SubmitQuiz(c.Request.Context(), req.Answers)
	if err != nil {
		fail(c, p, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// StudentDocuments godoc
// @Summary The caller's document checklist
// @Tags Student
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /student/documents [get]
func (h *ApplicantHandler) StudentDocuments(c *gin.Context) {
	p, _, ok := currentPortal(c)
	if !ok {
		return
	}
	response.JSON(c, http.StatusOK, p.Store.StudentDocuments(), nil)
}

// UploadDocument godoc
// @Summary Upload a checklist document
// @Tags Student
// @Accept mpfd
// @Produce json
// @Param document formData string true "Checklist entry name"
// @Param file formData file true "Document"
// @Success 200 {object} response.Envelope
// @Router /student/documents [post]
func (h *ApplicantHandler) UploadDocument(c *gin.Context) {
	p, _, ok := currentPortal(c)
	if !ok {
		return
	}
	docName := strings.TrimSpace(c.PostForm("document"))
	upload, err := formUpload(c, "file")
	if err != nil {
		response.Error(c, err)
		return
	}
	if docName == "" || upload == nil {
		fail(c, p, appErrors.Clone(appErrors.ErrValidation, "Please fill out all required fields."))
		return
	}
	if err := p.Store.UploadDocument(c.Request.Context(), docName, *upload); err != nil {
		fail(c, p, err)
		return
	}
	p.Notifier.ShowSuccess(fmt.Sprintf("Uploaded %s for %s.", upload.FileName, docName))
	response.JSON(c, http.StatusOK, p.Store.StudentDocuments(), nil)
}

// Resume godoc
// @Summary Render a resume
// @Tags Student
// @Accept json
// @Produce application/pdf
// @Param payload body dto.ResumeRequest true "Resume"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /student/resume [post]
func (h *ApplicantHandler) Resume(c *gin.Context) {
	p, _, ok := currentPortal(c)
	if !ok {
		return
	}
	var req dto.ResumeRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.exports.Resume(req.Resume)
	if err != nil {
		fail(c, p, err)
		return
	}
	response.Attachment(c, result.FileName, result.ContentType, result.Data)
}
