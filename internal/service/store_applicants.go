package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/prhi-portal-api/internal/models"
	"github.com/noah-isme/prhi-portal-api/internal/realtime"
	appErrors "github.com/noah-isme/prhi-portal-api/pkg/errors"
	"github.com/noah-isme/prhi-portal-api/pkg/events"
	"github.com/noah-isme/prhi-portal-api/pkg/storage"
)

var unsafeDocName = regexp.MustCompile(`[^a-zA-Z0-9-]`)

// SubmitAssessment stores a placement quiz result. The applicant passes with at least the passing score.
func (s *Store) SubmitAssessment(ctx context.Context, userID string, score, total int) error {
	status := models.AssessmentFailed
	if score >= s.cfg.PassingScore {
		status = models.AssessmentPassed
	}
	if err := s.gw.Profiles.UpdateAssessment(ctx, userID, status, score, total); err != nil {
		s.logger.Error("error updating assessment status", zap.String("user_id", userID), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Failed to save your quiz result. Please try again.")
	}
	s.announce(ctx, tableProfiles, realtime.OpUpdate, userID)

	email := ""
	if u, ok := s.findUser(userID); ok {
		email = u.Email
	}
	s.events.Emit(events.TypeAssessmentSubmitted, userID, email,
		fmt.Sprintf("Your placement assessment was recorded: %d/%d (%s).", score, total, status),
		map[string]string{"user_id": userID, "status": string(status), "score": fmt.Sprint(score), "total": fmt.Sprint(total)})

	s.refresh(ctx, CollectionUsers)
	return nil
}

// SubmitQuiz grades the current applicant's answers and records the result.
func (s *Store) SubmitQuiz(ctx context.Context, answers []string) (QuizResult, error) {
	user, err := s.requireRole(models.RoleStudentApplicant, "Only student applicants can take the assessment.")
	if err != nil {
		return QuizResult{}, err
	}
	result, err := GradeQuiz(answers)
	if err != nil {
		return QuizResult{}, err
	}
	if err := s.SubmitAssessment(ctx, user.ID, result.Score, result.Total); err != nil {
		return QuizResult{}, err
	}
	result.Passed = result.Score >= s.cfg.PassingScore
	return result, nil
}

// SendToRemediation moves an applicant to remediation.
func (s *Store) SendToRemediation(ctx context.Context, applicantID string) error {
	if _, ok := s.applicant(applicantID); !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "Applicant not found.")
	}
	if err := s.gw.Profiles.UpdateAssessmentStatus(ctx, applicantID, models.AssessmentRemediation); err != nil {
		return failure(err, "Failed to update applicant")
	}
	s.announce(ctx, tableProfiles, realtime.OpUpdate, applicantID)
	s.refresh(ctx, CollectionUsers)
	return nil
}

// EnrollStudent places an applicant in a batch. Enrolling twice in the same batch changes nothing.
func (s *Store) EnrollStudent(ctx context.Context, applicantID, batchID string) error {
	applicant, ok := s.applicant(applicantID)
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "Applicant not found.")
	}
	if err := s.gw.Profiles.EnrollInBatch(ctx, applicantID, batchID); err != nil {
		return failure(err, "Failed to enroll student")
	}
	s.announce(ctx, tableProfiles, realtime.OpUpdate, applicantID)

	batchName := models.BatchLabelUnassigned
	if b, ok := s.Batch(batchID); ok {
		batchName = b.Name
	}
	s.events.Emit(events.TypeStudentEnrolled, applicantID, applicant.Email,
		fmt.Sprintf("You have been enrolled in %s.", batchName),
		map[string]string{"student_id": applicantID, "batch_id": batchID, "student_email": applicant.Email})

	s.refresh(ctx, CollectionBatches, CollectionUsers)
	return nil
}

// UploadDocument stores a checklist document for the current applicant and marks it Uploaded.
func (s *Store) UploadDocument(ctx context.Context, docName string, upload models.Upload) error {
	user, err := s.requireRole(models.RoleStudentApplicant, "Only student applicants can upload documents.")
	if err != nil {
		return err
	}
	docs := user.Documents.OrDefault()
	idx := docs.Find(docName)
	if idx < 0 {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("Unknown required document %q.", docName))
	}

	key := fmt.Sprintf("user-documents/%s/%s-%s", user.ID, unsafeDocName.ReplaceAllString(docName, "_"), upload.FileName)
	if err := s.gw.Files.Put(ctx, s.gw.Buckets.Private, key, bytes.NewReader(upload.Data), upload.Size(), upload.ContentType); err != nil {
		return failure(err, "Failed to upload file")
	}

	name := upload.FileName
	docs[idx].Status = models.DocumentUploaded
	docs[idx].FileName = &name
	docs[idx].FilePath = &key
	docs[idx].RejectionReason = nil
	if err := s.gw.Profiles.UpdateDocuments(ctx, user.ID, docs); err != nil {
		return failure(err, "Failed to update your profile")
	}
	s.announce(ctx, tableProfiles, realtime.OpUpdate, user.ID)

	user.Documents = docs
	s.state.SetUser(user)
	s.refresh(ctx, CollectionUsers)
	return nil
}

// ReviewDocument approves or rejects an uploaded document. Rejections need a reason.
func (s *Store) ReviewDocument(ctx context.Context, applicantID, docName string, approve bool, reason string) error {
	if user, ok := s.state.CurrentUser(); !ok || user.IsApplicant() {
		return appErrors.Clone(appErrors.ErrForbidden, "Only staff can review documents.")
	}
	applicant, ok := s.applicant(applicantID)
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "Applicant not found.")
	}
	docs := applicant.Documents.OrDefault()
	idx := docs.Find(docName)
	if idx < 0 {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("Unknown required document %q.", docName))
	}
	if docs[idx].Status == models.DocumentPending || docs[idx].FilePath == nil {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "Document has not been uploaded yet.")
	}
	reason = strings.TrimSpace(reason)
	if approve {
		docs[idx].Status = models.DocumentApproved
		docs[idx].RejectionReason = nil
	} else {
		if reason == "" {
			return appErrors.Clone(appErrors.ErrValidation, "A reason is required to reject a document.")
		}
		docs[idx].Status = models.DocumentRejected
		docs[idx].RejectionReason = &reason
	}
	if err := s.gw.Profiles.UpdateDocuments(ctx, applicantID, docs); err != nil {
		return failure(err, "Failed to update documents")
	}
	s.announce(ctx, tableProfiles, realtime.OpUpdate, applicantID)

	message := fmt.Sprintf("Your document \"%s\" was approved.", docName)
	if !approve {
		message = fmt.Sprintf("Your document \"%s\" was rejected: %s", docName, reason)
	}
	if s.events != nil && s.events.inbox != nil {
		s.events.inbox.Add(applicant.Email, message)
	}
	s.refresh(ctx, CollectionUsers)
	return nil
}

// DownloadPrivateFile reads a file from the private bucket.
func (s *Store) DownloadPrivateFile(ctx context.Context, filePath string) ([]byte, error) {
	key, err := s.authorizePrivatePath(filePath)
	if err != nil {
		return nil, err
	}
	rc, err := s.gw.Files.Get(ctx, s.gw.Buckets.Private, key)
	if err == nil {
		defer rc.Close()
		var data []byte
		if data, err = io.ReadAll(rc); err == nil {
			return data, nil
		}
	}
	s.notifier.ShowError(fmt.Sprintf("Could not download document: %v", err))
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "document not found")
	}
	return nil, failure(err, "Could not download document")
}

// GetSignedDocumentURL returns a time-limited link to a private file.
func (s *Store) GetSignedDocumentURL(ctx context.Context, filePath string) (string, error) {
	key, err := s.authorizePrivatePath(filePath)
	if err != nil {
		return "", err
	}
	cacheKey := "signed-url:" + s.gw.Buckets.Private + ":" + key
	var cached string
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit && cached != "" {
		return cached, nil
	}

	url, err := s.gw.Files.SignedURL(ctx, s.gw.Buckets.Private, key, s.cfg.SignedURLTTL)
	if err != nil {
		s.notifier.ShowError(fmt.Sprintf("Could not get document URL: %v", err))
		if errors.Is(err, storage.ErrObjectNotFound) {
			return "", appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "document not found")
		}
		return "", failure(err, "Could not get document URL")
	}
	_ = s.cache.Set(ctx, cacheKey, url, s.cfg.SignedURLTTL/2)
	return url, nil
}

// UploadAvatar stores a profile picture and returns its public URL with a cache-busting query.
func (s *Store) UploadAvatar(ctx context.Context, userID string, upload models.Upload) (string, error) {
	if err := s.requireSelfOrAdmin(userID); err != nil {
		return "", err
	}
	ext := strings.TrimPrefix(path.Ext(upload.FileName), ".")
	if ext == "" {
		ext = upload.FileName
	}
	key := fmt.Sprintf("avatars/%s.%s", userID, ext)
	if err := s.gw.Files.Put(ctx, s.gw.Buckets.Avatars, key, bytes.NewReader(upload.Data), upload.Size(), upload.ContentType); err != nil {
		return "", failure(err, "Failed to upload avatar")
	}
	return fmt.Sprintf("%s?t=%d", s.gw.Files.PublicURL(s.gw.Buckets.Avatars, key), s.now().UnixMilli()), nil
}

// UpdateUserAvatar saves the avatar URL without its query string.
func (s *Store) UpdateUserAvatar(ctx context.Context, userID, avatarURL string) error {
	if err := s.requireSelfOrAdmin(userID); err != nil {
		return err
	}
	clean := strings.SplitN(avatarURL, "?", 2)[0]
	if err := s.gw.Profiles.UpdateAvatar(ctx, userID, clean); err != nil {
		return failure(err, "Failed to update user profile in database")
	}
	s.announce(ctx, tableProfiles, realtime.OpUpdate, userID)
	if current, ok := s.state.CurrentUser(); ok && current.ID == userID {
		current.AvatarURL = &avatarURL
		s.state.SetUser(current)
	}
	s.refresh(ctx, CollectionUsers)
	return nil
}

func (s *Store) applicant(id string) (models.User, bool) {
	u, ok := s.findUser(id)
	if !ok || !u.IsApplicant() {
		return models.User{}, false
	}
	return u, true
}

func (s *Store) requireSelfOrAdmin(userID string) error {
	user, ok := s.state.CurrentUser()
	if !ok {
		return appErrors.Clone(appErrors.ErrUnauthorized, "User not authenticated.")
	}
	if user.ID != userID && user.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "You can only change your own profile.")
	}
	return nil
}

// authorizePrivatePath limits applicants to files stored under their own id.
func (s *Store) authorizePrivatePath(filePath string) (string, error) {
	key, err := storage.CleanKey(filePath)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid file path")
	}
	user, ok := s.state.CurrentUser()
	if !ok {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "User not authenticated.")
	}
	if !user.IsApplicant() {
		return key, nil
	}
	parts := strings.Split(key, "/")
	owned := (len(parts) >= 3 && parts[0] == "user-documents" && parts[1] == user.ID) ||
		(len(parts) >= 4 && parts[0] == "submissions" && parts[2] == user.ID)
	if !owned {
		return "", appErrors.Clone(appErrors.ErrForbidden, "You do not have access to this document.")
	}
	return key, nil
}
