package models

import "time"

// Role is the portal role stored on a profile.
type Role string

const (
	RoleAdmin            Role = "Admin"
	RoleInstructor       Role = "Instructor"
	RoleStudentApplicant Role = "Student Applicant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleInstructor, RoleStudentApplicant:
		return true
	}
	return false
}

// AssessmentStatus tracks an applicant through placement and enrollment.
type AssessmentStatus string

const (
	AssessmentPending     AssessmentStatus = "pending"
	AssessmentPassed      AssessmentStatus = "passed"
	AssessmentFailed      AssessmentStatus = "failed"
	AssessmentEnrolled    AssessmentStatus = "enrolled"
	AssessmentRemediation AssessmentStatus = "remediation"
)

// Batch labels used when an applicant's batch cannot be resolved.
const (
	BatchLabelUnassigned    = "Unassigned"
	BatchLabelNotApplicable = "N/A"
)

// Profile is a row of the profiles table.
type Profile struct {
	ID               string       `db:"id"`
	Email            string       `db:"email"`
	FullName         string       `db:"full_name"`
	Role             Role         `db:"role"`
	AvatarURL        *string      `db:"avatar_url"`
	AssessmentStatus *string      `db:"assessment_status"`
	AssessmentScore  *int         `db:"assessment_score"`
	AssessmentTotal  *int         `db:"assessment_total"`
	BatchID          *string      `db:"batch_id"`
	Documents        RequiredDocs `db:"documents"`
	CreatedAt        time.Time    `db:"created_at"`
	UpdatedAt        time.Time    `db:"updated_at"`
}

// User is an identity as seen by the portal. Applicant fields are only set for Student Applicants.
type User struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	Role      Role    `json:"role"`
	AvatarURL *string `json:"avatar_url"`

	AssessmentStatus AssessmentStatus `json:"assessment_status,omitempty"`
	AssessmentScore  *int             `json:"assessment_score,omitempty"`
	AssessmentTotal  *int             `json:"assessment_total,omitempty"`
	BatchID          *string          `json:"batch_id,omitempty"`
	Batch            string           `json:"batch,omitempty"`
	Documents        RequiredDocs     `json:"documents,omitempty"`
}

// IsApplicant reports whether the user carries applicant state.
func (u User) IsApplicant() bool {
	return u.Role == RoleStudentApplicant
}

// Clone returns a deep copy so callers never share slices with the store.
func (u User) Clone() User {
	out := u
	out.Documents = u.Documents.Clone()
	return out
}

// UserFromProfile maps a profile row; batchNames resolves batch_id to a display label.
func UserFromProfile(p Profile, batchNames map[string]string) User {
	user := User{
		ID:        p.ID,
		Name:      p.FullName,
		Email:     p.Email,
		Role:      p.Role,
		AvatarURL: p.AvatarURL,
	}
	if p.Role != RoleStudentApplicant {
		return user
	}

	user.AssessmentStatus = AssessmentPending
	if p.AssessmentStatus != nil && *p.AssessmentStatus != "" {
		user.AssessmentStatus = AssessmentStatus(*p.AssessmentStatus)
	}
	user.AssessmentScore = p.AssessmentScore
	user.AssessmentTotal = p.AssessmentTotal
	user.BatchID = p.BatchID
	user.Documents = p.Documents.OrDefault()

	user.Batch = BatchLabelNotApplicable
	if user.AssessmentStatus == AssessmentEnrolled {
		user.Batch = BatchLabelUnassigned
	}
	if p.BatchID != nil {
		if name, ok := batchNames[*p.BatchID]; ok {
			user.Batch = name
		}
	}
	return user
}
