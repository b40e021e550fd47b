package models

// ApplicantStats counts applicants by assessment status.
type ApplicantStats struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Passed   int `json:"passed"`
	Failed   int `json:"failed"`
	Enrolled int `json:"enrolled"`
}

// AssessmentPerformance summarises placement quiz outcomes.
type AssessmentPerformance struct {
	PassRate      int `json:"pass_rate"`
	AverageScore  int `json:"average_score"`
	TotalAssessed int `json:"total_assessed"`
}

// DashboardStats is the admin landing summary.
type DashboardStats struct {
	TotalApplicants  int `json:"total_applicants"`
	EnrolledStudents int `json:"enrolled_students"`
	ActiveBatches    int `json:"active_batches"`
	Instructors      int `json:"instructors"`
	PassRate         int `json:"pass_rate"`
}

// Analytics bundles the admin analytics views.
type Analytics struct {
	Applicants  ApplicantStats        `json:"applicants"`
	Performance AssessmentPerformance `json:"performance"`
	Dashboard   DashboardStats        `json:"dashboard"`
}

// Upload is a file received from a client, already buffered.
type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Size returns the payload length.
func (u Upload) Size() int64 {
	return int64(len(u.Data))
}
