package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// Experience is one work history entry on a resume.
type Experience struct {
	JobTitle    string `json:"job_title"`
	Company     string `json:"company"`
	Description string `json:"description"`
}

// Resume is the applicant-authored CV rendered to PDF.
type Resume struct {
	FullName       string       `json:"full_name"`
	Email          string       `json:"email"`
	Phone          string       `json:"phone"`
	Address        string       `json:"address"`
	Skills         string       `json:"skills"`
	WorkExperience []Experience `json:"work_experience"`
}

// ResumeRenderer lays out a Resume on a single A4 portrait flow.
type ResumeRenderer struct{}

// NewResumeRenderer constructs a resume renderer.
func NewResumeRenderer() *ResumeRenderer {
	return &ResumeRenderer{}
}

// Render produces the PDF bytes.
func (r *ResumeRenderer) Render(resume Resume) ([]byte, error) {
	if strings.TrimSpace(resume.FullName) == "" || strings.TrimSpace(resume.Email) == "" {
		return nil, fmt.Errorf("resume requires full name and email")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(18, 18, 18)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 20)
	pdf.CellFormat(0, 10, resume.FullName, "", 1, "L", false, 0, "")

	contact := []string{resume.Email}
	for _, v := range []string{resume.Phone, resume.Address} {
		if strings.TrimSpace(v) != "" {
			contact = append(contact, v)
		}
	}
	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(71, 85, 105)
	pdf.CellFormat(0, 6, strings.Join(contact, "  |  "), "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(4)

	section := func(title string) {
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(0, 8, strings.ToUpper(title), "B", 1, "L", false, 0, "")
		pdf.Ln(2)
	}

	if skills := splitSkills(resume.Skills); len(skills) > 0 {
		section("Skills")
		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(0, 5, strings.Join(skills, ", "), "", "L", false)
		pdf.Ln(3)
	}

	var entries []Experience
	for _, exp := range resume.WorkExperience {
		if strings.TrimSpace(exp.JobTitle) == "" && strings.TrimSpace(exp.Company) == "" {
			continue
		}
		entries = append(entries, exp)
	}
	if len(entries) > 0 {
		section("Work Experience")
		for _, exp := range entries {
			pdf.SetFont("Arial", "B", 11)
			heading := exp.JobTitle
			if exp.Company != "" {
				if heading != "" {
					heading += " - "
				}
				heading += exp.Company
			}
			pdf.CellFormat(0, 6, heading, "", 1, "L", false, 0, "")
			if exp.Description != "" {
				pdf.SetFont("Arial", "", 10)
				pdf.MultiCell(0, 5, exp.Description, "", "L", false)
			}
			pdf.Ln(2)
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render resume: %w", err)
	}
	return buf.Bytes(), nil
}

func splitSkills(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
