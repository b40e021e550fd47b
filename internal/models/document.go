package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// DocumentStatus is the review state of a required document.
type DocumentStatus string

const (
	DocumentPending  DocumentStatus = "Pending"
	DocumentUploaded DocumentStatus = "Uploaded"
	DocumentApproved DocumentStatus = "Approved"
	DocumentRejected DocumentStatus = "Rejected"
)

// RequiredDoc is one entry of an applicant's document checklist.
type RequiredDoc struct {
	Name            string         `json:"name"`
	Status          DocumentStatus `json:"status"`
	FileName        *string        `json:"file_name,omitempty"`
	FilePath        *string        `json:"file_path,omitempty"`
	RejectionReason *string        `json:"rejection_reason,omitempty"`
}

// RequiredDocs is the JSONB-backed checklist column.
type RequiredDocs []RequiredDoc

// DefaultDocuments returns a fresh copy of the standard checklist.
func DefaultDocuments() RequiredDocs {
	return RequiredDocs{
		{Name: "Valid ID (Front)", Status: DocumentPending},
		{Name: "Valid ID (Back)", Status: DocumentPending},
		{Name: "2x2 Photo", Status: DocumentPending},
		{Name: "Proof of Address (Optional)", Status: DocumentPending},
		{Name: "Certificates (Optional)", Status: DocumentPending},
	}
}

// OrDefault returns a copy of d, or the default checklist when nothing was persisted.
func (d RequiredDocs) OrDefault() RequiredDocs {
	if d == nil {
		return DefaultDocuments()
	}
	return d.Clone()
}

// Clone deep-copies the checklist.
func (d RequiredDocs) Clone() RequiredDocs {
	if d == nil {
		return nil
	}
	out := make(RequiredDocs, len(d))
	for i, doc := range d {
		out[i] = doc
		out[i].FileName = cloneString(doc.FileName)
		out[i].FilePath = cloneString(doc.FilePath)
		out[i].RejectionReason = cloneString(doc.RejectionReason)
	}
	return out
}

// Find returns the index of the named document or -1.
func (d RequiredDocs) Find(name string) int {
	for i, doc := range d {
		if doc.Name == name {
			return i
		}
	}
	return -1
}

// Value implements driver.Valuer.
func (d RequiredDocs) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(d)
}

// Scan implements sql.Scanner.
func (d *RequiredDocs) Scan(src interface{}) error {
	if src == nil {
		*d = nil
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported documents type %T", src)
	}
	if len(raw) == 0 || string(raw) == "null" {
		*d = nil
		return nil
	}
	return json.Unmarshal(raw, d)
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
