package intake

import (
	"errors"
	"fmt"
	"net/mail"
	"path"
	"strings"
	"unicode/utf8"
)

// Form is a candidate review-request record as received from the client.
// Validate trims and checks it before anything touches the network.
type Form struct {
	Name                  string `json:"name"`
	Email                 string `json:"email"`
	Company               string `json:"company,omitempty"`
	ProjectDescription    string `json:"project_description"`
	InterfaceType         string `json:"interface_type,omitempty"`
	TargetDataRate        string `json:"target_data_rate,omitempty"`
	NDARequired           bool   `json:"nda_required"`
	UrgencyLevel          string `json:"urgency_level"`
	PreferredResponseTime string `json:"preferred_response_time,omitempty"`
}

const (
	UrgencyStandard  = "Standard (3–5 business days)"
	UrgencyExpedited = "Expedited (1–2 business days)"
	UrgencyRush      = "Rush (24 hours)"
)

// Category names one of the three upload slots on a submission.
type Category string

const (
	CategorySchematic Category = "schematic"
	CategoryStackup   Category = "stackup"
	CategoryLayout    Category = "layout"
)

const MaxFileSize = 10 << 20

// Validate normalizes the form or reports the first rule violated, in
// field order. It is pure: no lookups, no side effects.
func Validate(form Form) (Form, error) {
	form.Name = strings.TrimSpace(form.Name)
	if form.Name == "" {
		return Form{}, errors.New("Name is required")
	}
	if utf8.RuneCountInString(form.Name) > 100 {
		return Form{}, errors.New("Name too long")
	}

	form.Email = strings.TrimSpace(form.Email)
	if _, err := mail.ParseAddress(form.Email); err != nil || form.Email == "" {
		return Form{}, errors.New("Invalid email address")
	}
	if utf8.RuneCountInString(form.Email) > 255 {
		return Form{}, errors.New("Email too long")
	}

	form.Company = strings.TrimSpace(form.Company)
	if utf8.RuneCountInString(form.Company) > 200 {
		return Form{}, errors.New("Company too long")
	}

	form.ProjectDescription = strings.TrimSpace(form.ProjectDescription)
	if utf8.RuneCountInString(form.ProjectDescription) < 10 {
		return Form{}, errors.New("Project description must be at least 10 characters")
	}
	if utf8.RuneCountInString(form.ProjectDescription) > 5000 {
		return Form{}, errors.New("Project description too long")
	}

	switch form.UrgencyLevel {
	case UrgencyStandard, UrgencyExpedited, UrgencyRush:
	default:
		return Form{}, errors.New("Invalid urgency level")
	}

	return form, nil
}

// ParseCategory maps a form field name to an upload slot.
func ParseCategory(value string) (Category, error) {
	switch Category(value) {
	case CategorySchematic, CategoryStackup, CategoryLayout:
		return Category(value), nil
	default:
		return "", fmt.Errorf("unknown file category %q", value)
	}
}

var allowedFileTypes = map[string]bool{
	"application/pdf": true,
	"image/png":       true,
	"image/jpeg":      true,
}

// AcceptFile checks a candidate upload by declared size and content type.
// It never inspects file bytes, so a mislabeled file still passes.
func AcceptFile(size int64, contentType string) error {
	if size > MaxFileSize {
		return errors.New("File exceeds the 10MB limit")
	}
	if mediaType, _, ok := strings.Cut(contentType, ";"); ok {
		contentType = mediaType
	}
	if !allowedFileTypes[strings.TrimSpace(contentType)] {
		return errors.New("File must be a PDF, PNG, or JPEG")
	}
	return nil
}

// ObjectName builds the storage key for an upload. The extension comes
// from the client file name, so a re-upload in the same slot with the
// same extension overwrites the previous object.
func ObjectName(submissionID string, category Category, filename string) string {
	ext := strings.TrimPrefix(path.Ext(filename), ".")
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("%s/%s.%s", submissionID, category, strings.ToLower(ext))
}
