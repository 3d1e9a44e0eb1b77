// Package export renders submission reports as PDF via headless Chrome.
package export

import (
	"errors"
	"time"
)

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

// SubmissionInfo holds the submission fields rendered into the report.
type SubmissionInfo struct {
	ID                    string
	Name                  string
	Email                 string
	Company               string
	ProjectDescription    string
	InterfaceType         string
	TargetDataRate        string
	NDARequired           bool
	UrgencyLevel          string
	PreferredResponseTime string
	SchematicURL          string
	StackupURL            string
	LayoutURL             string
	CreatedAt             time.Time
}

// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
var ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
