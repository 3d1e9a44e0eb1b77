package export

import (
	"context"
	"fmt"
)

// DataStore defines the interface for data access
type DataStore interface {
	GetSubmissionInfo(ctx context.Context, submissionID string) (SubmissionInfo, error)
}

// Service provides submission report export
type Service struct {
	store DataStore
}

// NewService creates a new export service
func NewService(store DataStore) *Service {
	return &Service{store: store}
}

// Export renders the submission report and converts it to PDF.
func (s *Service) Export(ctx context.Context, submissionID string) (*Result, error) {
	info, err := s.store.GetSubmissionInfo(ctx, submissionID)
	if err != nil {
		return nil, fmt.Errorf("get submission: %w", err)
	}

	html, err := RenderReportHTML(info)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	return exportPDF(html, "sipi-review-"+info.ID)
}
