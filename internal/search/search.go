package search

// Result is a single search hit returned to the admin dashboard.
type Result struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Company      string `json:"company,omitempty"`
	UrgencyLevel string `json:"urgencyLevel"`
	Snippet      string `json:"snippet"`
}

// Query describes a search request.
type Query struct {
	Text   string
	Limit  int
	Offset int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search over submissions.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// SubmissionRecord is the data we index for a submission.
type SubmissionRecord struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Email              string `json:"email"`
	Company            string `json:"company"`
	ProjectDescription string `json:"projectDescription"`
	InterfaceType      string `json:"interfaceType"`
	TargetDataRate     string `json:"targetDataRate"`
	UrgencyLevel       string `json:"urgencyLevel"`
	CreatedAt          int64  `json:"createdAt"`
}
