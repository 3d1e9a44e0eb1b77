package store

import "time"

type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Submission is one review request. The three URL columns start out
// NULL and are back-filled at most once after uploads finish; a
// submission without files keeps them NULL forever.
type Submission struct {
	ID                    string
	UserID                *string
	Name                  string
	Email                 string
	Company               *string
	ProjectDescription    string
	InterfaceType         *string
	TargetDataRate        *string
	NDARequired           bool
	UrgencyLevel          string
	PreferredResponseTime *string
	SchematicURL          *string
	StackupURL            *string
	LayoutURL             *string
	CreatedAt             time.Time
}

// FileURLs carries the upload results for one submission. Nil fields
// leave the stored value untouched.
type FileURLs struct {
	Schematic *string
	Stackup   *string
	Layout    *string
}

func (f FileURLs) Empty() bool {
	return f.Schematic == nil && f.Stackup == nil && f.Layout == nil
}
