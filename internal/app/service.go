package app

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"sipiportal/api/internal/ai"
	"sipiportal/api/internal/auth"
	"sipiportal/api/internal/authpw"
	"sipiportal/api/internal/config"
	"sipiportal/api/internal/email"
	"sipiportal/api/internal/export"
	"sipiportal/api/internal/intake"
	"sipiportal/api/internal/rbac"
	"sipiportal/api/internal/search"
	"sipiportal/api/internal/store"
	"sipiportal/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	JTI          string
	ExpiresAt    time.Time
}

// Upload is one file taken from the intake form.
type Upload struct {
	Category    intake.Category
	Filename    string
	Size        int64
	ContentType string
	Reader      io.Reader
}

// NotifyInput mirrors the notification endpoint body. The caller sends
// the submission fields back rather than having the server re-read them.
type NotifyInput struct {
	Name               string `json:"name"`
	Email              string `json:"email"`
	Company            string `json:"company,omitempty"`
	UrgencyLevel       string `json:"urgency_level"`
	InterfaceType      string `json:"interface_type,omitempty"`
	TargetDataRate     string `json:"target_data_rate,omitempty"`
	ProjectDescription string `json:"project_description"`
	SubmissionID       string `json:"submission_id"`
}

type dataStore interface {
	CreateUser(ctx context.Context, user store.User) error
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByID(ctx context.Context, userID string) (store.User, error)
	AssignRole(ctx context.Context, userID, role string) error
	ListUserRoles(ctx context.Context, userID string) ([]string, error)
	RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error
	IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error)
	CreateSubmission(ctx context.Context, item store.Submission) error
	GetSubmission(ctx context.Context, submissionID string) (store.Submission, error)
	ListSubmissions(ctx context.Context) ([]store.Submission, error)
	UpdateSubmissionFileURLs(ctx context.Context, submissionID string, urls store.FileURLs) error
	SearchSubmissions(ctx context.Context, query string, limit int) ([]store.Submission, error)
	Ping(ctx context.Context) error
}

type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type objectStore interface {
	Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (string, error)
}

type notifier interface {
	IsConfigured() bool
	SendOperatorNotification(to string, data email.SubmissionData) error
	SendSubmitterAck(data email.SubmissionData) error
}

type searcher interface {
	Search(q search.Query) search.Response
	IndexSubmission(record search.SubmissionRecord)
}

type exporter interface {
	Export(ctx context.Context, submissionID string) (*export.Result, error)
}

type chatClient interface {
	IsConfigured() bool
	Complete(ctx context.Context, messages []ai.Message) (string, error)
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	objects  objectStore
	email    notifier
	search   searcher
	exporter exporter
	chat     chatClient
	authpw   *authpw.Service
}

func New(
	cfg config.Config,
	dataStore dataStore,
	sessions sessionStore,
	objects objectStore,
	emailSvc notifier,
	searchSvc searcher,
	exportSvc exporter,
	chatClient chatClient,
) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: sessions,
		objects:  objects,
		email:    emailSvc,
		search:   searchSvc,
		exporter: exportSvc,
		chat:     chatClient,
		authpw:   authpw.NewService(dataStore),
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// SignUp registers the account and opens a session for it.
func (s *Service) SignUp(ctx context.Context, req authpw.SignUpRequest) (Session, error) {
	user, err := s.authpw.SignUp(ctx, req)
	if err != nil {
		if errors.Is(err, authpw.ErrEmailTaken) {
			return Session{}, domainError(http.StatusConflict, "EMAIL_EXISTS", "Email already registered", nil)
		}
		return Session{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	}
	return s.issueSession(ctx, user)
}

func (s *Service) SignIn(ctx context.Context, req authpw.SignInRequest) (Session, error) {
	user, err := s.authpw.SignIn(ctx, req)
	if err != nil {
		return Session{}, domainError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	found, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	user, err := s.store.GetUserByID(ctx, found.ID)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.TokenSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.Name,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.Name,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.TokenSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.Name,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

// Roles reads the role table for the session's user. Role labels live
// only in the database, never inside tokens.
func (s *Service) Roles(ctx context.Context, session Session) ([]string, error) {
	return s.store.ListUserRoles(ctx, session.UserID)
}

// IsAdmin checks the role table for the session's user. A lookup
// failure is a server error, never a silent denial.
func (s *Service) IsAdmin(ctx context.Context, session Session) (bool, error) {
	labels, err := s.Roles(ctx, session)
	if err != nil {
		return false, domainError(http.StatusInternalServerError, "SERVER_ERROR", "Role lookup failed", nil)
	}
	roles := make([]rbac.Role, 0, len(labels))
	for _, label := range labels {
		roles = append(roles, rbac.Role(label))
	}
	return rbac.IsAdmin(roles), nil
}

// CreateIntake runs the submission flow: validate, insert the row,
// upload files, back-fill URLs, then attempt notification. The notify
// phase is best-effort; its failure never fails the request.
func (s *Service) CreateIntake(ctx context.Context, session Session, form intake.Form, uploads []Upload) (store.Submission, error) {
	form, err := intake.Validate(form)
	if err != nil {
		return store.Submission{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	}

	for _, upload := range uploads {
		if err := intake.AcceptFile(upload.Size, upload.ContentType); err != nil {
			return store.Submission{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
		}
	}

	submission := store.Submission{
		ID:                    util.NewID("sub"),
		UserID:                &session.UserID,
		Name:                  form.Name,
		Email:                 form.Email,
		Company:               optional(form.Company),
		ProjectDescription:    form.ProjectDescription,
		InterfaceType:         optional(form.InterfaceType),
		TargetDataRate:        optional(form.TargetDataRate),
		NDARequired:           form.NDARequired,
		UrgencyLevel:          form.UrgencyLevel,
		PreferredResponseTime: optional(form.PreferredResponseTime),
		CreatedAt:             time.Now(),
	}

	if err := s.store.CreateSubmission(ctx, submission); err != nil {
		return store.Submission{}, domainError(http.StatusInternalServerError, "SERVER_ERROR", "Failed to submit form. Please try again.", nil)
	}

	var urls store.FileURLs
	var uploadErr error
	for _, upload := range uploads {
		objectName := intake.ObjectName(submission.ID, upload.Category, upload.Filename)
		url, err := s.objects.Upload(ctx, objectName, upload.Reader, upload.Size, upload.ContentType)
		if err != nil {
			uploadErr = err
			break
		}
		switch upload.Category {
		case intake.CategorySchematic:
			urls.Schematic = &url
		case intake.CategoryStackup:
			urls.Stackup = &url
		case intake.CategoryLayout:
			urls.Layout = &url
		}
	}

	if !urls.Empty() {
		if err := s.store.UpdateSubmissionFileURLs(ctx, submission.ID, urls); err != nil && uploadErr == nil {
			uploadErr = err
		}
		submission.SchematicURL = urls.Schematic
		submission.StackupURL = urls.Stackup
		submission.LayoutURL = urls.Layout
	}

	if uploadErr != nil {
		// The row and any finished uploads stay in place.
		log.Printf("intake: submission %s upload phase failed: %v", submission.ID, uploadErr)
		return store.Submission{}, domainError(http.StatusInternalServerError, "SERVER_ERROR", "Failed to submit form. Please try again.", nil)
	}

	if s.search != nil {
		s.search.IndexSubmission(submissionRecord(submission))
	}

	if err := s.notifySubmission(submission); err != nil {
		log.Printf("intake: submission %s notification failed: %v", submission.ID, err)
	}

	return submission, nil
}

func (s *Service) notifySubmission(submission store.Submission) error {
	if s.email == nil || !s.email.IsConfigured() {
		return errors.New("email not configured")
	}
	data := email.SubmissionData{
		Name:               submission.Name,
		Email:              submission.Email,
		Company:            deref(submission.Company),
		UrgencyLevel:       submission.UrgencyLevel,
		InterfaceType:      deref(submission.InterfaceType),
		TargetDataRate:     deref(submission.TargetDataRate),
		ProjectDescription: submission.ProjectDescription,
		SubmissionID:       submission.ID,
	}
	if err := s.email.SendOperatorNotification(s.cfg.OperatorEmail, data); err != nil {
		return err
	}
	return s.email.SendSubmitterAck(data)
}

// Notify re-sends the two notification emails for a submission the
// caller owns. Send failures surface to the caller here, unlike the
// intake-time attempt.
func (s *Service) Notify(ctx context.Context, session Session, input NotifyInput) error {
	submission, err := s.store.GetSubmission(ctx, input.SubmissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
		}
		return err
	}
	if submission.UserID == nil || *submission.UserID != session.UserID {
		return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}

	if s.email == nil || !s.email.IsConfigured() {
		return domainError(http.StatusInternalServerError, "SERVER_ERROR", "email not configured", nil)
	}

	data := email.SubmissionData{
		Name:               input.Name,
		Email:              input.Email,
		Company:            input.Company,
		UrgencyLevel:       input.UrgencyLevel,
		InterfaceType:      input.InterfaceType,
		TargetDataRate:     input.TargetDataRate,
		ProjectDescription: input.ProjectDescription,
		SubmissionID:       input.SubmissionID,
	}
	if err := s.email.SendOperatorNotification(s.cfg.OperatorEmail, data); err != nil {
		return domainError(http.StatusInternalServerError, "SERVER_ERROR", err.Error(), nil)
	}
	if err := s.email.SendSubmitterAck(data); err != nil {
		return domainError(http.StatusInternalServerError, "SERVER_ERROR", err.Error(), nil)
	}
	return nil
}

// GetSubmission returns a submission to its owner or to an admin.
func (s *Service) GetSubmission(ctx context.Context, session Session, submissionID string) (store.Submission, error) {
	submission, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return store.Submission{}, err
	}
	if submission.UserID != nil && *submission.UserID == session.UserID {
		return submission, nil
	}
	isAdmin, err := s.IsAdmin(ctx, session)
	if err != nil {
		return store.Submission{}, err
	}
	if !isAdmin {
		return store.Submission{}, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	return submission, nil
}

func (s *Service) requireAdmin(ctx context.Context, session Session) error {
	isAdmin, err := s.IsAdmin(ctx, session)
	if err != nil {
		return err
	}
	if !isAdmin {
		return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	return nil
}

func (s *Service) AdminListSubmissions(ctx context.Context, session Session) ([]store.Submission, error) {
	if err := s.requireAdmin(ctx, session); err != nil {
		return nil, err
	}
	return s.store.ListSubmissions(ctx)
}

func (s *Service) AdminSearchSubmissions(ctx context.Context, session Session, q search.Query) (search.Response, error) {
	if err := s.requireAdmin(ctx, session); err != nil {
		return search.Response{}, err
	}
	if s.search != nil {
		return s.search.Search(q), nil
	}
	items, err := s.store.SearchSubmissions(ctx, q.Text, q.Limit)
	if err != nil {
		return search.Response{}, err
	}
	results := make([]search.Result, 0, len(items))
	for _, item := range items {
		results = append(results, search.Result{
			ID:           item.ID,
			Name:         item.Name,
			Email:        item.Email,
			Company:      deref(item.Company),
			UrgencyLevel: item.UrgencyLevel,
			Snippet:      item.ProjectDescription,
		})
	}
	return search.Response{Results: results, Total: len(results), Query: q.Text}, nil
}

func (s *Service) AdminExportSubmission(ctx context.Context, session Session, submissionID string) (*export.Result, error) {
	if err := s.requireAdmin(ctx, session); err != nil {
		return nil, err
	}
	if s.exporter == nil {
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export service not configured", nil)
	}
	return s.exporter.Export(ctx, submissionID)
}

// Chat relays the transcript to the AI backend. The transcript is
// never persisted.
func (s *Service) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	if s.chat == nil || !s.chat.IsConfigured() {
		return "", domainError(http.StatusServiceUnavailable, "CHAT_UNAVAILABLE", "Chat service not configured", nil)
	}
	reply, err := s.chat.Complete(ctx, messages)
	if err != nil {
		return "", domainError(http.StatusBadGateway, "UPSTREAM_ERROR", "AI service request failed", nil)
	}
	return reply, nil
}

func submissionRecord(submission store.Submission) search.SubmissionRecord {
	return search.SubmissionRecord{
		ID:                 submission.ID,
		Name:               submission.Name,
		Email:              submission.Email,
		Company:            deref(submission.Company),
		ProjectDescription: submission.ProjectDescription,
		InterfaceType:      deref(submission.InterfaceType),
		TargetDataRate:     deref(submission.TargetDataRate),
		UrgencyLevel:       submission.UrgencyLevel,
		CreatedAt:          submission.CreatedAt.Unix(),
	}
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

// SubmissionReportStore adapts the primary store to the export service.
type SubmissionReportStore struct {
	Store interface {
		GetSubmission(ctx context.Context, submissionID string) (store.Submission, error)
	}
}

func (s SubmissionReportStore) GetSubmissionInfo(ctx context.Context, submissionID string) (export.SubmissionInfo, error) {
	submission, err := s.Store.GetSubmission(ctx, submissionID)
	if err != nil {
		return export.SubmissionInfo{}, err
	}
	return export.SubmissionInfo{
		ID:                    submission.ID,
		Name:                  submission.Name,
		Email:                 submission.Email,
		Company:               deref(submission.Company),
		ProjectDescription:    submission.ProjectDescription,
		InterfaceType:         deref(submission.InterfaceType),
		TargetDataRate:        deref(submission.TargetDataRate),
		NDARequired:           submission.NDARequired,
		UrgencyLevel:          submission.UrgencyLevel,
		PreferredResponseTime: deref(submission.PreferredResponseTime),
		SchematicURL:          deref(submission.SchematicURL),
		StackupURL:            deref(submission.StackupURL),
		LayoutURL:             deref(submission.LayoutURL),
		CreatedAt:             submission.CreatedAt,
	}, nil
}
