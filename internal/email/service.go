// Package email provides email sending capabilities via SMTP.
package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
)

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// Service provides email sending
type Service struct {
	config Config
	server string
	auth   smtp.Auth
}

// NewService creates a new email service
func NewService(config Config) *Service {
	auth := smtp.PlainAuth("", config.Username, config.Password, config.Host)

	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SendEmail sends a plain text email
func (s *Service) SendEmail(to []string, subject, body string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	msg := []byte(fmt.Sprintf(
		"To: %s\r\n"+
			"From: %s\r\n"+
			"Subject: %s\r\n"+
			"Content-Type: text/plain; charset=UTF-8\r\n"+
			"\r\n"+
			"%s",
		strings.Join(to, ", "),
		from,
		subject,
		body,
	))

	return smtp.SendMail(s.server, s.auth, s.config.From, to, msg)
}

// SendHTMLEmail sends an HTML email
func (s *Service) SendHTMLEmail(to []string, subject, htmlBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	boundary := "boundary-sipi"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "Please view this email in an HTML-capable email client.\r\n")
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", htmlBody)
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return smtp.SendMail(s.server, s.auth, s.config.From, to, msg.Bytes())
}

// SubmissionData holds the fields echoed into the notification emails.
type SubmissionData struct {
	Name               string
	Email              string
	Company            string
	UrgencyLevel       string
	InterfaceType      string
	TargetDataRate     string
	ProjectDescription string
	SubmissionID       string
}

// SendOperatorNotification sends the full submission summary to the
// operator inbox.
func (s *Service) SendOperatorNotification(to string, data SubmissionData) error {
	html, err := renderTemplate(operatorNotificationTemplate, data)
	if err != nil {
		return fmt.Errorf("render operator template: %w", err)
	}

	return s.SendHTMLEmail([]string{to}, "New SI/PI Review Submission", html)
}

// SendSubmitterAck sends the acknowledgment back to whoever submitted
// the review request.
func (s *Service) SendSubmitterAck(data SubmissionData) error {
	html, err := renderTemplate(submitterAckTemplate, data)
	if err != nil {
		return fmt.Errorf("render ack template: %w", err)
	}

	return s.SendHTMLEmail([]string{data.Email}, "Thanks for your SI/PI review request", html)
}

func renderTemplate(tmpl string, data interface{}) (string, error) {
	t := template.Must(template.New("email").Parse(tmpl))
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const operatorNotificationTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>New SI/PI Review Submission</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
    </style>
</head>
<body>
    <h2>New SI/PI Review Submission</h2>
    <p><strong>Name:</strong> {{.Name}}</p>
    <p><strong>Email:</strong> {{.Email}}</p>
    <p><strong>Company:</strong> {{if .Company}}{{.Company}}{{else}}N/A{{end}}</p>
    <p><strong>Urgency:</strong> {{.UrgencyLevel}}</p>
    <p><strong>Interface Type:</strong> {{if .InterfaceType}}{{.InterfaceType}}{{else}}N/A{{end}}</p>
    <p><strong>Target Data Rate:</strong> {{if .TargetDataRate}}{{.TargetDataRate}}{{else}}N/A{{end}}</p>
    <p><strong>Project Description:</strong></p>
    <p>{{.ProjectDescription}}</p>
    <p><strong>Submission ID:</strong> {{.SubmissionID}}</p>
    <p>Files are stored in the review-files bucket under submission ID: {{.SubmissionID}}</p>
</body>
</html>`

const submitterAckTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Thanks for your SI/PI review request</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
    </style>
</head>
<body>
    <h2>Thank you for your SI/PI review submission!</h2>
    <p>Hi {{.Name}},</p>
    <p>I've received your design submission and will review the files carefully.</p>
    <p>You can expect to hear back from me with a preliminary SI/PI risk breakdown and next-step options.</p>
    <p>Based on your selected urgency level ({{.UrgencyLevel}}), I'll prioritize accordingly.</p>
    <br>
    <p>Best regards,</p>
    <p>Faezeh</p>
</body>
</html>`
