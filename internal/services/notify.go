package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"geekshub-backend-go/internal/models"
)

// Notifier tells an uploader what happened to their request.
type Notifier interface {
	NotifyDecision(ctx context.Context, user models.User, req models.FileRequest, action models.AuditAction) error
}

var (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

type SendgridNotifier struct {
	key        string
	from       *sgmail.Email
	subjPrefix string
}

func NewSendgridNotifier(key, fromEmail string) *SendgridNotifier {
	return &SendgridNotifier{
		key:        key,
		from:       sgmail.NewEmail("GeeksHub", fromEmail),
		subjPrefix: "[GeeksHub] ",
	}
}

func (n *SendgridNotifier) NotifyDecision(_ context.Context, user models.User, req models.FileRequest, action models.AuditAction) error {
	subject, body, ok := decisionMessage(req, action)
	if !ok || user.Email == "" {
		return nil
	}
	p := sgmail.NewPersonalization()
	p.Subject = n.subjPrefix + subject
	p.AddTos(sgmail.NewEmail(user.DisplayName, user.Email))

	m := sgmail.NewV3Mail()
	m.SetFrom(n.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", body))

	request := sendgrid.GetRequest(n.key, sendgridEndpoint, sendgridHost)
	request.Method = http.MethodPost
	request.Body = sgmail.GetRequestBody(m)
	res, err := sendgrid.API(request)
	if err != nil {
		return WrapError(err, "sendgrid request")
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid returned status %d", res.StatusCode)
	}
	return nil
}

// LogNotifier is used when no mail provider is configured.
type LogNotifier struct{}

func (LogNotifier) NotifyDecision(_ context.Context, user models.User, req models.FileRequest, action models.AuditAction) error {
	if _, _, ok := decisionMessage(req, action); ok {
		slog.Info("uploader notification", "user", user.ID, "request", req.ID, "action", string(action))
	}
	return nil
}

// decisionMessage renders the mail for actions the uploader cares about.
func decisionMessage(req models.FileRequest, action models.AuditAction) (string, string, bool) {
	switch action {
	case models.ActionApprove, models.ActionBulkApprove:
		points := 0
		if req.PointsAwarded != nil {
			points = *req.PointsAwarded
		}
		return "Your upload was approved",
			fmt.Sprintf("Good news! %q for %s was approved and you earned %d points.", req.Title, req.CourseID, points),
			true
	case models.ActionReject, models.ActionBulkReject:
		body := fmt.Sprintf("%q for %s was not accepted.", req.Title, req.CourseID)
		if req.RejectionReason != nil {
			body += fmt.Sprintf(" Reason: %s.", *req.RejectionReason)
		}
		if req.RejectionNote != nil && *req.RejectionNote != "" {
			body += " Note from the moderator: " + *req.RejectionNote
		}
		return "Your upload was reviewed", body, true
	default:
		return "", "", false
	}
}
