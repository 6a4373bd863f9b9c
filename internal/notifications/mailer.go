package notifications

import (
	"context"
	"fmt"
	"html"
	"net/http"

	"podshare/internal/featureflags"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type sendClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// Mailer emails the recipient of each event through SendGrid, subject to
// the email_notifications flag.
type Mailer struct {
	client sendClient
	from   *mail.Email
	flags  *featureflags.Flags
}

// NewMailer creates a SendGrid-backed mailer.
func NewMailer(apiKey, fromEmail, fromName string, flags *featureflags.Flags) *Mailer {
	return &Mailer{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail(fromName, fromEmail),
		flags:  flags,
	}
}

func (m *Mailer) Name() string { return "sendgrid" }

func (m *Mailer) Deliver(ctx context.Context, e Event) error {
	to := e.Recipient()
	if to.Email == "" || !m.flags.Enabled(featureflags.EmailNotifications, to.UserID) {
		return nil
	}

	subject, text := render(e)
	htmlBody := "<p>" + html.EscapeString(text) + "</p>"
	msg := mail.NewSingleEmail(m.from, subject, mail.NewEmail(to.Name, to.Email), text, htmlBody)

	resp, err := m.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("sendgrid status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: sendgrid status %d: %s", ErrPermanent, resp.StatusCode, resp.Body)
	}
	return nil
}

func render(e Event) (subject, body string) {
	switch e.Type {
	case EventJoinRequestCreated:
		return fmt.Sprintf("New request to join %s", e.PodTitle),
			fmt.Sprintf("%s (%s) asked to join %s. Review it from your leader dashboard.", e.ApplicantName, e.ApplicantEmail, e.PodTitle)
	case EventJoinRequestAccepted:
		return fmt.Sprintf("You're in: %s", e.PodTitle),
			fmt.Sprintf("%s accepted your request to join %s. You can reach them at %s.", e.LeaderName, e.PodTitle, e.LeaderEmail)
	case EventJoinRequestRejected:
		return fmt.Sprintf("Update on your request for %s", e.PodTitle),
			fmt.Sprintf("Your request to join %s was not accepted this time.", e.PodTitle)
	case EventMemberRemoved:
		if e.RemovedByID == e.ApplicantID {
			return fmt.Sprintf("You left %s", e.PodTitle),
				fmt.Sprintf("Your spot in %s has been released.", e.PodTitle)
		}
		return fmt.Sprintf("You were removed from %s", e.PodTitle),
			fmt.Sprintf("The leader of %s removed you from the pod.", e.PodTitle)
	}
	return string(e.Type), e.PodTitle
}
