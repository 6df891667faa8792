// Package notify emails the operator when a traversal pauses on a
// verification challenge. Long citation crawls run unattended; without a
// nudge the pause just sits there until someone happens to look.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"pubfisher/lib/fisher"
	"pubfisher/lib/telemetry"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("pubfisher.lib.notify")

type SmtpConfig struct {
	Server       string `json:"server"`
	Port         int    `json:"port"`
	EmailAddress string `json:"email_address"`
	Password     string `json:"password"`
}

type Notifier struct {
	config SmtpConfig
	to     string
}

func NewNotifier(config SmtpConfig, to string) *Notifier {
	return &Notifier{config: config, to: to}
}

// ChallengePaused tells the operator that the query described by desc hit a
// challenge and which resume token the paused traversal is waiting under.
func (n *Notifier) ChallengePaused(ctx context.Context, desc fisher.Descriptor, chal *fisher.Challenge) error {
	_, span := tracer.Start(ctx, "ChallengePaused")
	defer span.End()

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("pubfisher <%s>", n.config.EmailAddress)
	mail.To = []string{n.to}
	mail.Subject = fmt.Sprintf("pubfisher paused: %s query needs verification", desc.Kind)

	body := fmt.Sprintf(`The %s query %q stopped on a verification challenge.

Challenge page: %s
Resume token:   %s

Solve the challenge (pubfisher resume, or open the page in a browser with
the saved session) and the traversal will pick up from the same page.`,
		desc.Kind, desc.Terms, chal.PageURL, chal.Token)
	mail.Text = []byte(body)
	if len(chal.Artifact) > 0 {
		if _, err := mail.Attach(
			strings.NewReader(string(chal.Artifact)), "challenge.html", "text/html",
		); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to attach challenge page")
			return err
		}
	}

	addr := fmt.Sprintf("%s:%d", n.config.Server, n.config.Port)
	err := mail.Send(
		addr,
		smtp.PlainAuth("", n.config.EmailAddress, n.config.Password, n.config.Server),
	)
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send notification")
		return err
	}
	return nil
}
