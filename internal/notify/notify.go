// Package notify delivers operator alerts when a run dies outside the
// per-thread error handling. Only fatal failures alert; per-email skips
// and per-thread errors are absorbed by the pipeline.
package notify

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/sirupsen/logrus"
	"google.golang.org/api/gmail/v1"
)

type Notifier interface {
	Alert(ctx context.Context, subject, body string) error
}

// GmailNotifier sends the alert from the tracked mailbox to the operator
// address. The subject carries the "Script Failed" phrase that the
// candidate search excludes, so alerts never feed back into the pipeline.
type GmailNotifier struct {
	svc *gmail.Service
	to  string
	log *logrus.Logger
}

func NewGmailNotifier(svc *gmail.Service, to string, log *logrus.Logger) *GmailNotifier {
	return &GmailNotifier{svc: svc, to: to, log: log}
}

func (n *GmailNotifier) Alert(ctx context.Context, subject, body string) error {
	headers := "To: " + n.to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n"
	raw := base64.URLEncoding.EncodeToString([]byte(headers + body))

	_, err := n.svc.Users.Messages.Send("me", &gmail.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("send alert mail: %w", err)
	}
	n.log.WithField("to", n.to).Info("[notify] operator alert sent")
	return nil
}

// LogNotifier is the fallback when no mail transport is configured: the
// alert lands in the engine log instead of a mailbox.
type LogNotifier struct {
	log *logrus.Logger
}

func NewLogNotifier(log *logrus.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Alert(_ context.Context, subject, body string) error {
	n.log.WithField("subject", subject).Error("[notify] " + body)
	return nil
}

// FailureSubject is the alert subject for a dead run. The leading phrase
// must match the exclusion in the mailbox search query.
func FailureSubject(task string) string {
	return fmt.Sprintf("Script Failed: %s", task)
}
