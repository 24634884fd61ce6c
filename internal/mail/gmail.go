package mail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// GmailSource reads candidate threads through the Gmail REST API. The
// consumed mark is a user label, created on first use.
type GmailSource struct {
	svc     *gmail.Service
	query   string
	label   string
	labelID string
	log     *logrus.Logger
}

func NewGmailSource(ctx context.Context, hc *http.Client, labelName, query string, log *logrus.Logger) (*GmailSource, error) {
	svc, err := gmail.NewService(ctx, option.WithHTTPClient(hc))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}

	s := &GmailSource{svc: svc, query: query, label: labelName, log: log}
	if err := s.ensureLabel(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *GmailSource) ensureLabel(ctx context.Context) error {
	resp, err := s.svc.Users.Labels.List("me").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("list labels: %w", err)
	}
	for _, l := range resp.Labels {
		if l.Name == s.label {
			s.labelID = l.Id
			return nil
		}
	}

	created, err := s.svc.Users.Labels.Create("me", &gmail.Label{
		Name:                  s.label,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("create label %q: %w", s.label, err)
	}
	s.log.Infof("[mail] created label %s", s.label)
	s.labelID = created.Id
	return nil
}

func (s *GmailSource) Search(ctx context.Context, max int) ([]string, error) {
	if max <= 0 {
		max = 50
	}
	resp, err := s.svc.Users.Threads.List("me").Q(s.query).MaxResults(int64(max)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("gmail search: %w", err)
	}

	ids := make([]string, 0, len(resp.Threads))
	for _, t := range resp.Threads {
		ids = append(ids, t.Id)
	}
	return ids, nil
}

func (s *GmailSource) FirstMessage(ctx context.Context, threadID string) (Message, error) {
	t, err := s.svc.Users.Threads.Get("me", threadID).Format("full").Context(ctx).Do()
	if err != nil {
		return Message{}, fmt.Errorf("get thread %s: %w", threadID, err)
	}
	if len(t.Messages) == 0 {
		return Message{}, fmt.Errorf("thread %s has no messages", threadID)
	}

	msg := t.Messages[0]
	out := Message{Date: time.UnixMilli(msg.InternalDate)}

	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			switch h.Name {
			case "Subject":
				out.Subject = h.Value
			case "Date":
				if tm, err := parseMailDate(h.Value); err == nil {
					out.Date = tm
				}
			}
		}

		plain, html := collectParts(msg.Payload)
		if plain != "" {
			out.Body = plain
		} else if html != "" {
			out.Body = HTMLToText(html)
		}
	}

	return out, nil
}

func (s *GmailSource) MarkTracked(ctx context.Context, threadID string) error {
	_, err := s.svc.Users.Threads.Modify("me", threadID, &gmail.ModifyThreadRequest{
		AddLabelIds: []string{s.labelID},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("label thread %s: %w", threadID, err)
	}
	return nil
}

func (s *GmailSource) ResetTracked(ctx context.Context) (int, error) {
	count := 0
	pageToken := ""
	for {
		call := s.svc.Users.Threads.List("me").Q("label:" + s.label).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return count, fmt.Errorf("list labeled threads: %w", err)
		}

		for _, t := range resp.Threads {
			_, err := s.svc.Users.Threads.Modify("me", t.Id, &gmail.ModifyThreadRequest{
				RemoveLabelIds: []string{s.labelID},
			}).Context(ctx).Do()
			if err != nil {
				return count, fmt.Errorf("unlabel thread %s: %w", t.Id, err)
			}
			count++
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			return count, nil
		}
	}
}

// Profile returns the authorized account address, the operator mailbox
// alerts go to, and what the credential self-test prints.
func (s *GmailSource) Profile(ctx context.Context) (string, error) {
	p, err := s.svc.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("get profile: %w", err)
	}
	return p.EmailAddress, nil
}

// collectParts walks the MIME tree and returns the longest text/plain and
// text/html payloads found.
func collectParts(p *gmail.MessagePart) (plain, html string) {
	if p == nil {
		return "", ""
	}

	if p.Body != nil && p.Body.Data != "" {
		if data, err := decodeB64(p.Body.Data); err == nil {
			switch {
			case strings.HasPrefix(p.MimeType, "text/plain"):
				if len(data) > len(plain) {
					plain = string(data)
				}
			case strings.HasPrefix(p.MimeType, "text/html"):
				if len(data) > len(html) {
					html = string(data)
				}
			}
		}
	}

	for _, child := range p.Parts {
		pl, ht := collectParts(child)
		if len(pl) > len(plain) {
			plain = pl
		}
		if len(ht) > len(html) {
			html = ht
		}
	}
	return plain, html
}

// decodeB64 handles both padded and unpadded base64url, which the API is
// inconsistent about.
func decodeB64(s string) ([]byte, error) {
	if b, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	if b, err := base64.URLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return nil, errors.New("not base64url")
}

func parseMailDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, "Mon, 2 Jan 2006 15:04:05 -0700"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
