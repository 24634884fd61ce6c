package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/sirupsen/logrus"
)

// trackedFlag is the IMAP stand-in for the Gmail label: a custom keyword
// on the message. Searches exclude it; MarkTracked sets it.
const trackedFlag = imap.Flag("JobTracked")

// IMAPSource serves non-Gmail mailboxes. The message UID plays the part
// of the thread identifier, which keeps the permalink dedup pattern
// working (UIDs are plain digits).
type IMAPSource struct {
	addr          string
	username      string
	password      string
	mailbox       string
	subjectAny    []string
	newerThanDays int

	c   *imapclient.Client
	log *logrus.Logger
}

type IMAPOptions struct {
	Host          string
	Port          int
	Username      string
	Password      string
	Mailbox       string
	SubjectAny    []string
	NewerThanDays int
}

func NewIMAPSource(opts IMAPOptions, log *logrus.Logger) (*IMAPSource, error) {
	if opts.Host == "" {
		return nil, errors.New("imap host is required")
	}
	if opts.Username == "" || opts.Password == "" {
		return nil, errors.New("imap username/password is required")
	}
	port := opts.Port
	if port == 0 {
		port = 993
	}
	mailbox := opts.Mailbox
	if mailbox == "" {
		mailbox = "INBOX"
	}
	return &IMAPSource{
		addr:          fmt.Sprintf("%s:%d", opts.Host, port),
		username:      opts.Username,
		password:      opts.Password,
		mailbox:       mailbox,
		subjectAny:    opts.SubjectAny,
		newerThanDays: opts.NewerThanDays,
		log:           log,
	}, nil
}

// Connect dials over TLS, logs in, and selects the mailbox. Callers must
// Close when the run finishes.
func (s *IMAPSource) Connect(ctx context.Context) error {
	c, err := imapclient.DialTLS(s.addr, &imapclient.Options{
		TLSConfig: &tls.Config{MinVersion: tls.VersionTLS12},
	})
	if err != nil {
		return fmt.Errorf("imap dial tls: %w", err)
	}

	// Best-effort close on context cancel.
	go func() {
		<-ctx.Done()
		_ = c.Close()
	}()

	if err := c.Login(s.username, s.password).Wait(); err != nil {
		_ = c.Close()
		return fmt.Errorf("imap login: %w", err)
	}

	if _, err := c.Select(s.mailbox, &imap.SelectOptions{ReadOnly: false}).Wait(); err != nil {
		_ = c.Close()
		return fmt.Errorf("imap select %q: %w", s.mailbox, err)
	}

	s.c = c
	return nil
}

func (s *IMAPSource) Close() {
	if s.c == nil {
		return
	}
	if err := s.c.Logout().Wait(); err != nil {
		s.log.Warnf("[imap] logout: %v", err)
	}
	_ = s.c.Close()
	s.c = nil
}

func (s *IMAPSource) Search(ctx context.Context, max int) ([]string, error) {
	if s.c == nil {
		return nil, errors.New("imap client is not connected")
	}
	if max <= 0 {
		max = 50
	}

	criteria := &imap.SearchCriteria{
		NotFlag: []imap.Flag{trackedFlag},
	}
	if s.newerThanDays > 0 {
		criteria.Since = time.Now().AddDate(0, 0, -s.newerThanDays)
	}

	searchData, err := s.c.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("imap uid search: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	// Newest first.
	for i, j := 0, len(uids)-1; i < j; i, j = i+1, j-1 {
		uids[i], uids[j] = uids[j], uids[i]
	}

	// Subject heuristics run client-side: fetch envelopes only and keep
	// matching messages until the batch bound is met.
	uidSet := imap.UIDSetNum(uids...)
	fetchCmd := s.c.Fetch(uidSet, &imap.FetchOptions{UID: true, Envelope: true})
	defer func() { _ = fetchCmd.Close() }()

	var ids []string
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		msgData := fetchCmd.Next()
		if msgData == nil {
			break
		}
		buf, err := msgData.Collect()
		if err != nil {
			return nil, fmt.Errorf("imap fetch collect: %w", err)
		}

		subject := ""
		if buf.Envelope != nil {
			subject = decodeRFC2047(buf.Envelope.Subject)
		}
		if len(s.subjectAny) > 0 && !containsAnyCI(subject, s.subjectAny) {
			continue
		}

		ids = append(ids, strconv.FormatUint(uint64(buf.UID), 10))
		if len(ids) >= max {
			break
		}
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("imap fetch close: %w", err)
	}
	return ids, nil
}

func (s *IMAPSource) FirstMessage(ctx context.Context, threadID string) (Message, error) {
	if s.c == nil {
		return Message{}, errors.New("imap client is not connected")
	}
	uid, err := parseUID(threadID)
	if err != nil {
		return Message{}, err
	}

	// BODY.PEEK[] so fetching never sets \Seen.
	bodyAll := &imap.FetchItemBodySection{
		Specifier: imap.PartSpecifierNone,
		Peek:      true,
	}
	fetchCmd := s.c.Fetch(imap.UIDSetNum(uid), &imap.FetchOptions{
		UID:          true,
		Envelope:     true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{bodyAll},
	})
	defer func() { _ = fetchCmd.Close() }()

	msgData := fetchCmd.Next()
	if msgData == nil {
		return Message{}, fmt.Errorf("imap uid %d not found", uid)
	}
	buf, err := msgData.Collect()
	if err != nil {
		return Message{}, fmt.Errorf("imap fetch collect: %w", err)
	}

	var out Message
	if buf.Envelope != nil {
		out.Subject = decodeRFC2047(buf.Envelope.Subject)
		out.Date = buf.Envelope.Date
	}
	if out.Date.IsZero() {
		out.Date = buf.InternalDate
	}

	if raw := buf.FindBodySection(bodyAll); len(raw) > 0 {
		plain, html := extractMIMETextBody(raw)
		if plain != "" {
			out.Body = plain
		} else if html != "" {
			out.Body = HTMLToText(html)
		}
	}

	if err := fetchCmd.Close(); err != nil {
		return Message{}, fmt.Errorf("imap fetch close: %w", err)
	}
	return out, nil
}

func (s *IMAPSource) MarkTracked(ctx context.Context, threadID string) error {
	uid, err := parseUID(threadID)
	if err != nil {
		return err
	}
	return s.storeFlag(imap.UIDSetNum(uid), imap.StoreFlagsAdd)
}

func (s *IMAPSource) ResetTracked(ctx context.Context) (int, error) {
	if s.c == nil {
		return 0, errors.New("imap client is not connected")
	}

	searchData, err := s.c.UIDSearch(&imap.SearchCriteria{
		Flag: []imap.Flag{trackedFlag},
	}, nil).Wait()
	if err != nil {
		return 0, fmt.Errorf("imap uid search tracked: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return 0, nil
	}
	if err := s.storeFlag(imap.UIDSetNum(uids...), imap.StoreFlagsDel); err != nil {
		return 0, err
	}
	return len(uids), nil
}

// storeFlag adds or removes the tracked keyword on a UID set. In go-imap
// v2 the store command has no Wait(); Close() reports the final status.
func (s *IMAPSource) storeFlag(set imap.UIDSet, op imap.StoreFlagsOp) error {
	if s.c == nil {
		return errors.New("imap client is not connected")
	}
	cmd := s.c.Store(set, &imap.StoreFlags{
		Op:     op,
		Silent: true,
		Flags:  []imap.Flag{trackedFlag},
	}, nil)
	if err := cmd.Close(); err != nil {
		return fmt.Errorf("imap store flag: %w", err)
	}
	return nil
}

func parseUID(threadID string) (imap.UID, error) {
	n, err := strconv.ParseUint(threadID, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("bad imap thread id %q: %w", threadID, err)
	}
	return imap.UID(n), nil
}

// ---- RFC822 body extraction ----

func extractMIMETextBody(raw []byte) (plain, html string) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		// Treat unparseable messages as plaintext best-effort.
		return string(raw), ""
	}
	body, _ := io.ReadAll(io.LimitReader(msg.Body, 6<<20))
	return extractMIMETextParts(msg.Header, body)
}

func extractMIMETextParts(h mail.Header, body []byte) (plain, html string) {
	ct := h.Get("Content-Type")
	cte := strings.ToLower(strings.TrimSpace(h.Get("Content-Transfer-Encoding")))

	mediaType, params, err := mime.ParseMediaType(ct)
	if err != nil {
		return string(decodeTransferEncoding(body, cte)), ""
	}
	mediaType = strings.ToLower(mediaType)

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return string(decodeTransferEncoding(body, cte)), ""
		}
		mr := multipart.NewReader(bytes.NewReader(body), boundary)

		var bestPlain, bestHTML string
		for {
			p, err := mr.NextPart()
			if err != nil {
				break
			}
			partCTE := strings.ToLower(strings.TrimSpace(p.Header.Get("Content-Transfer-Encoding")))
			pMedia, _, _ := mime.ParseMediaType(p.Header.Get("Content-Type"))
			pMedia = strings.ToLower(pMedia)

			b, _ := io.ReadAll(io.LimitReader(p, 6<<20))
			b = decodeTransferEncoding(b, partCTE)

			if strings.HasPrefix(pMedia, "multipart/") {
				pl, ht := extractMIMETextParts(mail.Header(p.Header), b)
				if len(pl) > len(bestPlain) {
					bestPlain = pl
				}
				if len(ht) > len(bestHTML) {
					bestHTML = ht
				}
				continue
			}

			switch {
			case strings.HasPrefix(pMedia, "text/plain"):
				if len(b) > len(bestPlain) {
					bestPlain = string(b)
				}
			case strings.HasPrefix(pMedia, "text/html"):
				if len(b) > len(bestHTML) {
					bestHTML = string(b)
				}
			}
		}
		return bestPlain, bestHTML
	}

	s := decodeTransferEncoding(body, cte)
	if strings.HasPrefix(mediaType, "text/html") {
		return "", string(s)
	}
	return string(s), ""
}

func decodeTransferEncoding(b []byte, cte string) []byte {
	switch cte {
	case "base64":
		compact := strings.Map(func(r rune) rune {
			if r == '\r' || r == '\n' || r == ' ' || r == '\t' {
				return -1
			}
			return r
		}, string(b))
		out, err := base64.StdEncoding.DecodeString(compact)
		if err != nil {
			return b
		}
		return out
	case "quoted-printable":
		dec := quotedprintable.NewReader(bytes.NewReader(b))
		out, _ := io.ReadAll(io.LimitReader(dec, 6<<20))
		return out
	default:
		return b
	}
}

func decodeRFC2047(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	dec := new(mime.WordDecoder)
	out, err := dec.DecodeHeader(s)
	if err != nil {
		return s
	}
	return out
}
