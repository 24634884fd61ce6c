// Package mail is the mailbox collaborator: bounded search for candidate
// threads, first-message access, and the consumed-mark (a label on Gmail,
// a keyword flag on IMAP).
package mail

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Message is the first message of a candidate thread.
type Message struct {
	Subject string
	Body    string
	Date    time.Time
}

type Source interface {
	// Search returns up to max candidate thread IDs, newest first,
	// excluding threads already carrying the consumed mark.
	Search(ctx context.Context, max int) ([]string, error)

	FirstMessage(ctx context.Context, threadID string) (Message, error)

	// MarkTracked attaches the consumed mark so the thread stops
	// reappearing in future candidate sets.
	MarkTracked(ctx context.Context, threadID string) error

	// ResetTracked removes the mark everywhere so threads can be
	// reprocessed. Returns the number of threads touched.
	ResetTracked(ctx context.Context) (int, error)
}

// Permalink builds the reference string stored in the ledgers. The thread
// identifier embedded here is what the dedup scan extracts back out.
func Permalink(threadID string) string {
	return "https://mail.google.com/mail/u/0/#inbox/" + threadID
}

// SearchSpec holds the heuristics the candidate search combines.
type SearchSpec struct {
	SubjectAny    []string
	FromDomains   []string
	ExcludeLabel  string
	NewerThanDays int
}

// BuildQuery renders a Gmail search query: subject keywords OR known ATS
// sender domains, minus the failure-alert subject, the script notification
// sender, already-labeled threads, and anything outside the freshness
// window.
func BuildQuery(spec SearchSpec) string {
	var parts []string

	var inner []string
	if len(spec.SubjectAny) > 0 {
		quoted := make([]string, len(spec.SubjectAny))
		for i, s := range spec.SubjectAny {
			quoted[i] = fmt.Sprintf("%q", s)
		}
		inner = append(inner, fmt.Sprintf("subject:(%s)", strings.Join(quoted, " OR ")))
	}
	if len(spec.FromDomains) > 0 {
		inner = append(inner, fmt.Sprintf("from:(%s)", strings.Join(spec.FromDomains, " OR ")))
	}
	if len(inner) > 0 {
		parts = append(parts, "("+strings.Join(inner, " OR ")+")")
	}

	parts = append(parts, `-subject:"Script Failed"`)
	parts = append(parts, "-from:apps-scripts-notifications@google.com")
	if spec.ExcludeLabel != "" {
		parts = append(parts, "-label:"+spec.ExcludeLabel)
	}
	if spec.NewerThanDays > 0 {
		parts = append(parts, fmt.Sprintf("newer_than:%dd", spec.NewerThanDays))
	}

	return strings.Join(parts, " ")
}

// containsAnyCI reports whether s contains any of the terms,
// case-insensitively. Used by the IMAP backend to apply the subject
// heuristics client-side.
func containsAnyCI(s string, any []string) bool {
	ls := strings.ToLower(s)
	for _, a := range any {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if strings.Contains(ls, strings.ToLower(a)) {
			return true
		}
	}
	return false
}
