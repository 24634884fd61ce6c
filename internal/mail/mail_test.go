package mail

import (
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildQuery(t *testing.T) {
	q := BuildQuery(SearchSpec{
		SubjectAny:    []string{"application received", "thank you for applying"},
		FromDomains:   []string{"greenhouse.io", "lever.co"},
		ExcludeLabel:  "Auto/Job-Tracked",
		NewerThanDays: 7,
	})

	assert.Contains(t, q, `subject:("application received" OR "thank you for applying")`)
	assert.Contains(t, q, "from:(greenhouse.io OR lever.co)")
	assert.Contains(t, q, `-subject:"Script Failed"`)
	assert.Contains(t, q, "-from:apps-scripts-notifications@google.com")
	assert.Contains(t, q, "-label:Auto/Job-Tracked")
	assert.Contains(t, q, "newer_than:7d")
}

func TestBuildQueryMinimal(t *testing.T) {
	q := BuildQuery(SearchSpec{})
	assert.Equal(t, `-subject:"Script Failed" -from:apps-scripts-notifications@google.com`, q)
}

func TestPermalinkRoundTrip(t *testing.T) {
	// The permalink must embed the thread ID where the dedup regex on the
	// ledger side finds it again.
	link := Permalink("18f2ab9cde")
	assert.Equal(t, "https://mail.google.com/mail/u/0/#inbox/18f2ab9cde", link)
}

func TestContainsAnyCI(t *testing.T) {
	assert.True(t, containsAnyCI("Your Application Was Received", []string{"your application", "applying"}))
	assert.False(t, containsAnyCI("Your Application Was Received", []string{"application received"}),
		"terms match as substrings, not word sets")
	assert.True(t, containsAnyCI("Thanks for APPLYING!", []string{"applying"}))
	assert.False(t, containsAnyCI("Weekly newsletter", []string{"application", "interview"}))
	assert.False(t, containsAnyCI("anything", nil))
	assert.False(t, containsAnyCI("anything", []string{"  ", ""}))
}

func TestHTMLToText(t *testing.T) {
	html := `<html><head><style>p{color:red}</style></head><body>
		<p>We received your application for <b>Backend Engineer</b>.</p>
		<script>track()</script>
		<p>Thanks, Acme</p></body></html>`

	text := HTMLToText(html)
	assert.Contains(t, text, "We received your application for Backend Engineer")
	assert.Contains(t, text, "Thanks, Acme")
	assert.NotContains(t, text, "color:red")
	assert.NotContains(t, text, "track()")
}

func TestExtractMIMETextBodyMultipart(t *testing.T) {
	raw := []byte("From: jobs@acme.example\r\n" +
		"Subject: Application received\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/alternative; boundary=XYZ\r\n" +
		"\r\n" +
		"--XYZ\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"Plain body here.\r\n" +
		"--XYZ\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<p>HTML body here.</p>\r\n" +
		"--XYZ--\r\n")

	plain, html := extractMIMETextBody(raw)
	assert.Contains(t, plain, "Plain body here.")
	assert.Contains(t, html, "HTML body here.")
}

func TestExtractMIMETextPartsQuotedPrintable(t *testing.T) {
	hdr := mail.Header{
		"Content-Type":              {"text/plain; charset=utf-8"},
		"Content-Transfer-Encoding": {"quoted-printable"},
	}
	plain, html := extractMIMETextParts(hdr, []byte("caf=C3=A9 position"))
	require.Empty(t, html)
	assert.Equal(t, "café position", plain)
}

func TestDecodeRFC2047(t *testing.T) {
	assert.Equal(t, "Décision", decodeRFC2047("=?utf-8?q?D=C3=A9cision?="))
	assert.Equal(t, "plain subject", decodeRFC2047("plain subject"))
}
