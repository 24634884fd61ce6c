package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobtrack-engine/internal/domain"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

// candidateResponse wraps text the way the generateContent endpoint does.
func candidateResponse(text string) string {
	resp := map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]any{{"text": text}}}},
		},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Options{
		APIKey:            "test-key",
		BaseURL:           srv.URL,
		RequestsPerSecond: 1000,
	}, testLogger())
	require.NoError(t, err)
	return c
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(Options{}, testLogger())
	assert.Error(t, err)
}

func TestClassify_HappyPath(t *testing.T) {
	var gotReq generateRequest
	var gotURL string

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotURL = r.URL.String()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Write([]byte(candidateResponse(`{"email_type":"confirmation","company":"Whatnot","position":"Backend Engineer","location":"Remote","job_id":"R123"}`)))
	})

	data, err := c.Classify(context.Background(), "Thanks for applying", "We received your application.")
	require.NoError(t, err)

	assert.Equal(t, domain.EmailConfirmation, data.EmailType)
	assert.Equal(t, "Whatnot", data.Company)
	assert.Equal(t, "Backend Engineer", data.Position)
	assert.Equal(t, "Remote", data.Location)
	assert.Equal(t, "R123", data.JobID)

	// deterministic sampling, bounded output, key as query credential
	assert.Zero(t, gotReq.GenerationConfig.Temperature)
	assert.Equal(t, defaultMaxOutputTokens, gotReq.GenerationConfig.MaxOutputTokens)
	assert.Contains(t, gotURL, "key=test-key")
	assert.Contains(t, gotURL, ":generateContent")

	require.Len(t, gotReq.Contents, 1)
	prompt := gotReq.Contents[0].Parts[0].Text
	assert.Contains(t, prompt, "Thanks for applying")
	assert.Contains(t, prompt, "We received your application.")
}

func TestClassify_TruncatesLongBody(t *testing.T) {
	var prompt string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		json.NewDecoder(r.Body).Decode(&req)
		prompt = req.Contents[0].Parts[0].Text
		w.Write([]byte(candidateResponse(`{"email_type":"other","company":"X","position":"Y"}`)))
	})

	long := strings.Repeat("a", defaultMaxBodyChars+500)
	_, err := c.Classify(context.Background(), "s", long)
	require.NoError(t, err)

	assert.Contains(t, prompt, truncationMarker)
	assert.NotContains(t, prompt, strings.Repeat("a", defaultMaxBodyChars+1))
}

func TestClassify_TruncationKeepsRunesIntact(t *testing.T) {
	var prompt string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		json.NewDecoder(r.Body).Decode(&req)
		prompt = req.Contents[0].Parts[0].Text
		w.Write([]byte(candidateResponse(`{"email_type":"other","company":"X","position":"Y"}`)))
	})

	// "é" is two bytes; an odd byte limit lands mid-rune.
	c.maxBodyChars = 7
	body := strings.Repeat("é", 5)
	_, err := c.Classify(context.Background(), "s", body)
	require.NoError(t, err)

	assert.Contains(t, prompt, truncationMarker)
	assert.True(t, utf8.ValidString(prompt), "truncation must not split a multi-byte rune")
}

func TestClassify_StripsMarkdownFences(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(candidateResponse("```json\n{\"email_type\":\"rejection\",\"company\":\"Acme\",\"position\":\"SRE\"}\n```")))
	})

	data, err := c.Classify(context.Background(), "s", "b")
	require.NoError(t, err)
	assert.Equal(t, domain.EmailRejection, data.EmailType)
}

func TestClassify_RecoversTruncatedOutput(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(candidateResponse(`{"email_type":"confirmation","company":"Foo","position":"Engineer"`)))
	})

	data, err := c.Classify(context.Background(), "s", "b")
	require.NoError(t, err)
	assert.Equal(t, domain.EmailConfirmation, data.EmailType)
	assert.Equal(t, "Foo", data.Company)
	assert.Empty(t, data.Location)
	assert.Empty(t, data.JobID)
}

func TestClassify_UnknownDefaults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(candidateResponse(`{"email_type":"confirmation","company":"Acme","position":null,"location":null,"job_id":null}`)))
	})

	data, err := c.Classify(context.Background(), "s", "b")
	require.NoError(t, err)
	assert.Equal(t, "Acme", data.Company)
	assert.Equal(t, "Unknown", data.Position)
}

func TestClassify_SkipOutcomes(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "non-200 status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "quota exceeded", http.StatusTooManyRequests)
			},
		},
		{
			name: "blocked prompt",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"candidates":[],"promptFeedback":{"blockReason":"SAFETY"}}`))
			},
		},
		{
			name: "empty candidate content",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"candidates":[{"finishReason":"MAX_TOKENS"}]}`))
			},
		},
		{
			name: "malformed output without type key",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(candidateResponse(`I am sorry, I cannot classify this email.`)))
			},
		},
		{
			name: "missing email_type",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(candidateResponse(`{"company":"Acme","position":"SRE"}`)))
			},
		},
		{
			name: "missing company and position",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(candidateResponse(`{"email_type":"confirmation","company":null,"position":null}`)))
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, tc.handler)
			_, err := c.Classify(context.Background(), "s", "b")
			require.Error(t, err)

			var skip *SkipError
			assert.True(t, errors.As(err, &skip), "want *SkipError, got %T: %v", err, err)
		})
	}
}

func TestPing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(candidateResponse("Hello")))
	})

	got, err := c.Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Hello", got)
}

func TestListModels(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		w.Write([]byte(`{"models":[{"name":"models/gemini-2.5-flash","displayName":"Gemini 2.5 Flash","supportedGenerationMethods":["generateContent"]}]}`))
	})

	models, err := c.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "models/gemini-2.5-flash", models[0].Name)
	assert.Equal(t, "Gemini 2.5 Flash", models[0].DisplayName)
}
