package gemini

import (
	"regexp"
	"strings"
)

var trailingComma = regexp.MustCompile(`,\s*$`)

// repairTruncated patches a model response that was cut off mid-object.
// It only fires on the truncation signature: the type key is present but
// the object never closed. Anything else is not our job to fix.
//
// The unterminated-string check runs against the tail of the input, before
// the optional fields are injected, so an input ending in a complete string
// is left alone.
func repairTruncated(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, `"email_type"`) || strings.HasSuffix(s, "}") {
		return "", false
	}

	fixed := trailingComma.ReplaceAllString(s, "")

	// A tail like `"job_id": R12` lost its closing quote somewhere after
	// the last quote character.
	if i := strings.LastIndex(fixed, `"`); i >= 0 {
		tail := fixed[i+1:]
		if strings.Contains(tail, ":") && !strings.Contains(tail, `"`) {
			fixed += `"`
		}
	}

	if !strings.Contains(fixed, `"location"`) {
		fixed += `, "location": null`
	}
	if !strings.Contains(fixed, `"job_id"`) {
		fixed += `, "job_id": null`
	}

	if !strings.HasSuffix(fixed, "}") {
		fixed += " }"
	}
	return fixed, true
}

// stripFences removes a markdown code-fence wrapper some models insist on
// despite the prompt saying otherwise.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "```json\n", "")
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```\n", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
