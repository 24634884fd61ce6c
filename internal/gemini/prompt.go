package gemini

import "fmt"

// classifyPromptTmpl takes (subject, body). The output contract and the
// classification rules mirror what the Applications/Rejections ledgers
// expect downstream; keep the JSON shape in sync with domain.Extraction.
const classifyPromptTmpl = `You are analyzing a job application email. Extract the following information and classify the email type.

Subject: %s

Email content:
%s

Return ONLY valid JSON with this exact structure. Use null for missing values (no markdown, no backticks):
{
  "email_type": "confirmation",
  "company": "company name",
  "position": "job title",
  "location": null,
  "job_id": null
}

Classification Rules (follow strictly):

email_type = "confirmation" if email says:
- "thank you for applying"
- "we received your application"
- "application submitted"
- "thanks for your interest"
- "we will review your application"
EVEN IF it mentions they may not respond to everyone

email_type = "rejection" if email explicitly says:
- "decided to pursue other candidates"
- "unfortunately"
- "will not be moving forward"
- "not selected"
- "position has been filled"
- "we won't be able to proceed"
- "after reviewing your application... unfortunately"

email_type = "other" for:
- Assessment/coding challenge invitations
- Interview scheduling
- Requests for more information

Key distinction:
- "Thanks for applying, we may not respond to everyone" = CONFIRMATION (not a rejection yet)
- "Unfortunately, we won't be able to invite you" = REJECTION (explicit rejection)

Other fields:
- company: Extract the actual hiring company name (e.g., "Whatnot", "Cloudflare"), NOT the email platform (e.g., not "Ashby" or "Greenhouse")
- position: Extract the exact job title as mentioned in the email
- location: Extract location if clearly mentioned, otherwise null
- job_id: Extract reference/requisition number if present, otherwise null

IMPORTANT: Return complete, valid JSON. If unsure about a field, use null.`

func classifyPrompt(subject, body string) string {
	return fmt.Sprintf(classifyPromptTmpl, subject, body)
}
