package config

import (
	"fmt"
	"strings"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// NormalizeAndValidate fills defaults, trims list fields, and checks the
// backend-specific required settings. It returns a normalized copy.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	trimList := func(xs []string) []string {
		seen := map[string]bool{}
		var ys []string
		for _, x := range xs {
			x = strings.TrimSpace(x)
			if x == "" {
				continue
			}
			key := strings.ToLower(x)
			if seen[key] {
				continue
			}
			seen[key] = true
			ys = append(ys, x)
		}
		return ys
	}

	out.Mail.SearchSubjectAny = trimList(out.Mail.SearchSubjectAny)
	out.Mail.SearchFromDomains = trimList(out.Mail.SearchFromDomains)

	// ---- Defaults ----

	if strings.TrimSpace(out.App.DataDir) == "" {
		out.App.DataDir = "."
	}
	if out.App.Port <= 0 {
		out.App.Port = 8787
	}
	if out.Mail.Backend == "" {
		out.Mail.Backend = "gmail"
	}
	if out.Mail.Label == "" {
		out.Mail.Label = "Auto/Job-Tracked"
	}
	if out.Mail.MaxPerRun <= 0 {
		out.Mail.MaxPerRun = 50
	}
	if out.Mail.NewerThanDays <= 0 {
		out.Mail.NewerThanDays = 7
	}
	if out.Ledger.Backend == "" {
		out.Ledger.Backend = "sheets"
	}
	if out.Gemini.Model == "" {
		out.Gemini.Model = "gemini-2.5-flash"
	}
	if out.Gemini.MaxOutputTokens <= 0 {
		out.Gemini.MaxOutputTokens = 1500
	}
	if out.Gemini.MaxBodyChars <= 0 {
		out.Gemini.MaxBodyChars = 3000
	}
	if out.Gemini.RequestsPerSecond <= 0 {
		out.Gemini.RequestsPerSecond = 1
	}
	if out.Polling.DailySeconds <= 0 {
		out.Polling.DailySeconds = 24 * 60 * 60
	}

	// ---- Validation rules ----

	switch out.Mail.Backend {
	case "gmail":
		if strings.TrimSpace(out.Mail.Gmail.CredentialsFile) == "" {
			res.addErr("mail.gmail.credentials_file is required when mail.backend=gmail")
		}
		if strings.TrimSpace(out.Mail.Gmail.TokenFile) == "" {
			res.addErr("mail.gmail.token_file is required when mail.backend=gmail")
		}
	case "imap":
		if strings.TrimSpace(out.Mail.IMAP.Host) == "" {
			res.addErr("mail.imap.host is required when mail.backend=imap")
		}
		if out.Mail.IMAP.Port == 0 {
			res.addErr("mail.imap.port is required when mail.backend=imap")
		}
		if strings.TrimSpace(out.Mail.IMAP.Username) == "" {
			res.addErr("mail.imap.username is required when mail.backend=imap")
		}
		if strings.TrimSpace(out.Mail.IMAP.Mailbox) == "" {
			out.Mail.IMAP.Mailbox = "INBOX"
		}
	default:
		res.addErr("mail.backend must be gmail or imap (got %q)", out.Mail.Backend)
	}

	switch out.Ledger.Backend {
	case "sheets":
		if strings.TrimSpace(out.Ledger.Sheets.SpreadsheetID) == "" {
			res.addErr("ledger.sheets.spreadsheet_id is required when ledger.backend=sheets")
		}
	case "sqlite":
		if strings.TrimSpace(out.Ledger.SQLitePath) == "" {
			res.addErr("ledger.sqlite_path is required when ledger.backend=sqlite")
		}
	default:
		res.addErr("ledger.backend must be sheets or sqlite (got %q)", out.Ledger.Backend)
	}

	if len(out.Mail.SearchSubjectAny) == 0 && len(out.Mail.SearchFromDomains) == 0 {
		res.addWarn("mail.search_subject_any and mail.search_from_domains are both empty; the search may find nothing.")
	}
	if out.Mail.MaxPerRun > 500 {
		res.addWarn("mail.max_per_run is very high (%d); classification calls are rate limited.", out.Mail.MaxPerRun)
	}
	if out.Notify.Enabled && out.Mail.Backend != "gmail" && strings.TrimSpace(out.Notify.To) == "" {
		res.addWarn("notify.enabled without mail.backend=gmail needs notify.to; alerts will only be logged.")
	}

	return out, res
}
