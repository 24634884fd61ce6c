// engine/internal/config/config.go
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		Port    int    `yaml:"port"`
		DataDir string `yaml:"data_dir"`
	} `yaml:"app"`

	Mail struct {
		// "gmail" (REST API, labels, real thread ids) or "imap"
		// (keyword flag stands in for the label, UID for the thread id).
		Backend string `yaml:"backend"`

		Label             string   `yaml:"label"`
		MaxPerRun         int      `yaml:"max_per_run"`
		NewerThanDays     int      `yaml:"newer_than_days"`
		SearchSubjectAny  []string `yaml:"search_subject_any"`
		SearchFromDomains []string `yaml:"search_from_domains"`

		Gmail struct {
			CredentialsFile string `yaml:"credentials_file"`
			TokenFile       string `yaml:"token_file"`
		} `yaml:"gmail"`

		IMAP struct {
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			Username string `yaml:"username"`
			Mailbox  string `yaml:"mailbox"`
		} `yaml:"imap"`
	} `yaml:"mail"`

	Ledger struct {
		// "sheets" or "sqlite"
		Backend string `yaml:"backend"`

		Sheets struct {
			SpreadsheetID   string `yaml:"spreadsheet_id"`
			CredentialsFile string `yaml:"credentials_file"`
			TokenFile       string `yaml:"token_file"`
		} `yaml:"sheets"`

		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"ledger"`

	Gemini struct {
		Model             string  `yaml:"model"`
		MaxOutputTokens   int     `yaml:"max_output_tokens"`
		MaxBodyChars      int     `yaml:"max_body_chars"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
	} `yaml:"gemini"`

	Notify struct {
		Enabled bool   `yaml:"enabled"`
		To      string `yaml:"to"`
	} `yaml:"notify"`

	Polling struct {
		DailySeconds int `yaml:"daily_seconds"`
	} `yaml:"polling"`
}

func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(b, &cfg)
	return cfg, err
}
