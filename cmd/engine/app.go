package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"jobtrack-engine/internal/config"
	"jobtrack-engine/internal/events"
	"jobtrack-engine/internal/gemini"
	"jobtrack-engine/internal/googleauth"
	"jobtrack-engine/internal/ledger"
	"jobtrack-engine/internal/mail"
	"jobtrack-engine/internal/notify"
	"jobtrack-engine/internal/runlock"
	"jobtrack-engine/internal/secrets"
	"jobtrack-engine/internal/tracker"
)

// app holds the wired collaborators for one command invocation.
type app struct {
	cfg      config.Config
	log      *logrus.Logger
	hub      *events.Hub
	store    *ledger.Store
	source   mail.Source
	notifier notify.Notifier

	closers []func()
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		log.SetLevel(lvl)
	}
	return log
}

// loadConfig bootstraps the per-user config from the packaged default and
// applies normalization. Validation errors are fatal; warnings only log.
func loadConfig(log *logrus.Logger, explicitPath string) (config.Config, error) {
	path := explicitPath
	if path == "" {
		dataDir := os.Getenv("JOBTRACK_DATA_DIR")
		if dataDir == "" {
			dataDir = "."
		}
		var err error
		path, err = config.EnsureUserConfig(dataDir, filepath.Join("config", "config.yml"))
		if err != nil {
			return config.Config{}, fmt.Errorf("config bootstrap: %w", err)
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("config load (%s): %w", path, err)
	}

	cfg, v := config.NormalizeAndValidate(cfg)
	for _, w := range v.Warnings {
		log.Warnf("[config] %s", w)
	}
	if !v.OK() {
		for _, e := range v.Errors {
			log.Errorf("[config] %s", e)
		}
		return config.Config{}, fmt.Errorf("config is invalid (%d errors)", len(v.Errors))
	}
	return cfg, nil
}

func newApp(ctx context.Context, log *logrus.Logger, cfgPath string) (*app, error) {
	cfg, err := loadConfig(log, cfgPath)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, hub: events.NewHub()}

	if err := a.wireLedger(ctx); err != nil {
		return nil, err
	}
	if err := a.wireMail(ctx); err != nil {
		a.close()
		return nil, err
	}
	a.wireNotifier(ctx)
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *app) wireLedger(ctx context.Context) error {
	var backend ledger.Backend
	switch a.cfg.Ledger.Backend {
	case "sheets":
		hc, err := googleauth.Client(ctx,
			a.cfg.Ledger.Sheets.CredentialsFile,
			a.cfg.Ledger.Sheets.TokenFile,
			"https://www.googleapis.com/auth/spreadsheets")
		if err != nil {
			return fmt.Errorf("sheets auth: %w", err)
		}
		b, err := ledger.NewSheetsBackend(ctx, hc, a.cfg.Ledger.Sheets.SpreadsheetID)
		if err != nil {
			return fmt.Errorf("sheets backend: %w", err)
		}
		backend = b
	case "sqlite":
		b, err := ledger.OpenSQLite(a.cfg.Ledger.SQLitePath)
		if err != nil {
			return fmt.Errorf("sqlite backend: %w", err)
		}
		a.closers = append(a.closers, func() { _ = b.Close() })
		backend = b
	default:
		return fmt.Errorf("unknown ledger backend %q", a.cfg.Ledger.Backend)
	}

	a.store = ledger.NewStore(backend, a.log)
	if err := a.store.Init(ctx); err != nil {
		return fmt.Errorf("ledger init: %w", err)
	}
	return nil
}

func (a *app) wireMail(ctx context.Context) error {
	switch a.cfg.Mail.Backend {
	case "gmail":
		hc, err := googleauth.Client(ctx,
			a.cfg.Mail.Gmail.CredentialsFile,
			a.cfg.Mail.Gmail.TokenFile,
			gmail.GmailModifyScope)
		if err != nil {
			return fmt.Errorf("gmail auth: %w", err)
		}
		query := mail.BuildQuery(mail.SearchSpec{
			SubjectAny:    a.cfg.Mail.SearchSubjectAny,
			FromDomains:   a.cfg.Mail.SearchFromDomains,
			ExcludeLabel:  a.cfg.Mail.Label,
			NewerThanDays: a.cfg.Mail.NewerThanDays,
		})
		src, err := mail.NewGmailSource(ctx, hc, a.cfg.Mail.Label, query, a.log)
		if err != nil {
			return fmt.Errorf("gmail source: %w", err)
		}
		a.source = src
	case "imap":
		pw, err := secrets.GetIMAPPassword(secrets.IMAPKeyringAccount(a.cfg))
		if err != nil {
			return fmt.Errorf("imap password: %w", err)
		}
		src, err := mail.NewIMAPSource(mail.IMAPOptions{
			Host:          a.cfg.Mail.IMAP.Host,
			Port:          a.cfg.Mail.IMAP.Port,
			Username:      a.cfg.Mail.IMAP.Username,
			Password:      pw,
			Mailbox:       a.cfg.Mail.IMAP.Mailbox,
			SubjectAny:    a.cfg.Mail.SearchSubjectAny,
			NewerThanDays: a.cfg.Mail.NewerThanDays,
		}, a.log)
		if err != nil {
			return fmt.Errorf("imap source: %w", err)
		}
		if err := src.Connect(ctx); err != nil {
			return err
		}
		a.closers = append(a.closers, src.Close)
		a.source = src
	default:
		return fmt.Errorf("unknown mail backend %q", a.cfg.Mail.Backend)
	}
	return nil
}

// wireNotifier prefers the Gmail transport when alerts are enabled and the
// mailbox is Gmail; anything else degrades to log-only alerts.
func (a *app) wireNotifier(ctx context.Context) {
	a.notifier = notify.NewLogNotifier(a.log)
	if !a.cfg.Notify.Enabled || a.cfg.Notify.To == "" {
		return
	}
	if a.cfg.Mail.Backend != "gmail" {
		a.log.Warn("[notify] mail alerts need the gmail backend, falling back to log alerts")
		return
	}

	hc, err := googleauth.Client(ctx,
		a.cfg.Mail.Gmail.CredentialsFile,
		a.cfg.Mail.Gmail.TokenFile,
		gmail.GmailModifyScope, gmail.GmailSendScope)
	if err != nil {
		a.log.WithError(err).Warn("[notify] gmail auth failed, falling back to log alerts")
		return
	}
	svc, err := gmail.NewService(ctx, option.WithHTTPClient(hc))
	if err != nil {
		a.log.WithError(err).Warn("[notify] gmail service failed, falling back to log alerts")
		return
	}
	a.notifier = notify.NewGmailNotifier(svc, a.cfg.Notify.To, a.log)
}

func (a *app) newClassifier() (*gemini.Client, error) {
	key, err := secrets.GetGeminiAPIKey()
	if err != nil {
		return nil, err
	}
	return gemini.New(gemini.Options{
		APIKey:            key,
		Model:             a.cfg.Gemini.Model,
		MaxOutputTokens:   a.cfg.Gemini.MaxOutputTokens,
		MaxBodyChars:      a.cfg.Gemini.MaxBodyChars,
		RequestsPerSecond: a.cfg.Gemini.RequestsPerSecond,
	}, a.log)
}

// runIngest executes one locked ingestion pass and publishes the outcome.
func (a *app) runIngest(ctx context.Context) (tracker.RunStats, error) {
	lock, err := runlock.Acquire(a.cfg.App.DataDir)
	if err != nil {
		return tracker.RunStats{}, err
	}
	defer lock.Release()

	classifier, err := a.newClassifier()
	if err != nil {
		return tracker.RunStats{}, err
	}

	p := &tracker.Pipeline{
		Mail:       a.source,
		Ledger:     a.store,
		Classifier: classifier,
		Log:        a.log,
		MaxPerRun:  a.cfg.Mail.MaxPerRun,
	}
	stats, err := p.Run(ctx)
	if err != nil {
		return stats, err
	}

	a.hub.Publish(events.Event{
		Kind:      "ingest",
		Found:     stats.Found,
		Processed: stats.Processed,
		Skipped:   stats.Skipped,
		Errors:    stats.Errors,
	})
	return stats, nil
}

func (a *app) runReconcile(ctx context.Context) (int, error) {
	lock, err := runlock.Acquire(a.cfg.App.DataDir)
	if err != nil {
		return 0, err
	}
	defer lock.Release()

	m := &tracker.Matcher{Ledger: a.store, Log: a.log}
	matched, err := m.Run(ctx)
	if err != nil {
		return matched, err
	}

	a.hub.Publish(events.Event{Kind: "reconcile", Matched: matched})
	return matched, nil
}

// runDaily chains ingestion and reconciliation; a fatal failure in either
// raises an operator alert.
func (a *app) runDaily(ctx context.Context) error {
	if _, err := a.runIngest(ctx); err != nil {
		a.alert(ctx, "daily ingest", err)
		return err
	}
	if _, err := a.runReconcile(ctx); err != nil {
		a.alert(ctx, "daily reconcile", err)
		return err
	}
	return nil
}

func (a *app) alert(ctx context.Context, task string, cause error) {
	body := fmt.Sprintf("The %s run died with a fatal error:\n\n%v\n", task, cause)
	if err := a.notifier.Alert(ctx, notify.FailureSubject(task), body); err != nil {
		a.log.WithError(err).Error("[notify] alert delivery failed")
	}
	a.hub.Publish(events.Event{Kind: "alert", Message: cause.Error()})
}
