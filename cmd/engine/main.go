package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"jobtrack-engine/internal/gemini"
	"jobtrack-engine/internal/httpapi"
	"jobtrack-engine/internal/scheduler"
	"jobtrack-engine/internal/secrets"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Optional .env for GEMINI_API_KEY / IMAP_APP_PASSWORD overrides.
	_ = godotenv.Load()

	log := newLogger()

	configFlag := &cli.StringFlag{
		Name:  "config",
		Usage: "path to config.yml (default: per-user copy under the data dir)",
	}

	root := &cli.Command{
		Name:  "jobtrack",
		Usage: "job application tracker: classify mailbox threads and keep the ledgers current",
		Commands: []*cli.Command{
			{
				Name:  "daily",
				Usage: "run one ingestion pass followed by reconciliation",
				Flags: []cli.Flag{configFlag},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					a, err := newApp(ctx, log, cmd.String("config"))
					if err != nil {
						return err
					}
					defer a.close()
					return a.runDaily(ctx)
				},
			},
			{
				Name:  "ingest",
				Usage: "run one ingestion pass only",
				Flags: []cli.Flag{configFlag},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					a, err := newApp(ctx, log, cmd.String("config"))
					if err != nil {
						return err
					}
					defer a.close()
					stats, err := a.runIngest(ctx)
					if err != nil {
						a.alert(ctx, "ingest", err)
						return err
					}
					fmt.Printf("found=%d processed=%d skipped=%d errors=%d\n",
						stats.Found, stats.Processed, stats.Skipped, stats.Errors)
					return nil
				},
			},
			{
				Name:  "reconcile",
				Usage: "link rejection rows to their application rows",
				Flags: []cli.Flag{configFlag},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					a, err := newApp(ctx, log, cmd.String("config"))
					if err != nil {
						return err
					}
					defer a.close()
					matched, err := a.runReconcile(ctx)
					if err != nil {
						a.alert(ctx, "reconcile", err)
						return err
					}
					fmt.Printf("matched=%d\n", matched)
					return nil
				},
			},
			{
				Name:  "serve",
				Usage: "run the scheduler and the status HTTP server",
				Flags: []cli.Flag{configFlag},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return serve(ctx, log, cmd.String("config"))
				},
			},
			{
				Name:  "reset-labels",
				Usage: "remove the tracked mark everywhere so threads reprocess",
				Flags: []cli.Flag{configFlag},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					a, err := newApp(ctx, log, cmd.String("config"))
					if err != nil {
						return err
					}
					defer a.close()
					n, err := a.source.ResetTracked(ctx)
					if err != nil {
						return err
					}
					fmt.Printf("cleared %d threads\n", n)
					return nil
				},
			},
			{
				Name:  "setup-key",
				Usage: "store the Gemini API key in the system keychain",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "key", Usage: "API key (falls back to GEMINI_API_KEY)", Sources: cli.EnvVars("GEMINI_API_KEY")},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					key := cmd.String("key")
					if key == "" {
						return errors.New("provide --key or set GEMINI_API_KEY")
					}
					if err := secrets.SetGeminiAPIKey(key); err != nil {
						return err
					}
					fmt.Println("Gemini API key stored")
					return nil
				},
			},
			{
				Name:  "test-key",
				Usage: "verify the stored Gemini API key against the live API",
				Flags: []cli.Flag{configFlag},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					c, err := standaloneClassifier(log, cmd.String("config"))
					if err != nil {
						return err
					}
					reply, err := c.Ping(ctx)
					if err != nil {
						return fmt.Errorf("key check failed: %w", err)
					}
					fmt.Printf("key works, model replied: %s\n", reply)
					return nil
				},
			},
			{
				Name:  "models",
				Usage: "list models available to the stored API key",
				Flags: []cli.Flag{configFlag},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					c, err := standaloneClassifier(log, cmd.String("config"))
					if err != nil {
						return err
					}
					models, err := c.ListModels(ctx)
					if err != nil {
						return err
					}
					for _, m := range models {
						fmt.Printf("%s\t%s\n", m.Name, m.DisplayName)
					}
					return nil
				},
			},
		},
	}

	if err := root.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

// standaloneClassifier builds a Gemini client without wiring mail or
// ledger backends, for the key utility commands.
func standaloneClassifier(log *logrus.Logger, cfgPath string) (*gemini.Client, error) {
	cfg, err := loadConfig(log, cfgPath)
	if err != nil {
		return nil, err
	}
	key, err := secrets.GetGeminiAPIKey()
	if err != nil {
		return nil, err
	}
	return gemini.New(gemini.Options{
		APIKey: key,
		Model:  cfg.Gemini.Model,
	}, log)
}

func serve(ctx context.Context, log *logrus.Logger, cfgPath string) error {
	a, err := newApp(ctx, log, cfgPath)
	if err != nil {
		return err
	}
	defer a.close()

	deps := httpapi.Deps{
		Log:    log,
		Hub:    a.hub,
		Ledger: a.store,
		Info: httpapi.StatusInfo{
			MailBackend:   a.cfg.Mail.Backend,
			LedgerBackend: a.cfg.Ledger.Backend,
			Label:         a.cfg.Mail.Label,
			Model:         a.cfg.Gemini.Model,
			MaxPerRun:     a.cfg.Mail.MaxPerRun,
		},
		RunIngest:    a.runIngest,
		RunReconcile: a.runReconcile,
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.cfg.App.Port),
		Handler: httpapi.Handler(deps),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		interval := time.Duration(a.cfg.Polling.DailySeconds) * time.Second
		scheduler.Every(gctx, interval, "daily", log, a.runDaily)
		return nil
	})

	g.Go(func() error {
		log.Infof("[http] listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	return g.Wait()
}
