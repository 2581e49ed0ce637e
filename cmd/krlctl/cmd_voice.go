package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"krl-safety-backend/config"
	"krl-safety-backend/internal/events"
	"krl-safety-backend/internal/logging"
	"krl-safety-backend/internal/voice"
)

var voiceOpts struct {
	server     string
	officer    string
	userHeader string
	lang       string
}

var voiceCmd = &cobra.Command{
	Use:   "voice",
	Short: "Run the officer voice loop on this terminal",
	Long: `Connects to the case event stream and reads new cases aloud (printed to
stdout). Each line typed on stdin is treated as a spoken command for the most
recently announced case, e.g. "saya tangani" or "selesai". Ctrl-D or Ctrl-C
ends the session.`,
	RunE: runVoice,
}

func init() {
	f := voiceCmd.Flags()
	f.StringVar(&voiceOpts.server, "server", "http://localhost:8080", "krlwatchd base URL")
	f.StringVar(&voiceOpts.officer, "officer", "", "Officer id sent in the identity header (required)")
	f.StringVar(&voiceOpts.userHeader, "user-header", voice.DefaultUserHeader, "Identity header name")
	f.StringVar(&voiceOpts.lang, "lang", voice.DefaultLang, "Recognition and speech locale")
	_ = voiceCmd.MarkFlagRequired("officer")
}

func runVoice(cmd *cobra.Command, _ []string) error {
	logger, err := logging.New(config.LogConfig{Level: "warn", Format: "console", Service: "krlctl"})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	clientCfg := voice.ClientConfig{
		BaseURL:    voiceOpts.server,
		OfficerID:  voiceOpts.officer,
		UserHeader: voiceOpts.userHeader,
	}

	session := voice.NewSession(
		voice.NewConsoleRecognizer(os.Stdin),
		voice.NewConsoleSynthesizer(cmd.OutOrStdout()),
		voice.NewHTTPDispatcher(clientCfg),
		voice.Options{
			Lang:   voiceOpts.lang,
			Logger: logger,
			OnTranscript: func(text string, final bool) {
				if final {
					logger.Debug("transcript", zap.String("text", text))
				}
			},
		},
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session.Start(ctx)
	defer session.Dispose()

	session.Speak(voice.StartupMessage)
	session.Enable(voiceOpts.lang)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return voice.NewStreamClient(clientCfg, logger).Run(gctx, func(b events.Batch) {
			session.Announce(b)
		})
	})
	g.Go(func() error {
		defer stop()
		return waitDisabled(gctx, session)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "voice session ended")
	return nil
}

// waitDisabled returns once the session stops listening for good, which is
// what happens when stdin is closed.
func waitDisabled(ctx context.Context, s *voice.Session) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.Done():
			return nil
		case <-ticker.C:
			if !s.State().Enabled {
				return nil
			}
		}
	}
}
