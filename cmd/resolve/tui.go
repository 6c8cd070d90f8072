package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	appanalysis "github.com/bryanwahyu/resolve-ai/internal/application/analysis"
	"github.com/bryanwahyu/resolve-ai/internal/application/archive"
	"github.com/bryanwahyu/resolve-ai/internal/client/archiveclient"
	"github.com/bryanwahyu/resolve-ai/internal/client/gateway"
	"github.com/bryanwahyu/resolve-ai/internal/client/identity"
	"github.com/bryanwahyu/resolve-ai/internal/client/media"
	"github.com/bryanwahyu/resolve-ai/internal/client/session"
	"github.com/bryanwahyu/resolve-ai/internal/client/tui"
	"github.com/bryanwahyu/resolve-ai/internal/client/voice"
	"github.com/bryanwahyu/resolve-ai/internal/config"
)

var tuiServer string

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Interactive terminal client",
	Long: "Capture media from files, analyze it, work through the repair checklist and browse past scans. " +
		"A model API key saved from the client makes analysis run locally instead of through the server.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		statePath := cfg.Client.StateFile
		if statePath == "" {
			p, err := identity.DefaultPath()
			if err != nil {
				return err
			}
			statePath = p
		}
		if err := os.MkdirAll(filepath.Dir(statePath), 0o755); err != nil {
			return eris.Wrap(err, "create state dir")
		}
		// terminal dipakai TUI, log ke file
		if err := config.InitFileLogger(cfg.Log, filepath.Join(filepath.Dir(statePath), "resolve.log")); err != nil {
			return err
		}
		log := zap.L()

		serverURL := cfg.Client.ServerURL
		if tuiServer != "" {
			serverURL = tuiServer
		}

		store := identity.NewFileStore(statePath)
		devices := identity.NewProvider(store)
		prefs := identity.Preferences{Store: store}
		history := archive.New(archiveclient.New(serverURL), devices, log)

		var gw gateway.Analyzer = gateway.NewClient(serverURL)
		if key := prefs.APIKey(ctx); key != "" {
			local, err := localGateway(ctx, key)
			if err != nil {
				log.Warn("stored api key unusable, falling back to server", zap.Error(err))
			} else {
				gw = local
			}
		}

		caps := voice.Detect(cfg.Client.Speech, cfg.Client.Transcripts)
		machine := session.New(ctx, gw, history, prefs, caps, log)

		return tui.Run(ctx, machine, tui.Options{
			Encoder: media.NewEncoder(),
			OnAPIKey: func(ctx context.Context, key string) error {
				local, err := localGateway(ctx, key)
				if err != nil {
					return err
				}
				if err := prefs.SetAPIKey(ctx, key); err != nil {
					return eris.Wrap(err, "save api key")
				}
				machine.SetGateway(local)
				return nil
			},
		})
	},
}

// localGateway runs analysis in-process with a key kept on this device.
func localGateway(ctx context.Context, key string) (gateway.Analyzer, error) {
	prov := cfg.Provider()
	a, err := newAnalyzer(ctx, cfg.AI.Provider, key, prov.Model)
	if err != nil {
		return nil, err
	}
	return gateway.Local{Service: appanalysis.NewService(a, zap.L())}, nil
}

func init() {
	tuiCmd.Flags().StringVar(&tuiServer, "server", "", "API base URL (default from config)")
	rootCmd.AddCommand(tuiCmd)
}
