package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/ragp/spotifire/internal/collector"
	"github.com/ragp/spotifire/internal/spotifyapi"
	"github.com/ragp/spotifire/internal/tokens"
)

var (
	collectInterval time.Duration
	collectOnce     bool
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Snapshot the recently-played feed of every known user",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.RequireSpotify(); err != nil {
			return err
		}

		svc := newCollector()
		if collectOnce {
			return svc.CollectAll(cmd.Context())
		}
		return svc.Run(cmd.Context(), collectInterval)
	},
}

func init() {
	rootCmd.AddCommand(collectCmd)

	collectCmd.Flags().DurationVar(&collectInterval, "interval", collector.DefaultInterval, "time between collection passes")
	collectCmd.Flags().BoolVar(&collectOnce, "once", false, "run a single pass and exit")
}

func newCollector() *collector.Service {
	auth := spotifyapi.NewAuthenticator(cfg.ClientID, cfg.ClientSecret, cfg.RedirectURI())
	return collector.New(log, tokens.NewStore(cfg.DataDir), auth, cfg.DataDir)
}
