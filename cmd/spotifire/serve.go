package main

import (
	"fmt"
	"io/fs"

	awsathena "github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/ragp/spotifire/internal/athena"
	"github.com/ragp/spotifire/internal/db"
	"github.com/ragp/spotifire/internal/profiles"
	"github.com/ragp/spotifire/internal/spotifyapi"
	"github.com/ragp/spotifire/internal/storage"
	"github.com/ragp/spotifire/internal/tokens"
	"github.com/ragp/spotifire/internal/web"
	webfs "github.com/ragp/spotifire/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command) error {
	if err := cfg.RequireSpotify(); err != nil {
		return err
	}

	templatesFS, err := fs.Sub(webfs.TemplatesFS, "templates")
	if err != nil {
		return fmt.Errorf("creating templates filesystem: %w", err)
	}
	staticFS, err := fs.Sub(webfs.StaticFS, "static")
	if err != nil {
		return fmt.Errorf("creating static filesystem: %w", err)
	}

	templates, err := web.NewTemplates(templatesFS)
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}

	ctx := cmd.Context()
	auth := spotifyapi.NewAuthenticator(cfg.ClientID, cfg.ClientSecret, cfg.RedirectURI())
	tokenStore := tokens.NewStore(cfg.DataDir)

	var sessions web.SessionManager = web.NewMemorySessionStore()
	var database *db.DB
	if cfg.DatabaseURL != "" {
		database, err = db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer database.Close()
		sessions = web.NewDBSessionStore(database)
		log.Info("using Postgres-backed sessions")

		if purged, err := database.Sessions().DeleteExpired(ctx); err != nil {
			log.Warnw("sweeping expired sessions", "error", err)
		} else if purged > 0 {
			log.Infow("swept expired sessions", "count", purged)
		}
	}

	handlers := web.NewHandlers(log, auth, sessions, templates, tokenStore, cfg.DataDir)
	if database != nil {
		handlers.WithUsers(database.Users())
	}

	// Analytics features need the AWS side; the dashboard degrades
	// gracefully without them.
	if cfg.Bucket != "" {
		awscfg, err := awsConfig(ctx)
		if err != nil {
			return err
		}
		runner := athena.NewRunner(log, awsathena.NewFromConfig(awscfg), cfg.GlueDatabase, cfg.AthenaOutput)
		uploader := storage.New(log, s3.NewFromConfig(awscfg), cfg.Bucket)
		lookup := profiles.NewLookup(log, uploader, cfg.DataDir, cfg.MLPrefix()+"/"+profiles.ProfilesFile)
		handlers.WithAnalytics(athena.NewInsights(log, runner), lookup)
	} else {
		log.Info("no bucket configured, analytics disabled")
	}

	return web.NewServer(log, cfg.Addr, handlers, staticFS).Run()
}
