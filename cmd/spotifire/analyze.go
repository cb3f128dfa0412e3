package main

import (
	"path/filepath"
	"time"

	awsathena "github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/spf13/cobra"

	"github.com/ragp/spotifire/internal/athena"
	"github.com/ragp/spotifire/internal/bedrock"
)

var (
	analyzeMaxTracks int
	analyzeStats     bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Score unanalyzed tracks on the psychological dimensions",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.RequireBucket(); err != nil {
			return err
		}

		ctx := cmd.Context()
		awscfg, err := awsConfig(ctx)
		if err != nil {
			return err
		}

		runner := athena.NewRunner(log, awsathena.NewFromConfig(awscfg), cfg.GlueDatabase, cfg.AthenaOutput)
		insights := athena.NewInsights(log, runner)

		if analyzeStats {
			stats, err := insights.AnalysisProgress(ctx)
			if err != nil {
				return err
			}
			log.Infow("analysis coverage",
				"available", stats.TracksAvailable,
				"analyzed", stats.TracksAnalyzed,
				"pending", stats.TracksPending,
				"percent", stats.CompletionPercentage)
			return nil
		}

		tracks, err := insights.UnprocessedTracks(ctx, analyzeMaxTracks)
		if err != nil {
			return err
		}
		if len(tracks) == 0 {
			log.Info("every track is already analyzed")
			return nil
		}
		log.Infow("analyzing tracks", "count", len(tracks), "model", cfg.ModelID)

		analyzer := bedrock.New(log, bedrockruntime.NewFromConfig(awscfg), cfg.ModelID)
		start := time.Now()
		analyses := analyzer.AnalyzeAll(ctx, tracks)

		path, err := bedrock.SaveResults(filepath.Join(cfg.DataDir, "analysis"), analyses, bedrock.RunMetadata{
			GeneratedAt:     time.Now().UTC(),
			DurationSeconds: time.Since(start).Seconds(),
			SongsProcessed:  len(analyses),
			Database:        cfg.GlueDatabase,
			ModelID:         cfg.ModelID,
		})
		if err != nil {
			return err
		}

		log.Infow("analysis complete", "analyzed", len(analyses), "requested", len(tracks), "output", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().IntVar(&analyzeMaxTracks, "max-tracks", 50, "maximum number of tracks to analyze")
	analyzeCmd.Flags().BoolVar(&analyzeStats, "stats", false, "print coverage statistics and exit")
}
