package main

import (
	"path/filepath"

	awsathena "github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/ragp/spotifire/internal/athena"
	"github.com/ragp/spotifire/internal/profiles"
	"github.com/ragp/spotifire/internal/storage"
)

var profilesUpload bool

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Cluster users into listening-personality profiles",
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
		features, err := athena.NewInsights(log, runner).UserFeatureVectors(ctx)
		if err != nil {
			return err
		}
		if len(features) == 0 {
			log.Info("no users with enough plays, nothing to profile")
			return nil
		}

		userProfiles, stats, err := profiles.NewGenerator(log).Generate(features)
		if err != nil {
			return err
		}

		profilesPath, statsPath, err := profiles.WriteCSVs(filepath.Join(cfg.DataDir, "ml"), userProfiles, stats)
		if err != nil {
			return err
		}
		log.Infow("profiles written", "users", len(userProfiles), "profiles", profilesPath, "stats", statsPath)

		if !profilesUpload {
			return nil
		}

		uploader := storage.New(log, s3.NewFromConfig(awscfg), cfg.Bucket)
		for _, path := range []string{profilesPath, statsPath} {
			key := cfg.MLPrefix() + "/" + filepath.Base(path)
			if err := uploader.UploadFile(ctx, path, key); err != nil {
				return err
			}
		}
		log.Info("profiles uploaded")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profilesCmd)

	profilesCmd.Flags().BoolVar(&profilesUpload, "upload", true, "upload the profile CSVs to S3")
}
