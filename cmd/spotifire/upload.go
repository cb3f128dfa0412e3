package main

import (
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/ragp/spotifire/internal/storage"
)

var uploadDryRun bool

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Sync collected snapshots to S3",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.RequireBucket(); err != nil {
			return err
		}

		awscfg, err := awsConfig(cmd.Context())
		if err != nil {
			return err
		}

		uploader := storage.New(log, s3.NewFromConfig(awscfg), cfg.Bucket)
		report, err := uploader.SyncRaw(cmd.Context(), cfg.DataDir, cfg.RawPrefix(), uploadDryRun)
		if err != nil {
			return err
		}

		for userID, sync := range report.Users {
			log.Infow("user sync", "user_id", userID,
				"processed", sync.Processed, "uploaded", sync.Uploaded, "skipped", sync.Skipped)
		}
		log.Infow("sync complete", "dry_run", uploadDryRun,
			"processed", report.Processed, "uploaded", report.Uploaded, "skipped", report.Skipped)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd)

	uploadCmd.Flags().BoolVar(&uploadDryRun, "dry-run", false, "log what would upload without uploading")
}
