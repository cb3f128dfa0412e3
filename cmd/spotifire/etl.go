package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/ragp/spotifire/internal/bedrock"
	"github.com/ragp/spotifire/internal/etl"
	"github.com/ragp/spotifire/internal/storage"
)

var (
	etlUser   string
	etlUpload bool
)

var etlCmd = &cobra.Command{
	Use:   "etl",
	Short: "Transform collected snapshots into Parquet datasets",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runETL(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(etlCmd)

	etlCmd.Flags().StringVar(&etlUser, "user", "", "process a single user instead of all")
	etlCmd.Flags().BoolVar(&etlUpload, "upload", false, "upload resulting Parquet files to S3")
}

func runETL(ctx context.Context) error {
	processor, err := etl.New(log, cfg.DataDir)
	if err != nil {
		return err
	}

	users := []string{etlUser}
	if etlUser == "" {
		users, err = processor.Users()
		if err != nil {
			return err
		}
		if len(users) == 0 {
			log.Info("no collected snapshots, nothing to process")
			return nil
		}
	}

	var results []*etl.Result
	for _, userID := range users {
		userResults, err := processor.ProcessUser(userID)
		if err != nil {
			if etlUser != "" {
				return err
			}
			log.Warnw("skipping user", "user_id", userID, "error", err)
			continue
		}
		results = append(results, userResults...)
	}

	// Dimension analysis results are global, not per user.
	analysisFiles, err := loadAnalysisFiles()
	if err != nil {
		return err
	}
	if len(analysisFiles) > 0 {
		result, err := processor.ProcessDimensions(analysisFiles...)
		if err != nil {
			return err
		}
		results = append(results, result)
	}

	for _, r := range results {
		log.Infow("dataset built", "dataset", r.Dataset, "path", r.Path, "rows", r.Rows, "skipped", r.Skipped)
	}

	if !etlUpload {
		return nil
	}
	return uploadResults(ctx, results)
}

// loadAnalysisFiles reads every saved Bedrock analysis run.
func loadAnalysisFiles() ([]*bedrock.AnalysisFile, error) {
	paths, err := filepath.Glob(filepath.Join(cfg.DataDir, "analysis", "dimension_analysis_*.json"))
	if err != nil {
		return nil, err
	}

	var files []*bedrock.AnalysisFile
	for _, path := range paths {
		file, err := bedrock.LoadResults(path)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
		files = append(files, file)
	}
	return files, nil
}

func uploadResults(ctx context.Context, results []*etl.Result) error {
	if err := cfg.RequireBucket(); err != nil {
		return err
	}

	awscfg, err := awsConfig(ctx)
	if err != nil {
		return err
	}
	uploader := storage.New(log, s3.NewFromConfig(awscfg), cfg.Bucket)

	for _, r := range results {
		key := cfg.ProcessedPrefix() + "/" + r.Dataset + "/" + filepath.Base(r.Path)
		if err := uploader.UploadFile(ctx, r.Path, key); err != nil {
			return fmt.Errorf("uploading %s: %w", r.Path, err)
		}
	}
	log.Infow("uploaded datasets", "count", len(results))
	return nil
}
