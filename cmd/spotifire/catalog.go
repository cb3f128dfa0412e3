package main

import (
	awsglue "github.com/aws/aws-sdk-go-v2/service/glue"
	"github.com/spf13/cobra"

	"github.com/ragp/spotifire/internal/glue"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Create or update the Glue database and tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.RequireBucket(); err != nil {
			return err
		}

		awscfg, err := awsConfig(cmd.Context())
		if err != nil {
			return err
		}

		manager := glue.New(log, awsglue.NewFromConfig(awscfg), cfg.GlueDatabase, cfg.Bucket, cfg.ProcessedPrefix())
		if err := manager.EnsureAll(cmd.Context()); err != nil {
			return err
		}
		return manager.Verify(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
}
