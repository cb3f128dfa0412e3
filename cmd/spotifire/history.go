package main

import (
	"github.com/spf13/cobra"
)

var historyUser string

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Harvest full likes, top tracks, and followed artists",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.RequireSpotify(); err != nil {
			return err
		}
		return newCollector().HarvestHistory(cmd.Context(), historyUser)
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historyUser, "user", "", "harvest a single user instead of all")
}
