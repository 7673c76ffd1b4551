package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var processRecordID string

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process pending records through the resolution pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initApp(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		if processRecordID != "" {
			rec, err := env.Store.GetRecord(cmd.Context(), processRecordID)
			if err != nil {
				return err
			}
			rec, err = env.Pipeline.ProcessRecord(cmd.Context(), rec)
			if err != nil {
				return err
			}
			fmt.Printf("processed record %s: %d matches\n", rec.ID, len(rec.Matches))
			return nil
		}

		result, err := env.Pipeline.ProcessBatch(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("batch: %d picked, %d processed, %d failed\n", result.Picked, result.Processed, result.Failed)
		return nil
	},
}

func init() {
	processCmd.Flags().StringVar(&processRecordID, "record", "", "process a single record by id")
	rootCmd.AddCommand(processCmd)
}
