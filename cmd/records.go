package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var recordsLimit int

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Inspect candidate records",
}

var recordsGetCmd = &cobra.Command{
	Use:   "get <record-id>",
	Short: "Print one record with its matches as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initApp(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		rec, err := env.Store.GetRecord(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	},
}

var recordsPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List unprocessed records",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initApp(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		records, err := env.Store.ListPendingRecords(cmd.Context(), recordsLimit)
		if err != nil {
			return err
		}
		for _, rec := range records {
			fmt.Printf("%s\t%s\t%s\t%s\n", rec.ID, rec.RawName, rec.RawCountry, rec.CreatedAt.Format("2006-01-02 15:04"))
		}
		fmt.Printf("%d pending\n", len(records))
		return nil
	},
}

func init() {
	recordsPendingCmd.Flags().IntVar(&recordsLimit, "limit", 100, "maximum records to list")
	recordsCmd.AddCommand(recordsGetCmd)
	recordsCmd.AddCommand(recordsPendingCmd)
	rootCmd.AddCommand(recordsCmd)
}
