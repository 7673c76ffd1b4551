package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	submitName     string
	submitAddress  string
	submitCountry  string
	submitUploader string
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a facility record for resolution",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initApp(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		rec, err := env.Pipeline.Submit(cmd.Context(), submitName, submitAddress, submitCountry, submitUploader)
		if err != nil {
			return err
		}
		fmt.Printf("submitted record %s\n", rec.ID)
		return nil
	},
}

func init() {
	submitCmd.Flags().StringVar(&submitName, "name", "", "facility name (required)")
	submitCmd.Flags().StringVar(&submitAddress, "address", "", "facility address")
	submitCmd.Flags().StringVar(&submitCountry, "country", "", "country name or code (required)")
	submitCmd.Flags().StringVar(&submitUploader, "uploader", "", "uploader id (required)")
	submitCmd.MarkFlagRequired("name")     //nolint:errcheck
	submitCmd.MarkFlagRequired("country")  //nolint:errcheck
	submitCmd.MarkFlagRequired("uploader") //nolint:errcheck
	rootCmd.AddCommand(submitCmd)
}
