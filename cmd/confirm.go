package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var confirmDeny bool

var confirmCmd = &cobra.Command{
	Use:   "confirm <record-id> <match-id>",
	Short: "Confirm or deny a candidate match",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initApp(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		rec, err := env.Confirmer.ConfirmOrDeny(cmd.Context(), args[0], args[1], !confirmDeny)
		if err != nil {
			return err
		}
		verdict := "confirmed"
		if confirmDeny {
			verdict = "denied"
		}
		fmt.Printf("%s match %s on record %s\n", verdict, args[1], rec.ID)
		return nil
	},
}

func init() {
	confirmCmd.Flags().BoolVar(&confirmDeny, "deny", false, "deny the match instead of confirming it")
	rootCmd.AddCommand(confirmCmd)
}
