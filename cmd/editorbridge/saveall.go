package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSaveAllCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "save-all",
		Short: "Ask the running editor to save every modified file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.client().SaveAll(cmd.Context())
			if err != nil {
				return fmt.Errorf("save-all: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), res.Body)
			return err
		},
	}
}
