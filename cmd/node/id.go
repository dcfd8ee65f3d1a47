package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SWAI-Ltd/multipass/internal/config"
)

func idCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "id",
		Short: "Print the local participant id, creating it if needed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			id, err := cfg.ResolveLocalID()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file (default: ./multipass.yaml)")
	return cmd
}
