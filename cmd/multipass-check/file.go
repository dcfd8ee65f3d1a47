package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func fileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "file [path]",
		Short: "Validate one encoded message read from a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if len(args) == 0 || args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}
			reg, err := newCodecs()
			if err != nil {
				return err
			}
			r := inspect(reg, data)
			fmt.Fprintln(cmd.OutOrStdout(), r)
			return r.Err
		},
	}
}
