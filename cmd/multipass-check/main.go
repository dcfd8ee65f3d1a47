// multipass-check validates encoded messages: either the raw bytes in a file
// (or stdin) or everything flowing through a group session.
//
// Usage:
//
//	multipass-check file message.bin
//	multipass-check watch --relay localhost:6121 --session lobby
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "multipass-check",
		Short:         "Validate multipass wire messages",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(fileCmd(), watchCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
