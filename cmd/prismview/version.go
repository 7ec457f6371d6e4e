package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the prismview version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("prismview", version)
		},
	}
}
