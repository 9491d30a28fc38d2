package main

import (
	"fmt"
	"strings"

	"github.com/armtemiy/armlab"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of armlab",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("armlab version %s\n", strings.TrimSpace(armlab.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
