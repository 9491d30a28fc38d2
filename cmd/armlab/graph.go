package main

import (
	"fmt"

	"github.com/armtemiy/armlab/internal/presentation/graph"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph [tree-file]",
	Short: "Export the tree as a Mermaid diagram",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		tree, err := readTree(args)
		if err != nil {
			fail("Error reading tree: %v", err)
		}
		fmt.Print(graph.GenerateMermaid(tree, nil))
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
