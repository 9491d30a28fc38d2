package main

import (
	"fmt"

	"github.com/armtemiy/armlab/pkg/catalog"
	"github.com/armtemiy/armlab/pkg/domain"
	"github.com/armtemiy/armlab/pkg/schema"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [tree-file]",
	Short: "Check a diagnostic tree for consistency",
	Long: `Decodes the tree (JSON or YAML; the built-in tree when no file is given)
and reports dangling references, unreachable nodes and empty questions.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		tree, err := readTree(args)
		if err != nil {
			fail("Validation failed: %v", err)
		}

		if err := schema.Lint(tree); err != nil {
			fail("Validation failed: %v", err)
		}
		fmt.Printf("Tree %q is valid! ✅ (%d nodes, %d questions)\n", tree.ID, len(tree.Nodes), tree.QuestionCount())
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func readTree(args []string) (*domain.Tree, error) {
	if len(args) == 0 {
		return catalog.DefaultTree(), nil
	}
	return schema.DecodeFile(args[0])
}
