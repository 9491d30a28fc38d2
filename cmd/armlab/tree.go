package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/armtemiy/armlab/internal/cli"
	"github.com/armtemiy/armlab/pkg/schema"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Manage the active diagnostic tree",
}

var treeExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print the active tree (the admin override when one is stored)",
	Run: func(cmd *cobra.Command, args []string) {
		app := buildQuiet(cmd)
		defer app.Close()

		data, err := schema.Encode(app.Catalog.Current().Tree)
		if err != nil {
			fail("Error encoding tree: %v", err)
		}

		if format, _ := cmd.Flags().GetString("format"); format == "yaml" {
			var doc any
			if err := json.Unmarshal(data, &doc); err != nil {
				fail("Error encoding tree: %v", err)
			}
			if data, err = yaml.Marshal(doc); err != nil {
				fail("Error encoding tree: %v", err)
			}
		}
		os.Stdout.Write(data)
	},
}

var treeImportCmd = &cobra.Command{
	Use:   "import <tree-file>",
	Short: "Install a tree file as the admin override",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		tree, err := schema.DecodeFile(args[0])
		if err != nil {
			fail("Error reading tree: %v", err)
		}

		app := buildQuiet(cmd)
		defer app.Close()

		ref, err := app.Catalog.Replace(cmd.Context(), tree)
		if err != nil {
			fail("Import failed: %v", err)
		}
		if lint := schema.Lint(tree); lint != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", lint)
		}
		fmt.Printf("Installed tree %q\n", ref.Tree.ID)
	},
}

var treeResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop the admin override and return to the built-in tree",
	Run: func(cmd *cobra.Command, args []string) {
		app := buildQuiet(cmd)
		defer app.Close()

		ref, err := app.Catalog.Reset(cmd.Context())
		if err != nil {
			fail("Reset failed: %v", err)
		}
		fmt.Printf("Active tree is now %q\n", ref.Tree.ID)
	},
}

func init() {
	rootCmd.AddCommand(treeCmd)
	treeCmd.AddCommand(treeExportCmd)
	treeCmd.AddCommand(treeImportCmd)
	treeCmd.AddCommand(treeResetCmd)
	treeExportCmd.Flags().String("format", "json", "Output format (json, yaml)")
}

// buildQuiet wires the application with warnings only, for one-shot commands.
func buildQuiet(cmd *cobra.Command) *cli.App {
	cfg, err := loadConfig(cmd)
	if err != nil {
		fail("Error loading config: %v", err)
	}
	if !cmd.Flags().Changed("log-level") {
		cfg.Log.Level = "error"
	}
	cfg.Log.Format = "text"

	app, err := cli.Build(cmd.Context(), cfg)
	if err != nil {
		fail("Error initializing armlab: %v", err)
	}
	return app
}
