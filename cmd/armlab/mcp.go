package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/armtemiy/armlab/internal/cli"
	"github.com/armtemiy/armlab/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes the diagnostic wizard as MCP tools so an assistant can walk a user
through the tree.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			fail("Error loading config: %v", err)
		}
		transport, _ := cmd.Flags().GetString("transport")
		addr, _ := cmd.Flags().GetString("listen")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app, err := cli.Build(ctx, cfg)
		if err != nil {
			fail("Error initializing armlab: %v", err)
		}
		defer app.Close()

		srv := mcp.NewServer(app.Sessions, app.Catalog, mcp.WithLogger(app.Logger.With("component", "mcp")))

		switch transport {
		case "stdio":
			// Ensure logs don't corrupt JSON-RPC on Stdout
			log.SetOutput(os.Stderr)
			app.Logger.Info("Starting armlab MCP server (stdio)")
			if err := srv.ServeStdio(); err != nil {
				app.Logger.Error("MCP server execution failed", "error", err)
			}
		case "sse":
			if err := srv.ServeSSE(ctx, addr); err != nil {
				app.Logger.Error("MCP server execution failed", "error", err)
				return
			}
			app.Logger.Info("MCP server stopped gracefully")
		default:
			fail("Unknown transport: %s. Supported: stdio, sse", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().String("listen", ":8090", "Address to listen on (only for SSE)")
}
