package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect and clean up stored wizard sessions",
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List stored sessions with their position in the tree",
	Run: func(cmd *cobra.Command, args []string) {
		app := buildQuiet(cmd)
		defer app.Close()

		ids, err := app.Sessions.List(cmd.Context())
		if err != nil {
			fail("Error listing sessions: %v", err)
		}
		if len(ids) == 0 {
			fmt.Println("No sessions stored.")
			return
		}
		sort.Strings(ids)

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SESSION\tTREE\tREV\tNODE\tANSWERS\tUPDATED")
		for _, id := range ids {
			state, err := app.Sessions.Load(cmd.Context(), id)
			if err != nil {
				fmt.Fprintf(tw, "%s\t?\t?\t?\t?\t%v\n", id, err)
				continue
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d\t%s\n", id, state.TreeID, state.TreeRevision,
				state.CurrentNodeID, len(state.Answers), state.UpdatedAt.Format("2006-01-02 15:04"))
		}
		tw.Flush()
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Print the stored state of a session as JSON",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		app := buildQuiet(cmd)
		defer app.Close()

		state, err := app.Sessions.Load(cmd.Context(), args[0])
		if err != nil {
			fail("Error loading session %q: %v", args[0], err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(state); err != nil {
			fail("Error encoding state: %v", err)
		}
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm [session-id...]",
	Short: "Remove sessions (all of them with --all)",
	Run: func(cmd *cobra.Command, args []string) {
		all, _ := cmd.Flags().GetBool("all")
		if all == (len(args) > 0) {
			fail("Pass either session ids or --all")
		}

		app := buildQuiet(cmd)
		defer app.Close()

		ids := args
		if all {
			var err error
			if ids, err = app.Sessions.List(cmd.Context()); err != nil {
				fail("Error listing sessions: %v", err)
			}
		}

		failed := 0
		for _, id := range ids {
			if err := app.Sessions.Delete(cmd.Context(), id); err != nil {
				fmt.Fprintf(os.Stderr, "Error removing %q: %v\n", id, err)
				failed++
				continue
			}
			fmt.Printf("Removed session %q\n", id)
		}
		if failed > 0 {
			app.Close()
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd, sessionInspectCmd, sessionRmCmd)
	sessionRmCmd.Flags().Bool("all", false, "Remove every stored session")
}
