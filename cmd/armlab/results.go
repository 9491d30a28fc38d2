package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/armtemiy/armlab/pkg/adapters/gormstore"
	"github.com/spf13/cobra"
)

type recentResults interface {
	RecentResults(ctx context.Context, limit int) ([]gormstore.DiagnosticResult, error)
}

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "List the latest stored diagnostic results",
	Run: func(cmd *cobra.Command, args []string) {
		app := buildQuiet(cmd)
		defer app.Close()

		store, ok := app.Results.(recentResults)
		if !ok {
			fail("Results are only queryable with a SQL database (sql.dsn)")
		}

		limit, _ := cmd.Flags().GetInt("limit")
		rows, err := store.RecentResults(cmd.Context(), limit)
		if err != nil {
			fail("Error listing results: %v", err)
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "CREATED\tUSER\tTREE\tRESULT\tANSWERS")
		for _, r := range rows {
			user := "-"
			if r.UserID != nil {
				user = *r.UserID
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n",
				r.CreatedAt.Format("2006-01-02 15:04"), user, r.TreeID, r.Result.Title, len(r.Answers))
		}
		tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(resultsCmd)
	resultsCmd.Flags().Int("limit", 20, "Number of results to show")
}
