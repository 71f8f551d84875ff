package cmd

import (
	"fmt"
	"os"
	"strings"

	"curlcards-backend/lib/season"
	"curlcards-backend/lib/timezone"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var teamsFlags struct {
	year int
}

func init() {
	teamsCmd.Flags().IntVar(&teamsFlags.year, "year", 0, "season year (default: current season)")
	rootCmd.AddCommand(teamsCmd)
}

var teamsCmd = &cobra.Command{
	Use:   "teams",
	Short: "Print the aggregated league night teams.",
	Run: func(cmd *cobra.Command, args []string) {
		year := teamsFlags.year
		if year == 0 {
			year = season.CurrentYear(timezone.Now())
		}

		store, err := newStore()
		if err != nil {
			fatal("create portal client", err)
		}

		teams, err := season.Teams(cmd.Context(), store, season.Options{
			Year:   year,
			League: config.League,
			Gender: config.Gender,
			Day:    config.Day,
		})
		if err != nil {
			fatal("aggregate season teams", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Skip", "Day", "Time", "Players"})

		for _, team := range teams {
			names := make([]string, len(team.Members))
			for i, member := range team.Members {
				names[i] = member.FullName
				if member.Position != "" {
					names[i] = fmt.Sprintf("%s (%s)", member.FullName, member.Position)
				}
			}
			t.AppendRow(table.Row{team.SkipName, team.Day, team.Time, strings.Join(names, ", ")})
		}

		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
