package cmd

import (
	"log/slog"
	"os"

	"curlcards-backend/lib/cards"
	"curlcards-backend/lib/season"
	"curlcards-backend/lib/timezone"

	"github.com/spf13/cobra"
)

var exportFlags struct {
	year     int
	output   string
	noEmbed  bool
	times    []string
	allTimes bool
}

func init() {
	exportCmd.Flags().IntVar(&exportFlags.year, "year", 0, "season year (default: current season)")
	exportCmd.Flags().StringVar(&exportFlags.output, "output", "team_cards.json", "output JSON file path")
	exportCmd.Flags().BoolVar(&exportFlags.noEmbed, "no-embed", false, "reference avatar files instead of embedding them as base64")
	exportCmd.Flags().StringArrayVar(&exportFlags.times, "times", nil, "only include teams drawn at these exact times")
	exportCmd.Flags().BoolVar(&exportFlags.allTimes, "all-times", false, "include teams at every time (overrides --times)")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the league night roster as a team cards JSON document.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		year := exportFlags.year
		if year == 0 {
			year = season.CurrentYear(timezone.Now())
		}

		times := config.Times
		if exportFlags.times != nil {
			times = exportFlags.times
		}
		if exportFlags.allTimes {
			times = nil
		}

		slog.Info("exporting team cards",
			"year", year, "league", config.League, "day", config.Day, "times", times)

		store, err := newStore()
		if err != nil {
			fatal("create portal client", err)
		}

		teams, err := season.Teams(ctx, store, season.Options{
			Year:   year,
			League: config.League,
			Gender: config.Gender,
			Day:    config.Day,
		})
		if err != nil {
			fatal("aggregate season teams", err)
		}
		if len(teams) == 0 {
			slog.Warn("no matching teams found, nothing to export",
				"year", year, "league", config.League, "day", config.Day)
			return
		}

		doc, err := cards.Build(ctx, store, teams, config.League, config.Day, year, cards.Options{
			FilterTimes:  times,
			EmbedAvatars: !exportFlags.noEmbed,
			OutputPath:   exportFlags.output,
		})
		if err != nil {
			fatal("build team cards", err)
		}
		err = cards.Write(doc, exportFlags.output)
		if err != nil {
			fatal("write team cards", err)
		}
	},
}

func fatal(message string, err error) {
	slog.Error(message, "err", err.Error())
	os.Exit(1)
}
