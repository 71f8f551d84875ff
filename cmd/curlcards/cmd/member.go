package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"strconv"

	"curlcards-backend/lib/season"
	"curlcards-backend/lib/timezone"

	"github.com/spf13/cobra"
)

var memberFlags struct {
	year int
}

func init() {
	memberCmd.Flags().IntVar(&memberFlags.year, "year", 0, "season year (default: current season)")
	rootCmd.AddCommand(memberCmd)
}

var memberCmd = &cobra.Command{
	Use:   "member <id>",
	Short: "Dump the portal's raw season record for one member.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		memberID, err := strconv.Atoi(args[0])
		if err != nil {
			return err
		}

		year := memberFlags.year
		if year == 0 {
			year = season.CurrentYear(timezone.Now())
		}

		client, err := newClient()
		if err != nil {
			fatal("create portal client", err)
		}

		raw, err := client.FetchMemberSeason(cmd.Context(), memberID, year)
		if err != nil {
			fatal("fetch member season", err)
		}

		var pretty bytes.Buffer
		err = json.Indent(&pretty, raw, "", "  ")
		if err != nil {
			fatal("format member season", err)
		}
		pretty.WriteByte('\n')
		_, err = pretty.WriteTo(os.Stdout)
		return err
	},
}
