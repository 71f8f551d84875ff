// Package season turns the portal's flat member and team-record data
// into a roster for one league night, grouped by team.
package season

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"curlcards-backend/lib/rosterstore"
	"curlcards-backend/lib/scrapers/curlingmembers"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("season")

// CurrentYear returns the season year for a point in time. The season
// rolls over in August: January through July still belong to the
// season that started the previous fall.
func CurrentYear(now time.Time) int {
	if now.Month() >= time.August {
		return now.Year()
	}
	return now.Year() - 1
}

type Options struct {
	Year   int
	League string
	// single-letter gender code members must match
	Gender string
	// weekday name matched by substring against the record's Day
	// field, which can combine several weekdays
	Day string
}

type TeamMember struct {
	MemberID  int
	FirstName string
	LastName  string
	FullName  string
	Position  curlingmembers.Position
}

type Team struct {
	SkipName string
	SkipID   int
	Day      string
	Time     string
	League   string
	Season   int
	Members  []TeamMember
}

type candidate struct {
	member curlingmembers.Member
	record curlingmembers.TeamRecord
}

func skipKey(rec curlingmembers.TeamRecord) int {
	if rec.SkipID == nil {
		return 0
	}
	return *rec.SkipID
}

// Teams aggregates the league roster for a season. Members whose team
// records cannot be fetched are logged and skipped; the roster is
// built from everyone else.
func Teams(ctx context.Context, store *rosterstore.Store, opts Options) ([]*Team, error) {
	ctx, span := tracer.Start(ctx, "season:Teams")
	defer span.End()
	span.SetAttributes(
		attribute.Int("year", opts.Year),
		attribute.String("league", opts.League),
	)

	members, err := store.Members(ctx, opts.Year)
	if err != nil {
		return nil, err
	}
	slog.Info("processing members", "count", len(members), "year", opts.Year)

	// first pass: find league members and the team each belongs to,
	// keyed by skip id; the first record seen for a skip id defines
	// the team's fields
	teams := map[int]*Team{}
	var candidates []candidate

	for _, member := range members {
		if member.Gender != opts.Gender {
			continue
		}

		records, err := store.MemberTeams(ctx, member.MemberID, opts.Year)
		if err != nil {
			slog.Warn("skipping member, failed to get team records",
				"member_id", member.MemberID, "err", err)
			continue
		}

		for _, rec := range records {
			if rec.League != opts.League {
				continue
			}
			candidates = append(candidates, candidate{member: member, record: rec})

			key := skipKey(rec)
			if _, seen := teams[key]; !seen {
				teams[key] = &Team{
					SkipName: rec.Skip,
					SkipID:   key,
					Day:      rec.Day,
					Time:     rec.Time,
					League:   rec.League,
					Season:   opts.Year,
				}
			}
			// a member appears once per league
			break
		}
	}
	slog.Info("found league members",
		"league", opts.League, "members", len(candidates), "teams", len(teams))

	// second pass: teams are all known now, so each candidate's
	// position can be recorded against their team
	for _, c := range candidates {
		team, seen := teams[skipKey(c.record)]
		if !seen {
			continue
		}
		team.Members = append(team.Members, TeamMember{
			MemberID:  c.member.MemberID,
			FirstName: c.member.FirstName,
			LastName:  c.member.LastName,
			FullName:  c.member.FullName(),
			Position:  c.record.PositionOf(c.member.MemberID),
		})
	}

	var matched []*Team
	for _, team := range teams {
		if strings.Contains(team.Day, opts.Day) {
			matched = append(matched, team)
		}
	}
	// map iteration order is random, callers get a stable roster
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].SkipName != matched[j].SkipName {
			return matched[i].SkipName < matched[j].SkipName
		}
		return matched[i].SkipID < matched[j].SkipID
	})
	slog.Info("matched league night teams", "day", opts.Day, "teams", len(matched))

	return matched, nil
}
