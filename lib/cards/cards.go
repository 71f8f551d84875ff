// Package cards reshapes an aggregated league roster into the JSON
// document consumed by the static team-cards page.
package cards

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"time"

	"curlcards-backend/lib/rosterstore"
	"curlcards-backend/lib/scrapers/curlingmembers"
	"curlcards-backend/lib/season"
	"curlcards-backend/lib/timezone"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("cards")

// display order on a card, unrecognized positions sort last
var positionRank = map[curlingmembers.Position]int{
	curlingmembers.PositionLead:   1,
	curlingmembers.PositionSecond: 2,
	curlingmembers.PositionVice:   3,
	curlingmembers.PositionSkip:   4,
	curlingmembers.PositionFifth:  5,
}

const unknownPositionRank = 99

type Options struct {
	// keep only teams whose Time is exactly one of these; empty
	// means no time filtering
	FilterTimes []string
	// inline avatars as base64 data uris instead of referencing
	// files relative to the output path
	EmbedAvatars bool
	OutputPath   string
}

type Document struct {
	Season      int        `json:"season"`
	League      string     `json:"league"`
	Day         string     `json:"day"`
	GeneratedAt string     `json:"generated_at"`
	Teams       []TeamCard `json:"teams"`
}

type TeamCard struct {
	TeamName string       `json:"team_name"`
	SkipID   int          `json:"skip_id"`
	Day      string       `json:"day"`
	Time     string       `json:"time"`
	League   string       `json:"league"`
	Season   int          `json:"season"`
	Members  []MemberCard `json:"members"`
}

type MemberCard struct {
	MemberID  int                     `json:"member_id"`
	FirstName string                  `json:"first_name"`
	LastName  string                  `json:"last_name"`
	FullName  string                  `json:"full_name"`
	Position  curlingmembers.Position `json:"position"`
	// a data uri when embedding, an explicit null when the member
	// has no avatar, omitted when avatar_path is used instead
	Avatar     json.RawMessage `json:"avatar,omitempty"`
	AvatarPath string          `json:"avatar_path,omitempty"`
}

// Build assembles the display document: teams filtered by time slot
// and sorted by skip name, members sorted by position, avatars
// attached from the store.
func Build(ctx context.Context, store *rosterstore.Store, teams []*season.Team, league, day string, year int, opts Options) (*Document, error) {
	ctx, span := tracer.Start(ctx, "cards:Build")
	defer span.End()

	kept := filterByTime(teams, opts.FilterTimes)
	slog.Info("building team cards",
		"teams", len(kept), "filtered_out", len(teams)-len(kept))

	// one avatar lookup per member, even when rosters overlap
	avatarPaths := map[int]string{}
	for _, team := range kept {
		for _, member := range team.Members {
			if _, done := avatarPaths[member.MemberID]; done {
				continue
			}
			path, ok := store.Avatar(ctx, member.MemberID)
			if !ok {
				path = ""
			}
			avatarPaths[member.MemberID] = path
		}
	}

	doc := &Document{
		Season:      year,
		League:      league,
		Day:         day,
		GeneratedAt: timezone.Now().Format(time.RFC3339),
	}
	for _, team := range kept {
		card, err := buildTeamCard(team, avatarPaths, opts)
		if err != nil {
			span.SetStatus(codes.Error, "failed to build team card")
			return nil, err
		}
		doc.Teams = append(doc.Teams, card)
	}

	sort.Slice(doc.Teams, func(i, j int) bool {
		return doc.Teams[i].TeamName < doc.Teams[j].TeamName
	})
	return doc, nil
}

func filterByTime(teams []*season.Team, times []string) []*season.Team {
	if len(times) == 0 {
		return teams
	}
	var kept []*season.Team
	for _, team := range teams {
		if slices.Contains(times, team.Time) {
			kept = append(kept, team)
		}
	}
	return kept
}

func rank(p curlingmembers.Position) int {
	r, known := positionRank[p]
	if !known {
		return unknownPositionRank
	}
	return r
}

func buildTeamCard(team *season.Team, avatarPaths map[int]string, opts Options) (TeamCard, error) {
	members := make([]season.TeamMember, len(team.Members))
	copy(members, team.Members)
	sort.SliceStable(members, func(i, j int) bool {
		return rank(members[i].Position) < rank(members[j].Position)
	})

	card := TeamCard{
		TeamName: team.SkipName,
		SkipID:   team.SkipID,
		Day:      team.Day,
		Time:     team.Time,
		League:   team.League,
		Season:   team.Season,
	}
	for _, member := range members {
		memberCard := MemberCard{
			MemberID:  member.MemberID,
			FirstName: member.FirstName,
			LastName:  member.LastName,
			FullName:  member.FullName,
			Position:  member.Position,
		}
		err := attachAvatar(&memberCard, avatarPaths[member.MemberID], opts)
		if err != nil {
			return TeamCard{}, err
		}
		card.Members = append(card.Members, memberCard)
	}
	return card, nil
}

func attachAvatar(card *MemberCard, avatarPath string, opts Options) error {
	if avatarPath == "" {
		card.Avatar = json.RawMessage("null")
		return nil
	}

	if opts.EmbedAvatars {
		uri, err := avatarDataURI(avatarPath)
		if err != nil {
			slog.Warn("failed to embed avatar", "path", avatarPath, "err", err)
			card.Avatar = json.RawMessage("null")
			return nil
		}
		encoded, err := json.Marshal(uri)
		if err != nil {
			return err
		}
		card.Avatar = encoded
		return nil
	}

	rel, err := filepath.Rel(filepath.Dir(opts.OutputPath), avatarPath)
	if err != nil {
		return fmt.Errorf("relative avatar path for %s: %w", avatarPath, err)
	}
	card.AvatarPath = rel
	return nil
}

func avatarDataURI(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data), nil
}

// Write renders the document with two-space indentation and replaces
// the output file in place, creating directories as needed.
func Write(doc *Document, outputPath string) error {
	contents, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	err = os.MkdirAll(filepath.Dir(outputPath), 0755)
	if err != nil {
		return err
	}
	err = os.WriteFile(outputPath, contents, 0644)
	if err != nil {
		return fmt.Errorf("write team cards to %s: %w", outputPath, err)
	}

	players := 0
	for _, team := range doc.Teams {
		players += len(team.Members)
	}
	slog.Info("generated team cards",
		"output", outputPath, "teams", len(doc.Teams), "players", players)
	return nil
}
