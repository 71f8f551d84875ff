package cards_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"curlcards-backend/lib/cards"
	"curlcards-backend/lib/rosterstore"
	"curlcards-backend/lib/scrapers/curlingmembers"
	"curlcards-backend/lib/season"
	"curlcards-backend/lib/telemetry"
	"curlcards-backend/lib/testutil"

	"github.com/stretchr/testify/require"
)

func fixtureTeams() []*season.Team {
	return []*season.Team{
		{
			SkipName: "Ogland",
			SkipID:   5,
			Day:      "Wednesday",
			Time:     "6:35 PM",
			League:   "Mansfield",
			Season:   2024,
			Members: []season.TeamMember{
				{MemberID: 5, FirstName: "Roy", LastName: "Ogland", FullName: "Roy Ogland", Position: curlingmembers.PositionSkip},
			},
		},
		{
			SkipName: "Hibbert",
			SkipID:   1,
			Day:      "Wednesday",
			Time:     "6:35/8:45PM",
			League:   "Mansfield",
			Season:   2024,
			Members: []season.TeamMember{
				{MemberID: 1, FirstName: "Gordon", LastName: "Hibbert", FullName: "Gordon Hibbert", Position: curlingmembers.PositionSkip},
				{MemberID: 2, FirstName: "Dale", LastName: "Kraus", FullName: "Dale Kraus", Position: curlingmembers.PositionLead},
				{MemberID: 3, FirstName: "Pete", LastName: "Annin", FullName: "Pete Annin", Position: curlingmembers.PositionVice},
				{MemberID: 4, FirstName: "Carl", LastName: "Swanson", FullName: "Carl Swanson", Position: curlingmembers.PositionUnknown},
				{MemberID: 6, FirstName: "Ethan", LastName: "Meyer", FullName: "Ethan Meyer", Position: curlingmembers.PositionSecond},
			},
		},
	}
}

func buildStore(t *testing.T) (*rosterstore.Store, *testutil.FakePortal) {
	portal := testutil.NewFakePortal(t)
	portal.Avatars[1] = testutil.AvatarBytes(4096)
	return rosterstore.New(t.TempDir(), portal.Client(t)), portal
}

func TestBuildSortsTeamsAndPositions(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:cards")
	defer cleanup()

	store, _ := buildStore(t)
	doc, err := cards.Build(context.Background(), store, fixtureTeams(), "Mansfield", "Wednesday", 2024, cards.Options{
		EmbedAvatars: true,
	})
	require.NoError(t, err)

	require.Equal(t, 2024, doc.Season)
	require.Equal(t, "Mansfield", doc.League)
	require.Equal(t, "Wednesday", doc.Day)
	require.NotEmpty(t, doc.GeneratedAt)

	// teams ordered by skip name
	require.Len(t, doc.Teams, 2)
	require.Equal(t, "Hibbert", doc.Teams[0].TeamName)
	require.Equal(t, "Ogland", doc.Teams[1].TeamName)

	// members ordered lead, second, vice, skip, then unknown last
	var order []int
	for _, m := range doc.Teams[0].Members {
		order = append(order, m.MemberID)
	}
	require.Equal(t, []int{2, 6, 3, 1, 4}, order)
}

func TestBuildTimeFilter(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:cards")
	defer cleanup()

	store, _ := buildStore(t)
	ctx := context.Background()

	doc, err := cards.Build(ctx, store, fixtureTeams(), "Mansfield", "Wednesday", 2024, cards.Options{
		FilterTimes: []string{"6:35/8:45PM"},
	})
	require.NoError(t, err)
	require.Len(t, doc.Teams, 1)
	require.Equal(t, "Hibbert", doc.Teams[0].TeamName)

	// no filter keeps everything
	doc, err = cards.Build(ctx, store, fixtureTeams(), "Mansfield", "Wednesday", 2024, cards.Options{})
	require.NoError(t, err)
	require.Len(t, doc.Teams, 2)
}

func TestBuildEmbeddedAvatars(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:cards")
	defer cleanup()

	store, _ := buildStore(t)
	doc, err := cards.Build(context.Background(), store, fixtureTeams(), "Mansfield", "Wednesday", 2024, cards.Options{
		EmbedAvatars: true,
	})
	require.NoError(t, err)

	hibbert := doc.Teams[0]
	for _, m := range hibbert.Members {
		if m.MemberID == 1 {
			var uri string
			require.NoError(t, json.Unmarshal(m.Avatar, &uri))
			require.True(t, strings.HasPrefix(uri, "data:image/jpeg;base64,"))
		} else {
			// members without a photo carry an explicit null
			require.Equal(t, "null", string(m.Avatar))
		}
		require.Empty(t, m.AvatarPath)
	}
}

func TestBuildAvatarPaths(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:cards")
	defer cleanup()

	store, _ := buildStore(t)
	outDir := t.TempDir()
	doc, err := cards.Build(context.Background(), store, fixtureTeams(), "Mansfield", "Wednesday", 2024, cards.Options{
		OutputPath: filepath.Join(outDir, "site", "team_cards.json"),
	})
	require.NoError(t, err)

	for _, m := range doc.Teams[0].Members {
		if m.MemberID == 1 {
			require.Nil(t, m.Avatar)
			require.True(t, strings.HasSuffix(m.AvatarPath, filepath.Join("avatars", "1.jpg")))
		} else {
			require.Equal(t, "null", string(m.Avatar))
			require.Empty(t, m.AvatarPath)
		}
	}
}

func TestWrite(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:cards")
	defer cleanup()

	store, _ := buildStore(t)
	doc, err := cards.Build(context.Background(), store, fixtureTeams(), "Mansfield", "Wednesday", 2024, cards.Options{
		EmbedAvatars: true,
	})
	require.NoError(t, err)

	outputPath := filepath.Join(t.TempDir(), "out", "team_cards.json")
	require.NoError(t, cards.Write(doc, outputPath))

	contents, err := os.ReadFile(outputPath)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(contents, &decoded))
	require.Equal(t, "Mansfield", decoded["league"])
	require.Contains(t, decoded, "generated_at")

	teams := decoded["teams"].([]any)
	require.Len(t, teams, 2)
	member := teams[1].(map[string]any)["members"].([]any)[0].(map[string]any)
	require.Contains(t, member, "avatar")
	require.Nil(t, member["avatar"])

	// an unfilled roster slot is a null position, a filled one is
	// the slot name
	hibbert := teams[0].(map[string]any)["members"].([]any)
	carl := hibbert[4].(map[string]any)
	require.Equal(t, float64(4), carl["member_id"])
	require.Contains(t, carl, "position")
	require.Nil(t, carl["position"])
	require.Equal(t, "Lead", hibbert[0].(map[string]any)["position"])
}
