package rosterstore_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"curlcards-backend/lib/rosterstore"
	"curlcards-backend/lib/scrapers/curlingmembers"
	"curlcards-backend/lib/telemetry"
	"curlcards-backend/lib/testutil"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func intp(v int) *int {
	return &v
}

func TestMemberListWriteOnce(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:rosterstore")
	defer cleanup()
	ctx := context.Background()

	portal := testutil.NewFakePortal(t)
	portal.Members[2024] = []curlingmembers.Member{
		{MemberID: 1, FirstName: "Gordon", LastName: "Hibbert", Gender: "M"},
	}
	store := rosterstore.New(t.TempDir(), portal.Client(t))

	members, err := store.Members(ctx, 2024)
	require.NoError(t, err)
	require.Len(t, members, 1)
	require.Equal(t, 1, portal.MemberRequests)

	// the portal roster changes, the cache does not care
	portal.Members[2024] = nil
	members, err = store.Members(ctx, 2024)
	require.NoError(t, err)
	require.Len(t, members, 1)
	require.Equal(t, 1, portal.MemberRequests)
}

func TestTeamRecordRoundTrip(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:rosterstore")
	defer cleanup()
	ctx := context.Background()

	// the served document carries fields TeamRecord does not model
	// and leaves the other role ids out entirely
	served := `[{"League":"Mansfield","Day":"Wednesday","Time":"6:35/8:45PM","Skip":"Hibbert","SkipID":7,"LeadID":8,"ViceID":9,"Lead":"Dale Kraus","SheetName":"Sheet C"}]`
	want := []curlingmembers.TeamRecord{{
		League: "Mansfield",
		Day:    "Wednesday",
		Time:   "6:35/8:45PM",
		Skip:   "Hibbert",
		SkipID: intp(7),
		LeadID: intp(8),
		ViceID: intp(9),
	}}

	portal := testutil.NewFakePortal(t)
	portal.RawTeams[2024] = map[int]json.RawMessage{7: json.RawMessage(served)}
	root := t.TempDir()

	store := rosterstore.New(root, portal.Client(t))
	got, err := store.MemberTeams(ctx, 7, 2024)
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(want, got))

	// member id keys are strings on disk and the document is cached
	// exactly as the portal sent it: unmodeled fields survive and no
	// null role ids get injected
	contents, err := os.ReadFile(filepath.Join(root, "member_season_teams", "2024.json"))
	require.NoError(t, err)
	var onDisk map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(contents, &onDisk))
	require.Contains(t, onDisk, "7")
	require.Equal(t, served, string(onDisk["7"]))
	require.NotContains(t, string(contents), "SecondID")

	// a fresh store decodes the cached document without refetching
	reloaded := rosterstore.New(root, portal.Client(t))
	got, err = reloaded.MemberTeams(ctx, 7, 2024)
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(want, got))
	require.Equal(t, 1, portal.TeamRequests)
}

func TestMemberListCachesVerbatim(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:rosterstore")
	defer cleanup()
	ctx := context.Background()

	served := `[{"MemberId":1,"FirstName":"Gordon","LastName":"Hibbert","Gender":"M","Email":"gordon@example.com"}]`

	portal := testutil.NewFakePortal(t)
	portal.RawMembers[2024] = json.RawMessage(served)
	root := t.TempDir()

	store := rosterstore.New(root, portal.Client(t))
	members, err := store.Members(ctx, 2024)
	require.NoError(t, err)
	require.Len(t, members, 1)
	require.Equal(t, "Gordon Hibbert", members[0].FullName())

	contents, err := os.ReadFile(filepath.Join(root, "member_jsons", "member_2024.json"))
	require.NoError(t, err)
	require.Equal(t, served, string(contents))
}

func TestTeamRecordsAccumulate(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:rosterstore")
	defer cleanup()
	ctx := context.Background()

	portal := testutil.NewFakePortal(t)
	portal.Teams[2024] = map[int][]curlingmembers.TeamRecord{
		1: {{League: "Mansfield", SkipID: intp(1)}},
		2: {{League: "Open", SkipID: intp(2)}},
	}
	root := t.TempDir()

	store := rosterstore.New(root, portal.Client(t))
	_, err := store.MemberTeams(ctx, 1, 2024)
	require.NoError(t, err)
	_, err = store.MemberTeams(ctx, 2, 2024)
	require.NoError(t, err)

	contents, err := os.ReadFile(filepath.Join(root, "member_season_teams", "2024.json"))
	require.NoError(t, err)
	var onDisk map[string][]curlingmembers.TeamRecord
	require.NoError(t, json.Unmarshal(contents, &onDisk))
	require.Len(t, onDisk, 2)
}

func TestWarmCacheMakesNoRequests(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:rosterstore")
	defer cleanup()
	ctx := context.Background()

	portal := testutil.NewFakePortal(t)
	portal.Members[2024] = []curlingmembers.Member{
		{MemberID: 1, FirstName: "Gordon", LastName: "Hibbert", Gender: "M"},
	}
	portal.Teams[2024] = map[int][]curlingmembers.TeamRecord{
		1: {{League: "Mansfield", SkipID: intp(1)}},
	}
	root := t.TempDir()

	warm := rosterstore.New(root, portal.Client(t))
	_, err := warm.Members(ctx, 2024)
	require.NoError(t, err)
	_, err = warm.MemberTeams(ctx, 1, 2024)
	require.NoError(t, err)
	before := portal.RequestCount()

	store := rosterstore.New(root, portal.Client(t))
	_, err = store.Members(ctx, 2024)
	require.NoError(t, err)
	_, err = store.MemberTeams(ctx, 1, 2024)
	require.NoError(t, err)
	require.Equal(t, before, portal.RequestCount())
}

func TestAvatarCache(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:rosterstore")
	defer cleanup()
	ctx := context.Background()

	portal := testutil.NewFakePortal(t)
	portal.Avatars[1] = testutil.AvatarBytes(4096)
	portal.Avatars[2] = testutil.AvatarBytes(600)
	root := t.TempDir()
	store := rosterstore.New(root, portal.Client(t))

	path, ok := store.Avatar(ctx, 1)
	require.True(t, ok)
	require.Equal(t, filepath.Join(root, "avatars", "1.jpg"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, data, 4096)

	// second lookup is a disk hit
	_, ok = store.Avatar(ctx, 1)
	require.True(t, ok)
	require.Equal(t, 1, portal.AvatarRequests)

	// an undersized payload is "no avatar" and leaves no cache file
	_, ok = store.Avatar(ctx, 2)
	require.False(t, ok)
	_, err = os.Stat(filepath.Join(root, "avatars", "2.jpg"))
	require.True(t, os.IsNotExist(err))

	// a missing photo behaves the same
	_, ok = store.Avatar(ctx, 3)
	require.False(t, ok)
}
