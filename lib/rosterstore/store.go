// Package rosterstore is a read-through disk cache in front of the
// membership portal. It holds three independent stores under one root
// directory: per-year member lists, per-year team-record documents and
// per-member avatar images. Nothing expires; invalidation is deleting
// the files by hand.
package rosterstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"curlcards-backend/lib/scrapers/curlingmembers"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("rosterstore")

const (
	memberListDir     = "member_jsons"
	teamRecordDir     = "member_season_teams"
	avatarDir         = "avatars"
	defaultAvatarSize = 150
)

type Store struct {
	root   string
	client *curlingmembers.Client

	// per-year team record documents, loaded from disk at most once.
	// values stay raw so the cache preserves the portal's documents
	// byte for byte, fields the TeamRecord struct does not model
	// included; keys are the decimal member id, as on disk
	teamDocs map[int]map[string]json.RawMessage
}

func New(root string, client *curlingmembers.Client) *Store {
	return &Store{
		root:     root,
		client:   client,
		teamDocs: map[int]map[string]json.RawMessage{},
	}
}

func (s *Store) memberListPath(year int) string {
	return filepath.Join(s.root, memberListDir, fmt.Sprintf("member_%d.json", year))
}

func (s *Store) teamRecordPath(year int) string {
	return filepath.Join(s.root, teamRecordDir, fmt.Sprintf("%d.json", year))
}

func (s *Store) AvatarPath(memberID int) string {
	return filepath.Join(s.root, avatarDir, fmt.Sprintf("%d.jpg", memberID))
}

// Members returns the member list for a season, fetching and caching
// it on the first call for a year. A cached list is never re-fetched,
// however stale.
func (s *Store) Members(ctx context.Context, year int) ([]curlingmembers.Member, error) {
	ctx, span := tracer.Start(ctx, "store:Members")
	defer span.End()

	path := s.memberListPath(year)
	contents, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		slog.Info("downloading member list", "year", year)
		members, raw, err := s.client.FetchMembers(ctx, year)
		if err != nil {
			span.SetStatus(codes.Error, "failed to fetch member list")
			return nil, err
		}
		// the portal's document is cached as fetched, not a
		// re-marshal of the decoded structs
		err = writeFile(path, raw)
		if err != nil {
			span.SetStatus(codes.Error, "failed to write member list cache")
			return nil, fmt.Errorf("cache member list for %d: %w", year, err)
		}
		return members, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read member list cache for %d: %w", year, err)
	}

	var members []curlingmembers.Member
	err = json.Unmarshal(contents, &members)
	if err != nil {
		return nil, fmt.Errorf("decode member list cache for %d: %w", year, err)
	}
	return members, nil
}

// MemberTeams returns one member's team records, fetching on a miss
// and merging the portal's raw document into the year's cache, which
// is then rewritten whole. Records are only decoded on the way out;
// what hits the disk is what the portal sent.
func (s *Store) MemberTeams(ctx context.Context, memberID, year int) ([]curlingmembers.TeamRecord, error) {
	ctx, span := tracer.Start(ctx, "store:MemberTeams")
	defer span.End()

	doc, err := s.teamDoc(year)
	if err != nil {
		return nil, err
	}

	key := strconv.Itoa(memberID)
	if raw, cached := doc[key]; cached {
		var records []curlingmembers.TeamRecord
		err = json.Unmarshal(raw, &records)
		if err != nil {
			return nil, fmt.Errorf("decode cached teams for member %d: %w", memberID, err)
		}
		return records, nil
	}

	slog.Info("downloading team records", "member_id", memberID, "year", year)
	records, raw, err := s.client.FetchMemberTeams(ctx, memberID, year)
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch team records")
		return nil, err
	}

	doc[key] = raw
	contents, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	err = writeFile(s.teamRecordPath(year), contents)
	if err != nil {
		span.SetStatus(codes.Error, "failed to write team record cache")
		return nil, fmt.Errorf("cache team records for %d: %w", year, err)
	}
	return records, nil
}

func (s *Store) teamDoc(year int) (map[string]json.RawMessage, error) {
	doc, loaded := s.teamDocs[year]
	if loaded {
		return doc, nil
	}

	doc = map[string]json.RawMessage{}
	contents, err := os.ReadFile(s.teamRecordPath(year))
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read team record cache for %d: %w", year, err)
	}
	if len(contents) > 0 {
		err = json.Unmarshal(contents, &doc)
		if err != nil {
			return nil, fmt.Errorf("decode team record cache for %d: %w", year, err)
		}
	}

	s.teamDocs[year] = doc
	return doc, nil
}

// Avatar returns the on-disk path of a member's photo, downloading it
// first when it isn't cached yet. Any failure to produce a photo is
// reported as absence; a failed download is never cached.
func (s *Store) Avatar(ctx context.Context, memberID int) (string, bool) {
	ctx, span := tracer.Start(ctx, "store:Avatar")
	defer span.End()

	path := s.AvatarPath(memberID)
	_, err := os.Stat(path)
	if err == nil {
		return path, true
	}

	data, ok, err := s.client.FetchAvatar(ctx, memberID, defaultAvatarSize)
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch avatar")
		slog.Warn("failed to download avatar", "member_id", memberID, "err", err)
		return "", false
	}
	if !ok {
		return "", false
	}

	err = writeFile(path, data)
	if err != nil {
		span.SetStatus(codes.Error, "failed to write avatar cache")
		slog.Warn("failed to cache avatar", "member_id", memberID, "err", err)
		return "", false
	}
	slog.Info("downloaded avatar", "member_id", memberID)
	return path, true
}

func writeFile(path string, contents []byte) error {
	err := os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return err
	}
	return os.WriteFile(path, contents, 0644)
}
