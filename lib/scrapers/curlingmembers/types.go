package curlingmembers

import (
	"encoding/json"
	"fmt"
)

// Member is one row of the portal's season member list.
type Member struct {
	MemberID  int    `json:"MemberId"`
	FirstName string `json:"FirstName"`
	LastName  string `json:"LastName"`
	Gender    string `json:"Gender"`
}

func (m Member) FullName() string {
	return fmt.Sprintf("%s %s", m.FirstName, m.LastName)
}

// TeamRecord is a member's team assignment within a season. A member
// carries one record per league they play in. Role ids are null in the
// portal's JSON when the roster slot is unfilled.
type TeamRecord struct {
	League   string `json:"League"`
	Day      string `json:"Day"`
	Time     string `json:"Time"`
	Skip     string `json:"Skip"`
	SkipID   *int   `json:"SkipID"`
	LeadID   *int   `json:"LeadID"`
	SecondID *int   `json:"SecondID"`
	ViceID   *int   `json:"ViceID"`
	FifthID  *int   `json:"FifthID"`
}

type Position string

const (
	PositionLead    Position = "Lead"
	PositionSecond  Position = "Second"
	PositionVice    Position = "Vice"
	PositionSkip    Position = "Skip"
	PositionFifth   Position = "Fifth"
	PositionUnknown Position = ""
)

// An unknown position serializes as null, not "", since that is the
// shape the display page checks for.
func (p Position) MarshalJSON() ([]byte, error) {
	if p == PositionUnknown {
		return []byte("null"), nil
	}
	return json.Marshal(string(p))
}

func idMatches(roleID *int, memberID int) bool {
	return roleID != nil && *roleID == memberID
}

// PositionOf determines which roster slot a member occupies on a team
// record. When upstream data is inconsistent and a member id appears in
// more than one slot, the first match in Lead > Second > Vice > Skip >
// Fifth order wins.
func (r TeamRecord) PositionOf(memberID int) Position {
	switch {
	case idMatches(r.LeadID, memberID):
		return PositionLead
	case idMatches(r.SecondID, memberID):
		return PositionSecond
	case idMatches(r.ViceID, memberID):
		return PositionVice
	case idMatches(r.SkipID, memberID):
		return PositionSkip
	case idMatches(r.FifthID, memberID):
		return PositionFifth
	}
	return PositionUnknown
}
