package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"curlcards-backend/lib/scrapers/curlingmembers"
)

const sessionCookie = ".ASPXAUTH"

// FakePortal is an in-process stand-in for curlingmembers.com: an
// ASP.NET-style login form in front of the member/team/avatar JSON
// endpoints. Request counters let tests assert how often the portal
// was actually hit.
type FakePortal struct {
	Username string
	Password string

	Members map[int][]curlingmembers.Member           // season year -> roster
	Teams   map[int]map[int][]curlingmembers.TeamRecord // season year -> member id -> records
	Avatars map[int][]byte

	// raw response bodies that override the typed fixtures above,
	// for serving fields the structs do not model
	RawMembers map[int]json.RawMessage         // season year -> body
	RawTeams   map[int]map[int]json.RawMessage // season year -> member id -> body

	// member ids whose team endpoint should fail
	BrokenMembers map[int]bool

	LoginRequests  int
	MemberRequests int
	TeamRequests   int
	AvatarRequests int

	server *httptest.Server
}

const loginPage = `<html><body>
<form method="post" action="./Login.aspx">
<input type="hidden" name="__VIEWSTATE" value="dDwtMTY3O8550c9a" />
<input type="hidden" name="__VIEWSTATEGENERATOR" value="C2EE9ABB" />
<input type="hidden" name="__EVENTTARGET" value="" />
<input type="hidden" name="__EVENTARGUMENT" value="" />
<input type="text" name="ctl00$MainContent$LoginUser$UserName" />
<input type="password" name="ctl00$MainContent$LoginUser$Password" />
</form>
</body></html>`

const loginFailedPage = `<html><body>
<span id="ctl00_MainContent_LoginUser_FailureText">Your login attempt was not successful.</span>
</body></html>`

func NewFakePortal(t testing.TB) *FakePortal {
	p := &FakePortal{
		Username:      "statskeeper",
		Password:      "hurry-hard",
		Members:       map[int][]curlingmembers.Member{},
		Teams:         map[int]map[int][]curlingmembers.TeamRecord{},
		Avatars:       map[int][]byte{},
		RawMembers:    map[int]json.RawMessage{},
		RawTeams:      map[int]map[int]json.RawMessage{},
		BrokenMembers: map[int]bool{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /Account/Login.aspx", func(w http.ResponseWriter, r *http.Request) {
		p.LoginRequests++
		fmt.Fprint(w, loginPage)
	})
	mux.HandleFunc("POST /Account/Login.aspx", p.handleLogin)
	mux.HandleFunc("GET /api/member", p.handleMembers)
	mux.HandleFunc("GET /api/member/{id}/teams/", p.handleTeams)
	mux.HandleFunc("GET /api/member/{id}/season/{season}", p.handleMemberSeason)
	mux.HandleFunc("GET /api/member/{id}/image", p.handleAvatar)

	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func (p *FakePortal) URL() string {
	return p.server.URL
}

// Client returns a scraper client pointed at the fake portal with
// matching credentials.
func (p *FakePortal) Client(t testing.TB) *curlingmembers.Client {
	client, err := curlingmembers.NewClient(curlingmembers.ClientOptions{
		BaseUrl:  p.server.URL,
		Username: p.Username,
		Password: p.Password,
	})
	if err != nil {
		t.Fatal(err)
	}
	return client
}

func (p *FakePortal) RequestCount() int {
	return p.MemberRequests + p.TeamRequests + p.AvatarRequests
}

func (p *FakePortal) handleLogin(w http.ResponseWriter, r *http.Request) {
	p.LoginRequests++

	if r.FormValue("__VIEWSTATE") == "" || r.FormValue("__VIEWSTATEGENERATOR") == "" {
		http.Error(w, "missing form state", http.StatusBadRequest)
		return
	}
	user := r.FormValue("ctl00$MainContent$LoginUser$UserName")
	pass := r.FormValue("ctl00$MainContent$LoginUser$Password")
	if user != p.Username || pass != p.Password {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, loginFailedPage)
		return
	}

	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "session-1", Path: "/"})
	fmt.Fprint(w, "<html><body>Welcome</body></html>")
}

func (p *FakePortal) authorized(w http.ResponseWriter, r *http.Request) bool {
	_, err := r.Cookie(sessionCookie)
	if err != nil {
		http.Error(w, "not logged in", http.StatusUnauthorized)
		return false
	}
	return true
}

func (p *FakePortal) handleMembers(w http.ResponseWriter, r *http.Request) {
	p.MemberRequests++
	if !p.authorized(w, r) {
		return
	}
	seasonID, err := strconv.Atoi(r.URL.Query().Get("seasonid"))
	if err != nil {
		http.Error(w, "bad seasonid", http.StatusBadRequest)
		return
	}
	if raw, ok := p.RawMembers[seasonID+2010]; ok {
		w.Write(raw)
		return
	}
	members := p.Members[seasonID+2010]
	if members == nil {
		members = []curlingmembers.Member{}
	}
	json.NewEncoder(w).Encode(members)
}

func (p *FakePortal) handleTeams(w http.ResponseWriter, r *http.Request) {
	p.TeamRequests++
	if !p.authorized(w, r) {
		return
	}
	memberID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.Error(w, "bad member id", http.StatusBadRequest)
		return
	}
	if p.BrokenMembers[memberID] {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	seasonID, err := strconv.Atoi(r.URL.Query().Get("season"))
	if err != nil {
		http.Error(w, "bad season", http.StatusBadRequest)
		return
	}
	if raw, ok := p.RawTeams[seasonID+2010][memberID]; ok {
		w.Write(raw)
		return
	}
	records := p.Teams[seasonID+2010][memberID]
	if records == nil {
		records = []curlingmembers.TeamRecord{}
	}
	json.NewEncoder(w).Encode(records)
}

func (p *FakePortal) handleMemberSeason(w http.ResponseWriter, r *http.Request) {
	if !p.authorized(w, r) {
		return
	}
	memberID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.Error(w, "bad member id", http.StatusBadRequest)
		return
	}
	fmt.Fprintf(w, `{"MemberId":%d,"SeasonId":%s}`, memberID, r.PathValue("season"))
}

func (p *FakePortal) handleAvatar(w http.ResponseWriter, r *http.Request) {
	p.AvatarRequests++
	if !p.authorized(w, r) {
		return
	}
	memberID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.Error(w, "bad member id", http.StatusBadRequest)
		return
	}
	data, ok := p.Avatars[memberID]
	if !ok {
		http.Error(w, "no photo", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(data)
}

// AvatarBytes builds a payload of the given size for avatar fixtures.
func AvatarBytes(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}
