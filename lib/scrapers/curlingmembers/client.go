package curlingmembers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http/cookiejar"
	"os"
	"strconv"
	"time"

	"curlcards-backend/lib/htmlutil"
	"curlcards-backend/lib/restyutil"
	"curlcards-backend/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/curlingmembers")

var ErrLoginFailed = fmt.Errorf("failed to authenticate with the membership portal")

// seasonEpoch is the year the portal numbered its first season.
const seasonEpoch = 2010

const loginPath = "/Account/Login.aspx"

const avatarTimeout = time.Second * 5

// avatarMinBytes is the floor below which a response is the portal's
// placeholder, not a real photo.
const avatarMinBytes = 1000

// the portal's ASP.NET login form round-trips these hidden fields
var loginStateFields = []string{
	"__VIEWSTATE",
	"__VIEWSTATEGENERATOR",
	"__EVENTTARGET",
	"__EVENTARGUMENT",
}

type Client struct {
	http     *resty.Client
	username string
	password string
	loggedIn bool
}

type ClientOptions struct {
	BaseUrl  string
	Username string
	Password string
}

func NewClient(opts ClientOptions) (*Client, error) {
	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	client.SetTimeout(time.Second * 30)

	telemetry.InstrumentResty(client, "scrapers/curlingmembers/http")
	if dir := os.Getenv("MCC_DEBUG_HTTP"); dir != "" {
		output, err := restyutil.NewFilesystemOutput(dir)
		if err != nil {
			return nil, fmt.Errorf("create http transcript dir: %w", err)
		}
		restyutil.InstrumentDebug(client, output)
	}

	if opts.Username == "" || opts.Password == "" {
		slog.Warn("portal credentials are not set, login will fail when a fetch is attempted")
	}

	return &Client{
		http:     client,
		username: opts.Username,
		password: opts.Password,
	}, nil
}

// SeasonID converts a season year to the portal's season id.
func SeasonID(year int) int {
	return year - seasonEpoch
}

// Login performs the portal's ASP.NET form handshake: fetch the login
// page, extract the hidden state fields, then post them back with the
// credentials. There is no retry; a failed login is fatal to the run.
func (c *Client) Login(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:Login")
	defer span.End()

	res, err := c.http.R().
		SetContext(ctx).
		Get(loginPath)
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch login page")
		return err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse login page html")
		return err
	}

	form := htmlutil.HiddenInputs(doc, loginStateFields...)
	if form["__VIEWSTATE"] == "" {
		span.SetStatus(codes.Error, "failed to find login form state")
		return fmt.Errorf("could not find login form state on %s", loginPath)
	}
	form["ctl00$MainContent$LoginUser$UserName"] = c.username
	form["ctl00$MainContent$LoginUser$Password"] = c.password
	form["ctl00$MainContent$LoginUser$LoginButton"] = "Log In"

	res, err = c.http.R().
		SetContext(ctx).
		SetFormData(form).
		Post(loginPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to make login request")
		return err
	}
	if res.IsError() {
		span.SetStatus(codes.Error, ErrLoginFailed.Error())
		if reason := loginFailureText(res.Body()); reason != "" {
			return fmt.Errorf("%w: %s", ErrLoginFailed, reason)
		}
		return fmt.Errorf("%w: status %s", ErrLoginFailed, res.Status())
	}

	slog.Info("portal login successful")
	c.loggedIn = true
	return nil
}

func loginFailureText(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(body))
	if err != nil {
		return ""
	}
	for _, node := range doc.Find("span[id$='FailureText']").Nodes {
		if text := htmlutil.FlattenText(node); text != "" {
			return text
		}
	}
	return ""
}

// the session is established lazily on the first fetch and reused for
// every call after that, it is never refreshed
func (c *Client) ensureSession(ctx context.Context) error {
	if c.loggedIn {
		return nil
	}
	return c.Login(ctx)
}

// FetchMembers returns the decoded member list together with the
// portal's document byte for byte, so callers caching it keep fields
// the Member struct does not model.
func (c *Client) FetchMembers(ctx context.Context, year int) ([]Member, json.RawMessage, error) {
	ctx, span := tracer.Start(ctx, "client:FetchMembers")
	defer span.End()

	if err := c.ensureSession(ctx); err != nil {
		return nil, nil, err
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("seasonid", strconv.Itoa(SeasonID(year))).
		Get("/api/member")
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch member list")
		return nil, nil, err
	}
	if res.IsError() {
		span.SetStatus(codes.Error, "member list request rejected")
		return nil, nil, fmt.Errorf("fetch members for %d: status %s", year, res.Status())
	}

	var members []Member
	err = json.Unmarshal(res.Body(), &members)
	if err != nil {
		span.SetStatus(codes.Error, "failed to decode member list")
		return nil, nil, fmt.Errorf("decode members for %d: %w", year, err)
	}
	return members, json.RawMessage(res.Body()), nil
}

// FetchMemberTeams returns a member's decoded team records and the
// raw document as the portal sent it.
func (c *Client) FetchMemberTeams(ctx context.Context, memberID, year int) ([]TeamRecord, json.RawMessage, error) {
	ctx, span := tracer.Start(ctx, "client:FetchMemberTeams")
	defer span.End()

	if err := c.ensureSession(ctx); err != nil {
		return nil, nil, err
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("season", strconv.Itoa(SeasonID(year))).
		Get(fmt.Sprintf("/api/member/%d/teams/", memberID))
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch team records")
		return nil, nil, err
	}
	if res.IsError() {
		span.SetStatus(codes.Error, "team record request rejected")
		return nil, nil, fmt.Errorf("fetch teams for member %d: status %s", memberID, res.Status())
	}

	var records []TeamRecord
	err = json.Unmarshal(res.Body(), &records)
	if err != nil {
		span.SetStatus(codes.Error, "failed to decode team records")
		return nil, nil, fmt.Errorf("decode teams for member %d: %w", memberID, err)
	}
	return records, json.RawMessage(res.Body()), nil
}

// FetchMemberSeason returns the portal's raw per-member season document.
// Only surfaced through the CLI for inspecting what the portal holds on
// a single member.
func (c *Client) FetchMemberSeason(ctx context.Context, memberID, year int) (json.RawMessage, error) {
	ctx, span := tracer.Start(ctx, "client:FetchMemberSeason")
	defer span.End()

	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}

	res, err := c.http.R().
		SetContext(ctx).
		Get(fmt.Sprintf("/api/member/%d/season/%d", memberID, SeasonID(year)))
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch member season data")
		return nil, err
	}
	if res.IsError() {
		span.SetStatus(codes.Error, "member season request rejected")
		return nil, fmt.Errorf("fetch season data for member %d: status %s", memberID, res.Status())
	}
	return json.RawMessage(res.Body()), nil
}

// FetchAvatar downloads a member's photo. A transport failure is
// returned as an error; a rejected request or a payload under the
// placeholder floor reports ok=false. Both mean "no avatar".
func (c *Client) FetchAvatar(ctx context.Context, memberID, size int) (data []byte, ok bool, err error) {
	ctx, span := tracer.Start(ctx, "client:FetchAvatar")
	defer span.End()

	if err := c.ensureSession(ctx); err != nil {
		return nil, false, err
	}

	ctx, cancel := context.WithTimeout(ctx, avatarTimeout)
	defer cancel()

	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("size", strconv.Itoa(size)).
		Get(fmt.Sprintf("/api/member/%d/image", memberID))
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch avatar")
		return nil, false, err
	}
	if res.StatusCode() != 200 || len(res.Body()) <= avatarMinBytes {
		return nil, false, nil
	}
	return res.Body(), true, nil
}
