package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/vovakirdan/buzzline-server/internal/auth"
	"github.com/vovakirdan/buzzline-server/internal/config"
)

type fakeProvider struct {
	profile *auth.Profile
	err     error
	codes   []string
}

func (p *fakeProvider) AuthCodeURL(state string) string {
	return "https://accounts.example.com/auth?state=" + url.QueryEscape(state)
}

func (p *fakeProvider) Exchange(_ context.Context, code string) (*auth.Profile, error) {
	p.codes = append(p.codes, code)
	if p.err != nil {
		return nil, p.err
	}
	return p.profile, nil
}

func noRedirectClient() *stdhttp.Client {
	return &stdhttp.Client{
		CheckRedirect: func(*stdhttp.Request, []*stdhttp.Request) error {
			return stdhttp.ErrUseLastResponse
		},
	}
}

func getWithState(t *testing.T, env *testEnv, path, state string) *stdhttp.Response {
	t.Helper()

	req, err := stdhttp.NewRequest(stdhttp.MethodGet, env.server.URL+path, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if state != "" {
		req.AddCookie(&stdhttp.Cookie{Name: oauthStateCookie, Value: state})
	}

	resp, err := noRedirectClient().Do(req)
	if err != nil {
		t.Fatalf("request %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestGoogleLoginRedirectsWithState(t *testing.T) {
	env := startTestServer(t, testConfig(config.ModeAuthenticated), &fakeProvider{})

	resp := getWithState(t, env, "/login/google", "")
	if resp.StatusCode != stdhttp.StatusFound {
		t.Fatalf("expected 302, got %d", resp.StatusCode)
	}

	var state string
	for _, c := range resp.Cookies() {
		if c.Name == oauthStateCookie {
			state = c.Value
		}
	}
	if state == "" {
		t.Fatalf("state cookie not set")
	}

	loc, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	if loc.Host != "accounts.example.com" || loc.Query().Get("state") != state {
		t.Fatalf("unexpected redirect: %s", loc)
	}
}

func TestGoogleLoginNotConfigured(t *testing.T) {
	env := startTestServer(t, testConfig(config.ModeAuthenticated), nil)

	resp := getWithState(t, env, "/login/google", "")
	if resp.StatusCode != stdhttp.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "OAuth client is not configured on server." {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestGoogleCallbackMissingCode(t *testing.T) {
	env := startTestServer(t, testConfig(config.ModeAuthenticated), &fakeProvider{})

	resp := getWithState(t, env, "/api/auth/google/callback", "abc")
	if resp.StatusCode != stdhttp.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "Authorization code not found in callback." {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestGoogleCallbackStateMismatch(t *testing.T) {
	provider := &fakeProvider{profile: &auth.Profile{Email: "ava@x.com", Name: "Ava"}}
	env := startTestServer(t, testConfig(config.ModeAuthenticated), provider)

	resp := getWithState(t, env, "/api/auth/google/callback?code=c1&state=other", "abc")
	if resp.StatusCode != stdhttp.StatusFound {
		t.Fatalf("expected 302, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Location"); got != "https://front.example.com/login?error=auth_failed" {
		t.Fatalf("unexpected redirect: %s", got)
	}
	if len(provider.codes) != 0 {
		t.Fatalf("code exchanged despite state mismatch")
	}
}

func TestGoogleCallbackExchangeFailure(t *testing.T) {
	provider := &fakeProvider{err: errors.New("boom")}
	env := startTestServer(t, testConfig(config.ModeAuthenticated), provider)

	resp := getWithState(t, env, "/api/auth/google/callback?code=c1&state=abc", "abc")
	if got := resp.Header.Get("Location"); got != "https://front.example.com/login?error=auth_failed" {
		t.Fatalf("unexpected redirect: %s", got)
	}
}

func TestGoogleCallbackIssuesToken(t *testing.T) {
	provider := &fakeProvider{profile: &auth.Profile{Email: "ava@x.com", Name: "Ava"}}
	env := startTestServer(t, testConfig(config.ModeAuthenticated), provider)

	resp := getWithState(t, env, "/api/auth/google/callback?code=c1&state=abc", "abc")
	if resp.StatusCode != stdhttp.StatusFound {
		t.Fatalf("expected 302, got %d", resp.StatusCode)
	}

	loc, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	if !strings.HasPrefix(loc.String(), "https://front.example.com/auth/callback?") {
		t.Fatalf("unexpected redirect: %s", loc)
	}

	identity, err := env.verifier.Verify(loc.Query().Get("token"))
	if err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
	if identity.Name != "Ava" || identity.Email != "ava@x.com" {
		t.Fatalf("unexpected identity: %+v", identity)
	}

	user, err := env.store.GetUserByEmail(context.Background(), "ava@x.com")
	if err != nil {
		t.Fatalf("user not recorded: %v", err)
	}
	if user.LoginCount != 1 {
		t.Fatalf("expected 1 login, got %d", user.LoginCount)
	}
}

func TestAPIRequiresBearerToken(t *testing.T) {
	env := startTestServer(t, testConfig(config.ModeAuthenticated), nil)

	cases := []struct {
		name   string
		header string
		reason string
	}{
		{name: "missing", header: "", reason: "missing_token"},
		{name: "wrong scheme", header: "Basic abc", reason: "invalid_token"},
		{name: "garbage", header: "Bearer abc", reason: "invalid_token"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req, _ := stdhttp.NewRequest(stdhttp.MethodGet, env.server.URL+"/api/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := env.server.Client().Do(req)
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != stdhttp.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", resp.StatusCode)
			}
			var body ErrorResponse
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Reason != tc.reason {
				t.Fatalf("expected reason %q, got %q", tc.reason, body.Reason)
			}
		})
	}
}

func TestAPIMeAndOnline(t *testing.T) {
	env := startTestServer(t, testConfig(config.ModeAuthenticated), nil)

	if _, err := env.store.UpsertUser(context.Background(), "ava@x.com", "Ava"); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	token := env.mint(t, "Ava", "ava@x.com")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.dial(ctx, t, token)
	env.waitForPeers(t, 1)

	get := func(path string, out any) {
		t.Helper()
		req, _ := stdhttp.NewRequest(stdhttp.MethodGet, env.server.URL+path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := env.server.Client().Do(req)
		if err != nil {
			t.Fatalf("request %s: %v", path, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != stdhttp.StatusOK {
			t.Fatalf("%s: unexpected status %d", path, resp.StatusCode)
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s: decode: %v", path, err)
		}
	}

	var me MeResponse
	get("/api/me", &me)
	if me.Name != "Ava" || me.Email != "ava@x.com" || me.LoginCount != 1 || me.LastLoginAt == nil {
		t.Fatalf("unexpected me: %+v", me)
	}

	var online OnlineResponse
	get("/api/online", &online)
	if online.Online != 1 {
		t.Fatalf("expected 1 online, got %d", online.Online)
	}
}
