package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/punchamoorthee/horus/internal/domain"
	"github.com/punchamoorthee/horus/internal/service"
	"github.com/punchamoorthee/horus/internal/store"
)

const fixedNowMs = int64(1_700_000_000_000)

func newTestServer(t *testing.T, adminToken string, names ...string) (*httptest.Server, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore()
	for _, name := range names {
		if _, err := s.CreateAccount(context.Background(), domain.NewProfile(name, "", time.UnixMilli(0)), "hash"); err != nil {
			t.Fatalf("create account %q: %v", name, err)
		}
	}

	now := func() time.Time { return time.UnixMilli(fixedNowMs) }
	h := NewHandler(Services{
		Store:       s,
		Duels:       service.NewDuelService(s, time.Hour, service.WithClock(now)),
		Accounts:    service.NewAccountService(s, nil),
		Ranking:     service.NewRankingService(s),
		Friends:     service.NewFriendService(s, nil),
		Tournaments: service.NewTournamentService(s, nil),
	}, Options{AdminToken: adminToken, RequestTimeout: time.Second})

	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	return srv, s
}

func doJSON(t *testing.T, srv *httptest.Server, method, path string, body any, header http.Header) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req, err := http.NewRequest(method, srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("%s %s: decode response: %v", method, path, err)
	}
	return resp.StatusCode, out
}

func TestDuelLifecycleOverHTTP(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, "", "ken", "ryu")

	status, body := doJSON(t, srv, "POST", "/duel/send", map[string]any{"username": "ken", "toUsername": "ryu"}, nil)
	if status != http.StatusOK || body["ok"] != true {
		t.Fatalf("send = %d %v, want ok", status, body)
	}
	duel := body["duel"].(map[string]any)
	if duel["from"] != "ken" || duel["to"] != "ryu" || duel["status"] != "pending" {
		t.Fatalf("duel = %v, want ken -> ryu pending", duel)
	}
	if duel["createdAt"] != float64(fixedNowMs) || duel["expiresAt"] != float64(fixedNowMs+time.Hour.Milliseconds()) {
		t.Fatalf("duel times = %v / %v, want epoch ms", duel["createdAt"], duel["expiresAt"])
	}
	id := duel["id"]

	_, body = doJSON(t, srv, "POST", "/duel/send", map[string]any{"username": "ken", "toUsername": "ryu"}, nil)
	if body["ok"] != false || body["error"] != "ALREADY_IN_DUEL" {
		t.Fatalf("second send = %v, want ALREADY_IN_DUEL", body)
	}

	_, body = doJSON(t, srv, "POST", "/duel/accept", map[string]any{"username": "ryu", "duelId": id}, nil)
	if body["ok"] != true || body["duel"].(map[string]any)["status"] != "accepted" {
		t.Fatalf("accept = %v, want accepted duel", body)
	}

	_, body = doJSON(t, srv, "GET", "/duel/current/ken", nil, nil)
	if body["id"] != id || body["status"] != "accepted" {
		t.Fatalf("current = %v, want accepted duel %v", body, id)
	}

	_, body = doJSON(t, srv, "POST", "/duel/report", map[string]any{"duelId": id, "player": "ken", "result": "win"}, nil)
	if body["ok"] != true {
		t.Fatalf("ken report = %v, want ok", body)
	}

	_, body = doJSON(t, srv, "GET", "/duel/check/1", nil, nil)
	if body["finished"] != false {
		t.Fatalf("check with one report = %v, want finished false", body)
	}

	_, body = doJSON(t, srv, "POST", "/duel/report", map[string]any{"duelId": id, "player": "ryu", "result": "loss"}, nil)
	if body["ok"] != true {
		t.Fatalf("ryu report = %v, want ok", body)
	}

	_, body = doJSON(t, srv, "GET", "/duel/check/1", nil, nil)
	if body["finished"] != true || body["winner"] != "ken" || body["loser"] != "ryu" {
		t.Fatalf("check = %v, want ken beats ryu", body)
	}
	if _, ok := body["invalid"]; ok {
		t.Fatalf("check = %v, want no invalid key", body)
	}
}

func TestCurrentDuelIsNullWhenIdle(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, "", "ken")

	resp, err := srv.Client().Get(srv.URL + "/duel/current/ken")
	if err != nil {
		t.Fatalf("get current: %v", err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	if got := strings.TrimSpace(buf.String()); got != "null" {
		t.Fatalf("current body = %q, want null", got)
	}
}

func TestDuelErrorCodes(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, "", "ken", "ryu")

	tests := []struct {
		name string
		path string
		body any
		want string
	}{
		{name: "not logged", path: "/duel/send", body: map[string]any{"toUsername": "ryu"}, want: "NOT_LOGGED"},
		{name: "self", path: "/duel/send", body: map[string]any{"username": "ken", "toUsername": "ken"}, want: "INVALID_DUEL"},
		{name: "unknown opponent", path: "/duel/send", body: map[string]any{"username": "ken", "toUsername": "akuma"}, want: "USER_NOT_FOUND"},
		{name: "accept missing duel", path: "/duel/accept", body: map[string]any{"username": "ryu", "duelId": 99}, want: "DUEL_NOT_FOUND"},
	}
	for _, tt := range tests {
		status, body := doJSON(t, srv, "POST", tt.path, tt.body, nil)
		if status != http.StatusOK || body["ok"] != false || body["error"] != tt.want {
			t.Fatalf("%s = %d %v, want ok:false error %s", tt.name, status, body, tt.want)
		}
	}

	_, body := doJSON(t, srv, "POST", "/duel/report", map[string]any{"duelId": 99, "player": "ken", "result": "win"}, nil)
	if body["ok"] != false {
		t.Fatalf("report on missing duel = %v, want ok false", body)
	}

	_, body = doJSON(t, srv, "GET", "/duel/check/abc", nil, nil)
	if body["finished"] != false {
		t.Fatalf("check with bad id = %v, want finished false", body)
	}
}

func TestMalformedBodyIsBadRequest(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, "", "ken")

	status, body := doJSON(t, srv, "POST", "/duel/send", "{not json", nil)
	if status != http.StatusBadRequest || body["error"] != codeBadRequest {
		t.Fatalf("malformed = %d %v, want 400 %s", status, body, codeBadRequest)
	}
}

func TestExpireRequiresAdminToken(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, "s3cret", "ken", "ryu")

	_, body := doJSON(t, srv, "POST", "/duel/send", map[string]any{"username": "ken", "toUsername": "ryu"}, nil)
	id := body["duel"].(map[string]any)["id"]

	status, _ := doJSON(t, srv, "POST", "/duel/expire", map[string]any{"duelId": id}, nil)
	if status != http.StatusForbidden {
		t.Fatalf("expire without token = %d, want %d", status, http.StatusForbidden)
	}

	status, body = doJSON(t, srv, "POST", "/duel/expire", map[string]any{"duelId": id},
		http.Header{adminTokenHeader: []string{"s3cret"}})
	if status != http.StatusOK || body["ok"] != true {
		t.Fatalf("expire with token = %d %v, want ok", status, body)
	}

	_, body = doJSON(t, srv, "POST", "/duel/send", map[string]any{"username": "ryu", "toUsername": "ken"}, nil)
	if body["ok"] != true {
		t.Fatalf("send after expire = %v, want ok", body)
	}
}

func TestAccountRoutes(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, "")

	_, body := doJSON(t, srv, "POST", "/register", map[string]any{"username": "ken", "password": "shoryuken", "email": "ken@example.com"}, nil)
	if body["success"] != true || body["user"] != "ken" {
		t.Fatalf("register = %v, want success for ken", body)
	}
	_, body = doJSON(t, srv, "POST", "/register", map[string]any{"username": "ken", "password": "x"}, nil)
	if body["success"] != false || body["error"] != "USER_Already_Exists" {
		t.Fatalf("duplicate register = %v, want USER_Already_Exists", body)
	}

	_, body = doJSON(t, srv, "POST", "/login", map[string]any{"username": "ken", "password": "hadouken"}, nil)
	if body["success"] != false || body["error"] != "PSSW_ERROR" {
		t.Fatalf("wrong password login = %v, want PSSW_ERROR", body)
	}
	_, body = doJSON(t, srv, "POST", "/login", map[string]any{"username": "ken", "password": "shoryuken"}, nil)
	if body["success"] != true || body["user"] != "ken" {
		t.Fatalf("login = %v, want success for ken", body)
	}
	if _, ok := body["username"]; ok {
		t.Fatalf("login = %v, want the name under user only", body)
	}

	_, body = doJSON(t, srv, "GET", "/user-exists/ken", nil, nil)
	if body["exists"] != true {
		t.Fatalf("user-exists = %v, want true", body)
	}

	_, body = doJSON(t, srv, "POST", "/user/update-field", map[string]any{"username": "ken", "field": "country", "value": "jp"}, nil)
	if body["ok"] != true {
		t.Fatalf("update-field = %v, want ok", body)
	}
	_, body = doJSON(t, srv, "POST", "/user/update-field", map[string]any{"username": "ken", "field": "isAdmin", "value": true}, nil)
	if body["ok"] != false {
		t.Fatalf("update-field on protected field = %v, want ok false", body)
	}

	_, body = doJSON(t, srv, "POST", "/user/save", map[string]any{"username": "ken", "data": map[string]any{"xp": 250, "hoursPlayed": 1.5}}, nil)
	if body["success"] != true {
		t.Fatalf("save = %v, want success", body)
	}
	if _, ok := body["ok"]; ok {
		t.Fatalf("save = %v, want success key only", body)
	}

	_, body = doJSON(t, srv, "GET", "/user/ken", nil, nil)
	if body["xp"] != float64(250) || body["lastSave"] == nil {
		t.Fatalf("profile after save = %v, want xp 250 and lastSave set", body)
	}
	if body["country"] != "jp" || body["level"] != float64(1) || body["avatar"] != "default" {
		t.Fatalf("profile = %v, want country jp with defaults", body)
	}
	if _, ok := body["email"]; ok {
		t.Fatal("profile must not expose email")
	}
}

func TestResetAllRequiresAdminToken(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, "s3cret", "ken")

	status, _ := doJSON(t, srv, "POST", "/competitive/reset-all", nil, nil)
	if status != http.StatusForbidden {
		t.Fatalf("reset without token = %d, want %d", status, http.StatusForbidden)
	}
	status, body := doJSON(t, srv, "POST", "/competitive/reset-all", nil, http.Header{adminTokenHeader: []string{"s3cret"}})
	if status != http.StatusOK || body["success"] != true {
		t.Fatalf("reset with token = %d %v, want success", status, body)
	}
}

func TestFriendRoutes(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, "", "ken", "ryu")

	_, body := doJSON(t, srv, "POST", "/friends/send", map[string]any{"username": "ken", "toUser": "ken"}, nil)
	if body["error"] != "ADD_SELF" {
		t.Fatalf("send to self = %v, want ADD_SELF", body)
	}
	_, body = doJSON(t, srv, "POST", "/friends/send", map[string]any{"username": "ken", "toUser": "ryu"}, nil)
	if body["ok"] != true {
		t.Fatalf("send = %v, want ok", body)
	}
	_, body = doJSON(t, srv, "POST", "/friends/send", map[string]any{"username": "ryu", "toUser": "ken"}, nil)
	if body["ok"] != true || body["autoAccepted"] != true {
		t.Fatalf("inverse send = %v, want autoAccepted", body)
	}

	_, body = doJSON(t, srv, "POST", "/friends/get", map[string]any{"username": "ken"}, nil)
	data, _ := body["data"].(map[string]any)
	if body["ok"] != true || data == nil {
		t.Fatalf("friends/get = %v, want ok with data", body)
	}
	friends, _ := data["friends"].([]any)
	if len(friends) != 1 || friends[0] != "ryu" {
		t.Fatalf("ken friends = %v, want [ryu]", data["friends"])
	}
	if _, ok := body["friends"]; ok {
		t.Fatalf("friends/get = %v, want lists nested under data", body)
	}

	_, body = doJSON(t, srv, "POST", "/friends/get", map[string]any{"username": "akuma"}, nil)
	data, _ = body["data"].(map[string]any)
	if incoming, ok := data["incoming"].([]any); !ok || len(incoming) != 0 {
		t.Fatalf("unknown user friends/get = %v, want empty lists under data", body)
	}
}

func TestTournamentRoutes(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, "", "ken")

	_, body := doJSON(t, srv, "POST", "/tournament/finish", nil, nil)
	if body["error"] != "no_active" {
		t.Fatalf("finish without active = %v, want no_active", body)
	}
	_, body = doJSON(t, srv, "POST", "/tournament/create", map[string]any{"name": "World Warrior", "size": 8}, nil)
	if body["ok"] != true {
		t.Fatalf("create = %v, want ok", body)
	}
	_, body = doJSON(t, srv, "POST", "/tournament/create", map[string]any{"name": "Again", "size": 4}, nil)
	if body["error"] != "already_active" {
		t.Fatalf("second create = %v, want already_active", body)
	}

	_, body = doJSON(t, srv, "GET", "/tournament/get", nil, nil)
	active, _ := body["activeTournament"].(map[string]any)
	if active == nil || active["name"] != "World Warrior" {
		t.Fatalf("active = %v, want World Warrior", body["activeTournament"])
	}
}

func TestOperationalRoutes(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, "")

	status, body := doJSON(t, srv, "GET", "/health", nil, nil)
	if status != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("health = %d %v, want ok", status, body)
	}

	_, body = doJSON(t, srv, "GET", "/", nil, nil)
	if body["service"] != "Horus" || body["status"] != "online" {
		t.Fatalf("banner = %v, want Horus online", body)
	}

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	if !strings.Contains(buf.String(), "horus_http_requests_total") {
		t.Fatal("metrics should expose horus_http_requests_total")
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, "")

	req, _ := http.NewRequest("GET", srv.URL+"/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get(requestIDHeader); got != "abc-123" {
		t.Fatalf("request id = %q, want abc-123", got)
	}

	resp, err = srv.Client().Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	resp.Body.Close()
	if resp.Header.Get(requestIDHeader) == "" {
		t.Fatal("a request id should be generated when none is sent")
	}
}
