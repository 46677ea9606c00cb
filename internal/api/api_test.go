package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/dvrd/internal/access"
	"github.com/ManuGH/dvrd/internal/channels"
	"github.com/ManuGH/dvrd/internal/config"
	"github.com/ManuGH/dvrd/internal/dvr"
	"github.com/ManuGH/dvrd/internal/epg"
	"github.com/ManuGH/dvrd/internal/timers"
)

type memStore struct {
	saved map[string]map[string]any
}

func (s *memStore) Save(uuid string, conf map[string]any) error {
	s.saved[uuid] = conf
	return nil
}
func (s *memStore) Remove(uuid string) error {
	delete(s.saved, uuid)
	return nil
}
func (s *memStore) Each(fn func(string, map[string]any)) error {
	for k, v := range s.saved {
		fn(k, v)
	}
	return nil
}

type nopNotifier struct{}

func (nopNotifier) EntryAdded(string, string)   {}
func (nopNotifier) EntryUpdated(string, string) {}
func (nopNotifier) EntryDeleted(string)         {}
func (nopNotifier) Upcoming(string, int64)      {}

type nopRecorder struct{}

func (nopRecorder) Subscribe(*dvr.Entry)                 {}
func (nopRecorder) Unsubscribe(*dvr.Entry, dvr.StopCode) {}

func headerActor(r *http.Request) access.Actor {
	switch r.Header.Get("X-User") {
	case "admin":
		return access.Actor{Name: "admin", Perms: access.Admin}
	case "alice":
		return access.Actor{Name: "alice", Perms: access.Recorder}
	default:
		return access.Actor{}
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *dvr.Engine, *timers.ManualClock) {
	t.Helper()
	clock := timers.NewManualClock(time.Date(2026, 3, 2, 12, 0, 0, 0, time.Local))
	inv := channels.NewInventory()
	inv.Put(&channels.Channel{UUID: "ch1", Name: "One", Enabled: true})
	profs := config.NewProfiles(&config.Profile{
		UUID: "default", Name: config.DefaultProfileName,
		RetentionDays: 31, UpdateWindow: 86400, Storage: t.TempDir(),
	})
	rules := dvr.NewRules(filepath.Join(t.TempDir(), "rules.json"))
	eng := dvr.New(dvr.Options{
		Clock:    clock,
		Store:    &memStore{saved: map[string]map[string]any{}},
		Notifier: nopNotifier{},
		Channels: inv,
		Guide:    epg.NewGuide(),
		Profiles: profs,
		Recorder: nopRecorder{},
		Rules:    rules,
	})
	srv := httptest.NewServer(NewServer(eng, rules, headerActor).Handler())
	t.Cleanup(srv.Close)
	return srv, eng, clock
}

func doJSON(t *testing.T, method, url, user string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	if user != "" {
		req.Header.Set("X-User", user)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestCreateAndGetEntry(t *testing.T) {
	srv, _, clock := newTestServer(t)
	now := clock.Now().Unix()

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/dvr/entries", "alice", map[string]any{
		"channel": "ch1", "title": "News",
		"start": now + 600, "stop": now + 1200,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode(t, resp)
	uuid := created["uuid"].(string)
	assert.Equal(t, "Scheduled for recording", created["status"])
	assert.Equal(t, "alice", created["owner"], "owner defaults to the actor")

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/dvr/entries/"+uuid, "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode(t, resp)
	assert.Equal(t, "News", got["title"].(map[string]any)["und"])
}

func TestCreateRejectsAnonymous(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/dvr/entries", "", map[string]any{})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCreateValidation(t *testing.T) {
	srv, _, clock := newTestServer(t)
	now := clock.Now().Unix()

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/dvr/entries", "admin", map[string]any{
		"channel": "ch1", "stop": now + 1200,
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := map[string]any{
		"channel": "ch1", "title": "News",
		"start": now + 600, "stop": now + 1200,
	}
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/dvr/entries", "admin", body)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/dvr/entries", "admin", body)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestUpdateOwnership(t *testing.T) {
	srv, eng, clock := newTestServer(t)
	now := clock.Now().Unix()
	e, err := eng.Create("", map[string]any{
		"channel": "ch1", "title": "News", "owner": "admin",
		"start": now + 600, "stop": now + 1200,
	})
	require.NoError(t, err)

	resp := doJSON(t, http.MethodPut, srv.URL+"/api/dvr/entries/"+e.UUID, "alice",
		map[string]any{"comment": "mine"})
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, http.MethodPut, srv.URL+"/api/dvr/entries/"+e.UUID, "admin",
		map[string]any{"comment": "ok"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", e.Comment)
}

func TestCancelScheduledEntry(t *testing.T) {
	srv, eng, clock := newTestServer(t)
	now := clock.Now().Unix()
	e, err := eng.Create("", map[string]any{
		"channel": "ch1", "title": "News", "owner": "alice",
		"start": now + 600, "stop": now + 1200,
	})
	require.NoError(t, err)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/dvr/entries/"+e.UUID+"/cancel", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "deleted", decode(t, resp)["result"])
	assert.Nil(t, eng.FindByID(e.UUID))

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/dvr/entries/"+e.UUID, "alice", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListEntries(t *testing.T) {
	srv, eng, clock := newTestServer(t)
	now := clock.Now().Unix()
	for i := int64(0); i < 3; i++ {
		_, err := eng.Create("", map[string]any{
			"channel": "ch1", "title": "News",
			"start": now + 600 + i*3600, "stop": now + 1200 + i*3600,
		})
		require.NoError(t, err)
	}

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/dvr/entries", "admin", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()
	var out []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Len(t, out, 3)
}

func TestRulesEndpointsAdminOnly(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/dvr/autorecs", "alice", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/dvr/autorecs", "admin", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
