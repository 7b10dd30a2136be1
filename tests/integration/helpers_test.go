package integration

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/panoptocord/panoptocord/internal/auth"
	"github.com/panoptocord/panoptocord/internal/config"
	"github.com/panoptocord/panoptocord/internal/discord"
	"github.com/panoptocord/panoptocord/internal/panopto"
	"github.com/panoptocord/panoptocord/internal/state"
	"github.com/panoptocord/panoptocord/internal/watcher"
)

// env wires a full daemon pipeline against fake Panopto, token and Discord
// endpoints, persisting state to a real temp file so tests can simulate
// process restarts.
type env struct {
	cfg      *config.Config
	store    state.Store
	recorder *webhookRecorder

	mu       sync.Mutex
	sessions []string
	grants   int
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{}

	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e.mu.Lock()
		e.grants++
		e.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token": "fresh-access", "token_type": "Bearer", "expires_in": 3600}`)
	}))
	t.Cleanup(tokenSrv.Close)

	panoptoSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e.mu.Lock()
		defer e.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"Results": [%s]}`, joinJSON(e.sessions))
	}))
	t.Cleanup(panoptoSrv.Close)

	e.recorder = &webhookRecorder{}
	webhookSrv := httptest.NewServer(e.recorder.handler())
	t.Cleanup(webhookSrv.Close)

	e.cfg = &config.Config{
		Auth: config.AuthConfig{
			AuthorizationURL: tokenSrv.URL + "/authorize",
			AccessTokenURL:   tokenSrv.URL + "/token",
			ClientID:         "client",
			ClientSecret:     "secret",
			RefreshToken:     "seed-refresh",
			AccessToken:      "seed-access",
		},
		Watch: config.WatchConfig{
			PanoptoBase: panoptoSrv.URL + "/",
			Folders:     []string{"folder-1"},
			WebhookURL:  webhookSrv.URL,
		},
		Runtime: config.RuntimeConfig{
			PollInterval:    config.Duration(10 * time.Minute),
			StatePath:       filepath.Join(t.TempDir(), "panoptocord-cache.json"),
			UpstreamTimeout: config.Duration(5 * time.Second),
			MaxRetries:      0,
			InitialBackoff:  config.Duration(time.Millisecond),
		},
	}

	store, err := state.NewFileStore(e.cfg.Runtime.StatePath)
	if err != nil {
		t.Fatalf("store init error: %v", err)
	}
	e.store = store
	return e
}

// addSession publishes a fake recording into the stub Panopto folder.
// Sessions are served newest-first, matching the real API sort order.
func (e *env) addSession(id, name, start string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessions = append([]string{sessionJSON(id, name, start)}, e.sessions...)
}

func (e *env) tokenGrants() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.grants
}

// startWatcher mimics a daemon boot: load persisted state or seed a fresh
// one, then assemble the watcher around it.
func (e *env) startWatcher(t *testing.T, seedTime time.Time) (*watcher.Watcher, *state.State) {
	t.Helper()

	st, err := e.store.Load()
	if err != nil {
		st = state.Fresh(e.cfg.Auth, seedTime, false)
		st.LastUpdated = seedTime
	} else {
		st.ReseedIfRotated(e.cfg.Auth)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	client := &http.Client{Timeout: 5 * time.Second}
	w, err := watcher.New(watcher.Options{
		Config:  e.cfg,
		Store:   e.store,
		State:   st,
		Auth:    auth.NewManager(e.cfg.Auth, client, logger),
		Panopto: panopto.NewClient(e.cfg.Watch.PanoptoBase, client),
		Discord: discord.NewPublisher(e.cfg.Watch.WebhookURL, client, logger),
		Logger:  logger,
	})
	if err != nil {
		t.Fatalf("watcher init error: %v", err)
	}
	return w, st
}

func joinJSON(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}

func sessionJSON(id, name, start string) string {
	return fmt.Sprintf(`{
		"Id": %q,
		"Name": %q,
		"StartTime": %q,
		"Duration": 1800,
		"CreatedBy": {"Id": "lecturer"},
		"Urls": {"ViewerUrl": "https://p/view/%s", "ThumbnailUrl": "https://p/thumb/%s"},
		"Folder": "folder-1",
		"FolderDetails": {"Id": "folder-1", "Name": "CS 4320"}
	}`, id, name, start, id, id)
}

type webhookRecorder struct {
	mu       sync.Mutex
	payloads []map[string]json.RawMessage
}

func (r *webhookRecorder) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		var payload map[string]json.RawMessage
		_ = json.Unmarshal(body, &payload)
		r.mu.Lock()
		r.payloads = append(r.payloads, payload)
		r.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}
}

func (r *webhookRecorder) embedTitles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var titles []string
	for _, payload := range r.payloads {
		var embeds []struct {
			Title string `json:"title"`
		}
		_ = json.Unmarshal(payload["embeds"], &embeds)
		for _, e := range embeds {
			titles = append(titles, e.Title)
		}
	}
	return titles
}
