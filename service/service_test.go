package service

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/hazyhaar/inkplay/catalog"
	"github.com/hazyhaar/inkplay/dbopen"

	_ "modernc.org/sqlite"
)

// samplePayload draws one horizontal pen stroke from (0,0) to (10,0)
// over 100ms on a 100x100 canvas.
const samplePayload = `{
	"width": 100, "height": 100,
	"strokes": [
		{"tool": "pen", "color": "#000000", "size": 4,
		 "points": [{"x":0,"y":0,"t":0},{"x":10,"y":0,"t":100}]}
	]
}`

func newTestServer(t *testing.T) (*httptest.Server, *Service) {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(catalog.Schema))
	svc := New(catalog.NewStore(db), DefaultConfig(), nil)

	r := chi.NewRouter()
	svc.RegisterHTTP(r)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts, svc
}

func createRecording(t *testing.T, ts *httptest.Server, payload, query string) string {
	t.Helper()
	resp, err := http.Post(ts.URL+"/recordings"+query, "application/json",
		strings.NewReader(payload))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("create: status %d: %s", resp.StatusCode, body)
	}
	var out struct {
		RecordingID string `json:"recording_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.RecordingID == "" {
		t.Fatal("create: empty recording_id")
	}
	return out.RecordingID
}

// WHAT: POST stores the raw payload and reports the built timeline stats.
func TestCreateAndGet(t *testing.T) {
	ts, _ := newTestServer(t)
	id := createRecording(t, ts, samplePayload, "?page_id=page-3&author=ms-okafor")

	resp, err := http.Get(ts.URL + "/recordings/" + id)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: status %d", resp.StatusCode)
	}

	var out struct {
		RecordingID string  `json:"recording_id"`
		PageID      string  `json:"page_id"`
		Author      string  `json:"author"`
		DurationMs  float64 `json:"duration_ms"`
		Timestamped bool    `json:"timestamped"`
		PointCount  int     `json:"point_count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.RecordingID != id || out.PageID != "page-3" || out.Author != "ms-okafor" {
		t.Fatalf("metadata: %+v", out)
	}
	if out.DurationMs != 100 {
		t.Fatalf("duration_ms: got %v, want 100", out.DurationMs)
	}
	if !out.Timestamped {
		t.Fatal("expected timestamped=true")
	}
	if out.PointCount != 2 {
		t.Fatalf("point_count: got %d, want 2", out.PointCount)
	}
}

// WHAT: garbage payloads are stored, not rejected; the stats expose the
// empty result so the client can tell something went wrong.
func TestCreate_GarbagePayload(t *testing.T) {
	ts, _ := newTestServer(t)
	id := createRecording(t, ts, `this is not json at all`, "")

	resp, err := http.Get(ts.URL + "/recordings/" + id)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out struct {
		DurationMs float64 `json:"duration_ms"`
		PointCount int     `json:"point_count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.DurationMs != 0 || out.PointCount != 0 {
		t.Fatalf("expected empty playback, got %+v", out)
	}
}

func TestGet_NotFound(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/recordings/nope")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestList_FiltersByPage(t *testing.T) {
	ts, _ := newTestServer(t)
	createRecording(t, ts, samplePayload, "?page_id=page-a")
	createRecording(t, ts, samplePayload, "?page_id=page-a")
	createRecording(t, ts, samplePayload, "?page_id=page-b")

	resp, err := http.Get(ts.URL + "/recordings?page_id=page-a")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out struct {
		Recordings []json.RawMessage `json:"recordings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Recordings) != 2 {
		t.Fatalf("page-a recordings: got %d, want 2", len(out.Recordings))
	}
}

func TestDelete(t *testing.T) {
	ts, _ := newTestServer(t)
	id := createRecording(t, ts, samplePayload, "")

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/recordings/"+id, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: status %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/recordings/" + id)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("after delete: status %d, want 404", resp.StatusCode)
	}
}

// WHAT: the timeline endpoint returns merged events ordered by reveal time.
func TestTimelineEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)
	id := createRecording(t, ts, samplePayload, "")

	resp, err := http.Get(ts.URL + "/recordings/" + id + "/timeline")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out struct {
		DurationMs float64 `json:"duration_ms"`
		Events     []struct {
			T1 float64 `json:"t1"`
		} `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.DurationMs != 100 {
		t.Fatalf("duration_ms: got %v", out.DurationMs)
	}
	if len(out.Events) != 1 {
		t.Fatalf("events: got %d, want 1", len(out.Events))
	}
	if out.Events[0].T1 != 100 {
		t.Fatalf("event t1: got %v, want 100", out.Events[0].T1)
	}
}

// WHAT: the frame endpoint serves a PNG; the cursor is clamped to the
// timeline so an out-of-range t still renders.
func TestFrameEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)
	id := createRecording(t, ts, samplePayload, "")

	for _, cursor := range []string{"0", "50", "100", "99999", "-5"} {
		resp, err := http.Get(ts.URL + "/recordings/" + id + "/frame?t=" + cursor + "&w=200&h=200")
		if err != nil {
			t.Fatal(err)
		}
		data, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("frame t=%s: status %d", cursor, resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
			t.Fatalf("frame t=%s: content type %q", cursor, ct)
		}
		if !bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")) {
			t.Fatalf("frame t=%s: not a PNG", cursor)
		}
	}
}

func TestExportPDFEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)
	id := createRecording(t, ts, samplePayload, "")

	resp, err := http.Get(ts.URL + "/recordings/" + id + "/export.pdf")
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export: status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("content type: %q", ct)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatal("not a PDF")
	}
}

func TestCreate_PayloadTooLarge(t *testing.T) {
	ts, _ := newTestServer(t)
	big := strings.Repeat("x", 5*1024*1024)
	resp, err := http.Post(ts.URL+"/recordings", "application/json",
		strings.NewReader(big))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("status: got %d, want 413", resp.StatusCode)
	}
}

// WHAT: the live socket pushes an initial frame, then mirrors seek and
// sync commands back as cursor updates.
func TestLiveSocket(t *testing.T) {
	ts, _ := newTestServer(t)
	id := createRecording(t, ts, samplePayload, "")

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/recordings/" + id + "/live"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var frame liveFrame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("initial frame: %v", err)
	}
	if frame.CursorMs != 0 || frame.Mode != "idle" {
		t.Fatalf("initial frame: %+v", frame)
	}

	if err := conn.WriteJSON(liveCommand{Cmd: "seek", Ms: 50}); err != nil {
		t.Fatal(err)
	}
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("seek frame: %v", err)
	}
	if frame.CursorMs != 50 || frame.Mode != "scrub" {
		t.Fatalf("seek frame: %+v", frame)
	}

	// Seek past the end clamps to the duration.
	if err := conn.WriteJSON(liveCommand{Cmd: "seek", Ms: 5000}); err != nil {
		t.Fatal(err)
	}
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatal(err)
	}
	if frame.CursorMs != 100 {
		t.Fatalf("clamped seek: cursor %v, want 100", frame.CursorMs)
	}

	if err := conn.WriteJSON(liveCommand{Cmd: "sync", Ms: 30}); err != nil {
		t.Fatal(err)
	}
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatal(err)
	}
	if frame.CursorMs != 30 || frame.Mode != "audio" {
		t.Fatalf("sync frame: %+v", frame)
	}
}

func TestLiveSocket_NotFound(t *testing.T) {
	ts, _ := newTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/recordings/nope/live"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected dial to fail for unknown recording")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("status: got %d, want 404", status)
	}
}

// WHAT: the session cache is invalidated when a recording is overwritten
// through the store, so frames reflect the new payload.
func TestSessionCacheEviction(t *testing.T) {
	ts, svc := newTestServer(t)
	id := createRecording(t, ts, samplePayload, "")

	if _, err := svc.loadSession(t.Context(), id); err != nil {
		t.Fatal(err)
	}
	svc.mu.Lock()
	_, cached := svc.sessions[id]
	svc.mu.Unlock()
	if !cached {
		t.Fatal("expected session to be cached")
	}

	svc.evict(id)
	svc.mu.Lock()
	_, cached = svc.sessions[id]
	svc.mu.Unlock()
	if cached {
		t.Fatal("expected session to be evicted")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"empty db path", func(c *Config) { c.DBPath = "" }, false},
		{"zero step", func(c *Config) { c.StepMs = 0 }, false},
		{"negative gap", func(c *Config) { c.GapMs = -1 }, false},
		{"zero payload cap", func(c *Config) { c.MaxPayloadMB = 0 }, false},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, false},
		{"debug level", func(c *Config) { c.LogLevel = "debug" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/inkplay.yaml"
	content := "listen: \":9999\"\ndb_path: custom.db\nstep_ms: 20\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != ":9999" || cfg.DBPath != "custom.db" || cfg.StepMs != 20 {
		t.Fatalf("config: %+v", cfg)
	}
	// Unset fields keep defaults.
	if cfg.GapMs != 150 {
		t.Fatalf("gap_ms default: got %d", cfg.GapMs)
	}
}
