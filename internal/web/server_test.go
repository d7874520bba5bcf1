package web

import (
	"bytes"
	"encoding/json"
	"image/color"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gorilla/websocket"

	"ico-maker-go/internal/config"
	"ico-maker-go/internal/logger"
	"ico-maker-go/internal/probe"
)

func newTestServer() *Server {
	log := logger.Discard()
	return NewServer(config.DefaultConfig(), log, probe.NewImageProber(log, nil), nil)
}

func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := imaging.Save(imaging.New(w, h, color.NRGBA{R: 200, A: 255}), path); err != nil {
		t.Fatal(err)
	}
	return path
}

func do(t *testing.T, s *Server, method, path string, body interface{}) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var resp APIResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return rec, resp
}

func TestIndex(t *testing.T) {
	rec, _ := do(t, newTestServer(), "GET", "/", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ICO Maker") {
		t.Errorf("index: %d", rec.Code)
	}
}

func TestSizes(t *testing.T) {
	rec, resp := do(t, newTestServer(), "GET", "/api/sizes", nil)
	if rec.Code != http.StatusOK || !resp.Success {
		t.Fatalf("status %d: %+v", rec.Code, resp)
	}
	data := resp.Data.(map[string]interface{})
	catalog := data["catalog"].([]interface{})
	if len(catalog) != 5 || catalog[0] != "16x16" || catalog[4] != "128x128" {
		t.Errorf("catalog = %v", catalog)
	}
}

func TestConvertPreflight(t *testing.T) {
	s := newTestServer()
	out := t.TempDir()
	img := writePNG(t, t.TempDir(), "a.png", 32, 32)

	cases := []struct {
		name string
		body ConvertRequest
		want string
	}{
		{"no images", ConvertRequest{OutputDirectory: out}, "no input"},
		{"no output", ConvertRequest{Images: []string{img}}, "output"},
		{"no sizes", ConvertRequest{Images: []string{img}, OutputDirectory: out, Sizes: []string{}}, "size"},
		{"size outside catalog", ConvertRequest{Images: []string{img}, OutputDirectory: out, Sizes: []string{"256"}}, "256"},
		{"missing output dir", ConvertRequest{Images: []string{img}, OutputDirectory: filepath.Join(out, "nope")}, "does not exist"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, resp := do(t, s, "POST", "/api/convert", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if !strings.Contains(strings.ToLower(resp.Error), tc.want) {
				t.Errorf("error = %q, want it to mention %q", resp.Error, tc.want)
			}
		})
	}
}

func TestConvertConflict(t *testing.T) {
	s := newTestServer()
	s.isRunning = true

	img := writePNG(t, t.TempDir(), "a.png", 32, 32)
	rec, _ := do(t, s, "POST", "/api/convert", ConvertRequest{Images: []string{img}, OutputDirectory: t.TempDir()})
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestConvertRunsBatch(t *testing.T) {
	s := newTestServer()
	in := t.TempDir()
	out := t.TempDir()
	good := writePNG(t, in, "good.png", 48, 48)
	bad := filepath.Join(in, "bad.png")
	if err := os.WriteFile(bad, []byte("not an image"), 0644); err != nil {
		t.Fatal(err)
	}

	rec, resp := do(t, s, "POST", "/api/convert", ConvertRequest{
		Images:          []string{good, bad},
		OutputDirectory: out,
		Sizes:           []string{"16", "32"},
	})
	if rec.Code != http.StatusOK || !resp.Success {
		t.Fatalf("status %d: %+v", rec.Code, resp)
	}
	s.wait()

	if _, err := os.Stat(filepath.Join(out, "good.ico")); err != nil {
		t.Errorf("good.ico missing: %v", err)
	}

	_, status := do(t, s, "GET", "/api/status", nil)
	data := status.Data.(map[string]interface{})
	if data["running"] != false {
		t.Error("batch should have finished")
	}
	results := data["results"].([]interface{})
	if len(results) != 2 {
		t.Fatalf("results = %v", results)
	}
	first := results[0].(map[string]interface{})
	second := results[1].(map[string]interface{})
	if first["success"] != true || second["success"] != false || second["failure"] != "unreadable" {
		t.Errorf("results = %v", results)
	}

	_, statsResp := do(t, s, "GET", "/api/statistics", nil)
	images := statsResp.Data.(map[string]interface{})["images"].(map[string]interface{})
	if images["converted"] != float64(1) || images["failed"] != float64(1) {
		t.Errorf("statistics = %v", images)
	}
}

func TestPlan(t *testing.T) {
	s := newTestServer()
	img := writePNG(t, t.TempDir(), "small.png", 40, 40)
	out := t.TempDir()

	rec, resp := do(t, s, "POST", "/api/plan", ConvertRequest{Images: []string{img}, OutputDirectory: out, BaseName: "app"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %+v", rec.Code, resp)
	}
	entries := resp.Data.([]interface{})
	entry := entries[0].(map[string]interface{})
	if entry["output"] != filepath.Join(out, "app.ico") {
		t.Errorf("output = %v", entry["output"])
	}
	if sizes := entry["sizes"].([]interface{}); len(sizes) != 2 {
		t.Errorf("sizes = %v, want 16x16 and 32x32", sizes)
	}
	if entries, _ := os.ReadDir(out); len(entries) != 0 {
		t.Error("plan must not write files")
	}

	rec, _ = do(t, s, "POST", "/api/plan", ConvertRequest{OutputDirectory: out})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty plan status = %d, want 400", rec.Code)
	}
}

func TestInspect(t *testing.T) {
	s := newTestServer()
	img := writePNG(t, t.TempDir(), "p.png", 20, 10)

	rec, resp := do(t, s, "POST", "/api/inspect", InspectRequest{Path: img})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %+v", rec.Code, resp)
	}
	md := resp.Data.(map[string]interface{})
	if md["width"] != float64(20) || md["height"] != float64(10) || md["format"] != "PNG" {
		t.Errorf("metadata = %v", md)
	}

	rec, _ = do(t, s, "POST", "/api/inspect", InspectRequest{Path: filepath.Join(t.TempDir(), "missing.png")})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("missing file status = %d", rec.Code)
	}
}

func TestListDirectories(t *testing.T) {
	s := newTestServer()
	dir := t.TempDir()
	writePNG(t, dir, "x.png", 16, 16)
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatal(err)
	}

	rec, resp := do(t, s, "GET", "/api/directories?path="+dir, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	entries := resp.Data.([]interface{})
	if len(entries) != 2 {
		t.Fatalf("entries = %v", entries)
	}
	for _, e := range entries {
		m := e.(map[string]interface{})
		if m["name"] == "x.png" && m["is_image"] != true {
			t.Errorf("x.png should be flagged as image: %v", m)
		}
	}

	rec, _ = do(t, s, "GET", "/api/directories?path=../secret", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("traversal status = %d", rec.Code)
	}
}

func TestWebSocketEvents(t *testing.T) {
	s := newTestServer()
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for {
		s.wsMutex.RLock()
		n := len(s.wsClients)
		s.wsMutex.RUnlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	img := writePNG(t, t.TempDir(), "ws.png", 32, 32)
	body, _ := json.Marshal(ConvertRequest{Images: []string{img}, OutputDirectory: t.TempDir()})
	res, err := http.Post(ts.URL+"/api/convert", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()

	var types []string
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v (got %v)", err, types)
		}
		types = append(types, msg.Type)
		if msg.Type == "convert_completed" {
			break
		}
	}
	want := []string{"convert_started", "file_converted", "convert_completed"}
	if strings.Join(types, ",") != strings.Join(want, ",") {
		t.Errorf("events = %v, want %v", types, want)
	}
	s.wait()
}
