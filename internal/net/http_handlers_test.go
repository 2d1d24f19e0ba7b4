package net

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"realm-nav/server"
	"realm-nav/server/internal/detour"
	"realm-nav/server/internal/navmesh"
)

func newHub(t *testing.T, tiles ...[]byte) *server.Hub {
	t.Helper()
	mesh, err := navmesh.New(navmesh.Federation{TileWidth: 10, TileHeight: 10, TileSize: 10, TilePitch: 4}, tiles)
	if err != nil {
		t.Fatalf("navmesh: %v", err)
	}
	cfg := server.DefaultHubConfig()
	cfg.Scripts = t.TempDir()
	return server.NewHub(cfg, mesh, nil)
}

func flatTile(t *testing.T, x0 float32) []byte {
	t.Helper()
	raw, err := detour.EncodeTile(detour.TileData{
		Header: &detour.TileHeader{},
		Verts:  [][3]float32{{x0, 2, 0}, {x0 + 10, 2, 0}, {x0 + 10, 2, 10}, {x0, 2, 10}},
		Polys:  []detour.PolyData{{Verts: []uint16{0, 1, 2, 3}, Flags: 1}},
	})
	if err != nil {
		t.Fatalf("encode tile: %v", err)
	}
	return raw
}

func do(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp
}

func decode(t *testing.T, resp *httptest.ResponseRecorder, into any) {
	t.Helper()
	if err := json.Unmarshal(resp.Body.Bytes(), into); err != nil {
		t.Fatalf("decode %s: %v", resp.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	handler := NewHTTPHandler(newHub(t, flatTile(t, 0)), HTTPHandlerConfig{})
	resp := do(t, handler, http.MethodGet, "/health", nil)
	if resp.Code != http.StatusOK || resp.Body.String() != "ok" {
		t.Fatalf("unexpected health response %d %q", resp.Code, resp.Body.String())
	}
}

func TestNavmeshQueries(t *testing.T) {
	handler := NewHTTPHandler(newHub(t, flatTile(t, 0), flatTile(t, 10)), HTTPHandlerConfig{})

	resp := do(t, handler, http.MethodGet, "/navmesh/bounds", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected bounds, got %d %s", resp.Code, resp.Body.String())
	}
	var bounds struct {
		Min [3]float32 `json:"min"`
		Max [3]float32 `json:"max"`
	}
	decode(t, resp, &bounds)
	if bounds.Min != [3]float32{0, 2, 0} || bounds.Max != [3]float32{20, 2, 10} {
		t.Fatalf("unexpected bounds %+v", bounds)
	}

	resp = do(t, handler, http.MethodGet, "/navmesh/floor?x=15&y=5&z=5", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected floor, got %d %s", resp.Code, resp.Body.String())
	}
	var floor struct {
		Height float32 `json:"height"`
	}
	decode(t, resp, &floor)
	if floor.Height != 2 {
		t.Fatalf("expected floor height 2, got %v", floor.Height)
	}

	if resp := do(t, handler, http.MethodGet, "/navmesh/floor?x=500&z=500", nil); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 off mesh, got %d", resp.Code)
	}
	if resp := do(t, handler, http.MethodGet, "/navmesh/floor?x=abc", nil); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad query, got %d", resp.Code)
	}
	if resp := do(t, handler, http.MethodGet, "/navmesh/tile?x=1&z=1", nil); resp.Code != http.StatusOK {
		t.Fatalf("expected tile lookup, got %d", resp.Code)
	}
}

func TestNavmeshBoundsWithoutTiles(t *testing.T) {
	handler := NewHTTPHandler(newHub(t), HTTPHandlerConfig{})
	if resp := do(t, handler, http.MethodGet, "/navmesh/bounds", nil); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for empty mesh, got %d", resp.Code)
	}
}

func TestEntityLifecycleOverHTTP(t *testing.T) {
	hub := newHub(t, flatTile(t, 0), flatTile(t, 10))
	handler := NewHTTPHandler(hub, HTTPHandlerConfig{})

	resp := do(t, handler, http.MethodPost, "/entities", map[string]any{"position": []float32{2, 2, 5}, "moverId": 2})
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected spawn accepted, got %d %s", resp.Code, resp.Body.String())
	}
	var accepted struct {
		AvatarID uint64 `json:"avatarId"`
	}
	decode(t, resp, &accepted)
	if accepted.AvatarID == 0 {
		t.Fatalf("expected allocated avatar id")
	}
	hub.Advance(1)

	path := "/entities/" + jsonNumber(accepted.AvatarID)
	resp = do(t, handler, http.MethodPost, path+"/move", map[string]any{"destination": []float32{18, 2, 5}, "speed": 2})
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected move accepted, got %d %s", resp.Code, resp.Body.String())
	}
	hub.Advance(1)

	var state server.EntityState
	resp = do(t, handler, http.MethodGet, path, nil)
	decode(t, resp, &state)
	if !state.Navigating || !state.Active {
		t.Fatalf("expected active navigating entity, got %+v", state)
	}

	if resp := do(t, handler, http.MethodPost, path+"/cancel", nil); resp.Code != http.StatusAccepted {
		t.Fatalf("expected cancel accepted, got %d", resp.Code)
	}
	hub.Advance(1)
	decode(t, do(t, handler, http.MethodGet, path, nil), &state)
	if state.Navigating {
		t.Fatalf("expected cancelled entity")
	}

	if resp := do(t, handler, http.MethodPost, path+"/deactivate", nil); resp.Code != http.StatusAccepted {
		t.Fatalf("expected deactivate accepted, got %d", resp.Code)
	}
	hub.Advance(1)
	decode(t, do(t, handler, http.MethodGet, path, nil), &state)
	if state.Active {
		t.Fatalf("expected inactive entity")
	}
}

func TestEntityRequestValidation(t *testing.T) {
	handler := NewHTTPHandler(newHub(t, flatTile(t, 0)), HTTPHandlerConfig{})

	if resp := do(t, handler, http.MethodPost, "/entities", map[string]any{}); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without position, got %d", resp.Code)
	}
	if resp := do(t, handler, http.MethodPost, "/entities/abc/move", map[string]any{"destination": []float32{1, 0, 1}, "speed": 1}); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", resp.Code)
	}
	if resp := do(t, handler, http.MethodPost, "/entities/5/move", map[string]any{"destination": []float32{1, 0, 1}, "speed": 0}); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero speed, got %d", resp.Code)
	}
	if resp := do(t, handler, http.MethodGet, "/entities/99", nil); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown entity, got %d", resp.Code)
	}
}

func TestDiagnosticsReportsHubAndTelemetry(t *testing.T) {
	hub := newHub(t, flatTile(t, 0))
	handler := NewHTTPHandler(hub, HTTPHandlerConfig{
		Telemetry: func() map[string]uint64 { return map[string]uint64{"sim_ticks_total": 3} },
	})

	resp := do(t, handler, http.MethodGet, "/diagnostics", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected diagnostics, got %d", resp.Code)
	}
	var payload struct {
		Status    string             `json:"status"`
		Hub       server.Diagnostics `json:"hub"`
		Telemetry map[string]uint64  `json:"telemetry"`
	}
	decode(t, resp, &payload)
	if payload.Status != "ok" || payload.Hub.Tiles != 1 || payload.Telemetry["sim_ticks_total"] != 3 {
		t.Fatalf("unexpected diagnostics %+v", payload)
	}
}

func jsonNumber(v uint64) string {
	data, _ := json.Marshal(v)
	return string(data)
}
