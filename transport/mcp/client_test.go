package mcp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/wricardo/mcp-training/geocoins/game/engine"
	"github.com/wricardo/mcp-training/geocoins/game/grid"
	"github.com/wricardo/mcp-training/geocoins/game/ledger"
	"github.com/wricardo/mcp-training/geocoins/game/service"
)

func toolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil || len(result.Content) == 0 {
		t.Fatal("Expected result content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatal("Expected text content in result")
	}
	return text.Text
}

// recordedRequest captures what the fake REST API received
type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   map[string]interface{}
}

func fakeAPI(t *testing.T, status int, response interface{}) (*httptest.Server, *recordedRequest) {
	t.Helper()
	rec := &recordedRequest{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.Method, rec.Path, rec.Query = r.Method, r.URL.Path, r.URL.RawQuery
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			json.Unmarshal(data, &rec.Body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(response)
	}))
	t.Cleanup(server.Close)
	return server, rec
}

func sampleState() *engine.GameState {
	return &engine.GameState{
		Position:       grid.Point{Lat: 12.5e-4, Lng: 7.5e-4},
		PlayerCell:     grid.Cell{Row: 12, Col: 7},
		VisionRadius:   1,
		InventoryCount: 1,
		Caches: []engine.CacheView{
			{Cell: grid.Cell{Row: 12, Col: 7}, Count: 41},
			{Cell: grid.Cell{Row: 13, Col: 8}, Count: 3, Distance: 1},
		},
		Message: "1 coins collected.",
	}
}

func TestNewClient(t *testing.T) {
	baseURL := "http://localhost:8080"
	client := NewClient(baseURL)

	if client.baseURL != baseURL {
		t.Errorf("Expected baseURL %s, got %s", baseURL, client.baseURL)
	}
	if client.httpClient == nil {
		t.Error("Expected HTTP client to be initialized")
	}
	if client.GetMCPServer() == nil {
		t.Error("Expected MCP server to be initialized")
	}
}

func TestClient_apiCall(t *testing.T) {
	t.Run("decodes result", func(t *testing.T) {
		server, rec := fakeAPI(t, http.StatusOK, map[string]string{"status": "healthy"})
		client := NewClient(server.URL)

		var result map[string]string
		if err := client.apiCall(context.Background(), "GET", "/api/health", nil, &result); err != nil {
			t.Fatalf("apiCall failed: %v", err)
		}
		if result["status"] != "healthy" || rec.Path != "/api/health" {
			t.Errorf("Unexpected result %v for %s", result, rec.Path)
		}
	})

	t.Run("surfaces API error message", func(t *testing.T) {
		server, _ := fakeAPI(t, http.StatusConflict, map[string]interface{}{"error": "grab at 12,7: cache is empty", "code": 409})
		client := NewClient(server.URL)

		err := client.apiCall(context.Background(), "POST", "/api/sessions/ab12/grab", map[string]int{"i": 12, "j": 7}, nil)
		if err == nil || !strings.Contains(err.Error(), "cache is empty") {
			t.Errorf("Expected cache is empty error, got %v", err)
		}
	})

	t.Run("status without body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		err := NewClient(server.URL).apiCall(context.Background(), "GET", "/", nil, nil)
		if err == nil || !strings.Contains(err.Error(), "502") {
			t.Errorf("Expected status code in error, got %v", err)
		}
	})

	t.Run("unreachable server", func(t *testing.T) {
		err := NewClient("http://127.0.0.1:1").apiCall(context.Background(), "GET", "/", nil, nil)
		if err == nil {
			t.Error("Expected connection error")
		}
	})
}

func TestClient_createSession(t *testing.T) {
	server, rec := fakeAPI(t, http.StatusCreated, service.SessionInfo{
		ID:         "ab12",
		ConfigName: "campus",
		GameState:  sampleState(),
	})
	client := NewClient(server.URL)

	result, err := client.handleCreateSession(context.Background(), toolRequest("create_session", map[string]interface{}{"config_id": "campus"}))
	if err != nil {
		t.Fatalf("createSession failed: %v", err)
	}
	text := resultText(t, result)
	if !strings.Contains(text, "ab12") {
		t.Errorf("Expected session ID in result, got: %s", text)
	}
	if rec.Method != "POST" || rec.Path != "/api/sessions" || rec.Body["config_id"] != "campus" {
		t.Errorf("Unexpected request %+v", rec)
	}
}

func TestClient_handleGrab(t *testing.T) {
	server, rec := fakeAPI(t, http.StatusOK, service.ActionResult{
		Success:   true,
		Token:     ledger.Token{ID: ledger.TokenID{Row: 12, Col: 7, Serial: 0}, Held: true},
		Cache:     &engine.CacheView{Cell: grid.Cell{Row: 12, Col: 7}, Count: 41},
		GameState: sampleState(),
	})
	client := NewClient(server.URL)

	// JSON numbers arrive as float64
	result, err := client.handleGrab(context.Background(), toolRequest("grab", map[string]interface{}{
		"session_id": "ab12", "i": float64(12), "j": float64(7),
	}))
	if err != nil {
		t.Fatalf("handleGrab failed: %v", err)
	}
	text := resultText(t, result)
	if !strings.Contains(text, "12:7#0") || !strings.Contains(text, "41 coins") {
		t.Errorf("Unexpected grab output: %s", text)
	}
	if rec.Path != "/api/sessions/ab12/grab" || rec.Body["i"] != float64(12) || rec.Body["j"] != float64(7) {
		t.Errorf("Unexpected request %+v", rec)
	}

	result, _ = client.handleGrab(context.Background(), toolRequest("grab", map[string]interface{}{"session_id": "ab12", "i": 12}))
	if !result.IsError {
		t.Error("Expected missing j to be a tool error")
	}
}

func TestClient_handleDonate(t *testing.T) {
	server, rec := fakeAPI(t, http.StatusOK, service.ActionResult{Success: true, GameState: sampleState()})
	client := NewClient(server.URL)

	_, err := client.handleDonate(context.Background(), toolRequest("donate", map[string]interface{}{
		"session_id": "ab12", "i": 13, "j": 8, "serial": "4",
	}))
	if err != nil {
		t.Fatalf("handleDonate failed: %v", err)
	}
	if rec.Body["serial"] != float64(4) {
		t.Errorf("Expected serial 4 forwarded, got %+v", rec.Body)
	}
	if _, ok := rec.Body["origin_i"]; ok {
		t.Error("Expected origin_i to be omitted")
	}
}

func TestClient_handleDonate_Conflict(t *testing.T) {
	server, _ := fakeAPI(t, http.StatusConflict, map[string]interface{}{"error": "donate at 13,8: inventory is empty", "code": 409})
	client := NewClient(server.URL)

	result, err := client.handleDonate(context.Background(), toolRequest("donate", map[string]interface{}{
		"session_id": "ab12", "i": 13, "j": 8,
	}))
	if err != nil {
		t.Fatalf("handleDonate failed: %v", err)
	}
	if !result.IsError || !strings.Contains(resultText(t, result), "inventory is empty") {
		t.Errorf("Expected inventory error, got %+v", result)
	}
}

func TestClient_handleLocate(t *testing.T) {
	server, rec := fakeAPI(t, http.StatusOK, service.MoveResult{Success: true, GameState: sampleState(), Message: "Located"})
	client := NewClient(server.URL)

	if _, err := client.handleLocate(context.Background(), toolRequest("locate", map[string]interface{}{
		"session_id": "ab12", "lat": 36.9895, "lng": -122.0628,
	})); err != nil {
		t.Fatalf("handleLocate failed: %v", err)
	}
	if rec.Body["lat"] != 36.9895 || rec.Body["lng"] != -122.0628 {
		t.Errorf("Unexpected body %+v", rec.Body)
	}

	result, _ := client.handleLocate(context.Background(), toolRequest("locate", map[string]interface{}{"session_id": "ab12"}))
	if !result.IsError {
		t.Error("Expected missing coordinates to be a tool error")
	}
}

func TestClient_handleMoveHistory(t *testing.T) {
	server, rec := fakeAPI(t, http.StatusOK, service.HistoryResponse{
		Moves: []engine.MoveHistoryEntry{
			{Action: "grab", Cell: grid.Cell{Row: 12, Col: 7}, Token: "12:7#0", Success: true, MoveNumber: 2, Inventory: 1},
			{Action: "north", Cell: grid.Cell{Row: 13, Col: 7}, Success: true, MoveNumber: 1},
		},
		TotalMoves: 2,
		Page:       1,
		TotalPages: 1,
	})
	client := NewClient(server.URL)

	result, err := client.handleMoveHistory(context.Background(), toolRequest("move_history", map[string]interface{}{
		"session_id": "ab12", "page": float64(1), "limit": float64(5),
	}))
	if err != nil {
		t.Fatalf("handleMoveHistory failed: %v", err)
	}
	if rec.Query != "limit=5&page=1" {
		t.Errorf("Unexpected query %q", rec.Query)
	}
	text := resultText(t, result)
	if !strings.Contains(text, "token=12:7#0") || !strings.Contains(text, "#1 ✓ north") {
		t.Errorf("Unexpected history output: %s", text)
	}
}

func TestClient_handleDescribeCell(t *testing.T) {
	server, rec := fakeAPI(t, http.StatusOK, engine.CellInfo{
		Cell:         grid.Cell{Row: 369894, Col: -1220628},
		State:        "unseen",
		Spawns:       true,
		InitialValue: 17,
	})
	client := NewClient(server.URL)

	result, err := client.handleDescribeCell(context.Background(), toolRequest("describe_cell", map[string]interface{}{
		"session_id": "ab12", "i": 369894, "j": -1220628,
	}))
	if err != nil {
		t.Fatalf("handleDescribeCell failed: %v", err)
	}
	if rec.Path != "/api/sessions/ab12/cells/369894/-1220628" {
		t.Errorf("Unexpected path %s", rec.Path)
	}
	text := resultText(t, result)
	if !strings.Contains(text, "Initial value: 17 coins") || !strings.Contains(text, "Spawns a cache: true") {
		t.Errorf("Unexpected cell output: %s", text)
	}
}

func TestFormatGameState(t *testing.T) {
	text := formatGameState(sampleState())

	for _, want := range []string{
		"Cell: 12,7",
		"Coins held: 1",
		"Caches in view (2)",
		"cell 13,8: 3 coins",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in output, got: %s", want, text)
		}
	}

	// North-up 3x3 map: cache at 13,8 is top right, player on a cache in the middle
	if !strings.Contains(text, "..3\n.&.\n...\n") {
		t.Errorf("Unexpected map in output: %s", text)
	}

	if formatGameState(nil) != "No game state available" {
		t.Error("Expected placeholder for nil state")
	}
}

func TestFormatMoveResult_Failed(t *testing.T) {
	result := &service.MoveResult{
		Success:   false,
		Message:   "Can't move sideways",
		GameState: sampleState(),
	}
	if text := formatMoveResult(result); !strings.Contains(text, "❌ Can't move sideways") {
		t.Errorf("Expected failure marker, got: %s", text)
	}
}

func TestClient_handleGameInstructions(t *testing.T) {
	client := NewClient("http://localhost:8080")

	result, err := client.handleGameInstructions(context.Background(), toolRequest("game_instructions", nil))
	if err != nil {
		t.Fatalf("handleGameInstructions failed: %v", err)
	}
	text := resultText(t, result)
	for _, content := range []string{
		"Geocoin Hunt - Complete Instructions",
		"GAME OBJECTIVE:",
		"VISION:",
		"ACTIONS:",
		"ERRORS:",
		"MAP LEGEND",
	} {
		if !strings.Contains(text, content) {
			t.Errorf("Expected '%s' in instructions", content)
		}
	}
}
