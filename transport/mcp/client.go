package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cast"

	"github.com/wricardo/mcp-training/geocoins/game/engine"
	"github.com/wricardo/mcp-training/geocoins/game/service"
)

// Client serves MCP tools backed by the REST API at baseURL
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient builds the MCP server and registers its tools
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Geocoin Hunt",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Geocoin Hunt - MCP Interface

Every tool is a call against the game's REST API.

GAME OBJECTIVE:
Walk a world divided into small lat/lng cells. Some cells hold caches of coins.
Grab coins from caches within sight and donate them to other caches.

AVAILABLE TOOLS:
- create_session: Create new game session
- list_sessions: List all active sessions
- game_state: Position, caches in view, inventory
- move: Step one cell north, south, east or west
- locate: Jump to a latitude/longitude
- grab: Take a coin from a cache in view
- donate: Leave a held coin in a cache in view
- reset_game: Clear progress and return to the start
- move_history: View past actions
- list_configs: List available configurations
- describe_cell: Inspect one cell (spawn roll, initial value, coins)
- game_instructions: Full rules

Pass an 'intent' with each move describing what you are heading for.`),
	)

	c.registerTools()
}

func withSession() mcp.ToolOption {
	return mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID"))
}

func withCell() []mcp.ToolOption {
	return []mcp.ToolOption{
		withSession(),
		mcp.WithNumber("i", mcp.Required(), mcp.Description("Cell row index (floor(lat / tile_degrees))")),
		mcp.WithNumber("j", mcp.Required(), mcp.Description("Cell column index (floor(lng / tile_degrees))")),
	}
}

func tool(name, description string, opts ...mcp.ToolOption) mcp.Tool {
	return mcp.NewTool(name, append([]mcp.ToolOption{mcp.WithDescription(description)}, opts...)...)
}

func (c *Client) registerTools() {
	c.mcpServer.AddTool(tool("create_session", "Create a new game session with optional config selection",
		mcp.WithString("config_id", mcp.Description("ID of the config to use (optional, see list_configs)")),
	), c.handleCreateSession)
	c.mcpServer.AddTool(tool("list_sessions", "List all active game sessions"), c.handleListSessions)

	c.mcpServer.AddTool(tool("game_state", "Get the current game state: position, caches in view, inventory",
		withSession(),
	), c.handleGameState)
	c.mcpServer.AddTool(tool("move", "Move the player one cell in a direction",
		withSession(),
		mcp.WithString("direction", mcp.Required(), mcp.Enum(engine.Directions...), mcp.Description("Direction to move")),
		mcp.WithString("intent", mcp.Description("What this move is for, in a sentence")),
		mcp.WithBoolean("reset", mcp.Description("Reset before moving")),
	), c.handleMove)
	c.mcpServer.AddTool(tool("locate", "Move the player to a latitude/longitude, as a GPS fix would",
		withSession(),
		mcp.WithNumber("lat", mcp.Required(), mcp.Description("Latitude in degrees")),
		mcp.WithNumber("lng", mcp.Required(), mcp.Description("Longitude in degrees")),
	), c.handleLocate)
	c.mcpServer.AddTool(tool("grab", "Take one coin from the cache at cell (i, j). The cache must be in view.",
		withCell()...,
	), c.handleGrab)
	c.mcpServer.AddTool(tool("donate", "Leave a held coin in the cache at cell (i, j). The cache must be in view.",
		append(withCell(),
			mcp.WithNumber("serial", mcp.Description("Serial of the coin to donate (optional, defaults to the oldest held coin)")),
			mcp.WithNumber("origin_i", mcp.Description("Origin row of the coin to donate (defaults to i)")),
			mcp.WithNumber("origin_j", mcp.Description("Origin column of the coin to donate (defaults to j)")),
		)...,
	), c.handleDonate)
	c.mcpServer.AddTool(tool("reset_game", "Clear all progress and return to the start cell",
		withSession(),
	), c.handleReset)
	c.mcpServer.AddTool(tool("move_history", "Get action history for a session, newest first",
		withSession(),
		mcp.WithNumber("page", mcp.Description("Page number, from 1")),
		mcp.WithNumber("limit", mcp.Description("Entries per page")),
	), c.handleMoveHistory)
	c.mcpServer.AddTool(tool("describe_cell", "Describe one cell: whether a cache spawns there, its initial value, its state and coins.",
		withCell()...,
	), c.handleDescribeCell)

	c.mcpServer.AddTool(tool("list_configs", "List the world configurations a session can use"), c.handleListConfigs)
	c.mcpServer.AddTool(tool("game_instructions", "Get the full rules of the game"), c.handleGameInstructions)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// apiError is the REST API's error body
type apiError struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// apiCall sends body as JSON and decodes the response into result
func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp apiError
		json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error != "" {
			return fmt.Errorf("%s", errResp.Error)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		args = map[string]interface{}{}
	}
	return args
}

func sessionPath(args map[string]interface{}, suffix string) string {
	sessionID, _ := args["session_id"].(string)
	return "/api/sessions/" + url.PathEscape(sessionID) + suffix
}

// cellArgs reads the required i and j arguments
func cellArgs(args map[string]interface{}) (i, j int, err error) {
	if i, err = cast.ToIntE(args["i"]); err != nil || args["i"] == nil {
		return 0, 0, fmt.Errorf("argument i must be an integer")
	}
	if j, err = cast.ToIntE(args["j"]); err != nil || args["j"] == nil {
		return 0, 0, fmt.Errorf("argument j must be an integer")
	}
	return i, j, nil
}


func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	configID, _ := args["config_id"].(string)

	body := map[string]string{}
	if configID != "" {
		body["config_id"] = configID
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Created session: %s\nConfig: %s\n\n%s",
		session.ID, session.ConfigName, formatGameState(session.GameState))), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}
	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		coins := 0
		if s.GameState != nil {
			coins = s.GameState.InventoryCount
		}
		result += fmt.Sprintf("- %s (Config: %s, Coins: %d, Created: %s)\n",
			s.ID, s.ConfigName, coins, s.CreatedAt.Format("15:04:05"))
	}
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGameState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var state engine.GameState
	if err := c.apiCall(ctx, "GET", sessionPath(arguments(request), "/state"), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatGameState(&state)), nil
}

func (c *Client) handleMove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	direction, _ := args["direction"].(string)
	reset, _ := args["reset"].(bool)
	// The intent argument is for the caller's benefit only

	body := map[string]interface{}{
		"direction": direction,
		"reset":     reset,
	}

	var result service.MoveResult
	if err := c.apiCall(ctx, "POST", sessionPath(args, "/move"), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatMoveResult(&result)), nil
}

func (c *Client) handleLocate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	lat, errLat := cast.ToFloat64E(args["lat"])
	lng, errLng := cast.ToFloat64E(args["lng"])
	if errLat != nil || errLng != nil || args["lat"] == nil || args["lng"] == nil {
		return mcp.NewToolResultError("arguments lat and lng must be numbers"), nil
	}

	var result service.MoveResult
	body := map[string]float64{"lat": lat, "lng": lng}
	if err := c.apiCall(ctx, "POST", sessionPath(args, "/locate"), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatMoveResult(&result)), nil
}

func (c *Client) handleGrab(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	i, j, err := cellArgs(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var result service.ActionResult
	if err := c.apiCall(ctx, "POST", sessionPath(args, "/grab"), map[string]int{"i": i, "j": j}, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatActionResult("Grabbed", &result)), nil
}

func (c *Client) handleDonate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	i, j, err := cellArgs(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	body := map[string]int{"i": i, "j": j}
	for _, key := range []string{"serial", "origin_i", "origin_j"} {
		if args[key] == nil {
			continue
		}
		v, err := cast.ToIntE(args[key])
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("argument %s must be an integer", key)), nil
		}
		body[key] = v
	}

	var result service.ActionResult
	if err := c.apiCall(ctx, "POST", sessionPath(args, "/donate"), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatActionResult("Donated", &result)), nil
}

func (c *Client) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Message string            `json:"message"`
		State   *engine.GameState `json:"state"`
	}
	if err := c.apiCall(ctx, "POST", sessionPath(arguments(request), "/reset"), nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s\n\n%s", response.Message, formatGameState(response.State))), nil
}

func (c *Client) handleMoveHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	query := url.Values{}
	if page := cast.ToInt(args["page"]); page > 0 {
		query.Set("page", fmt.Sprint(page))
	}
	if limit := cast.ToInt(args["limit"]); limit > 0 {
		query.Set("limit", fmt.Sprint(limit))
	}

	path := sessionPath(args, "/history")
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var history service.HistoryResponse
	if err := c.apiCall(ctx, "GET", path, nil, &history); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatHistory(&history)), nil
}

func (c *Client) handleListConfigs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var configs []service.ConfigInfo
	if err := c.apiCall(ctx, "GET", "/api/configs", nil, &configs); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := "Available Configurations:\n\n"
	for _, cfg := range configs {
		result += fmt.Sprintf("- %s: %s\n  %s\n  tile=%g° vision=%d spawn=%.0f%% start=(%.6f, %.6f)\n",
			cfg.ConfigID, cfg.Name, cfg.Description,
			cfg.TileDegrees, cfg.VisionRadius, cfg.SpawnProbability*100, cfg.Start.Lat, cfg.Start.Lng)
	}
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleDescribeCell(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	i, j, err := cellArgs(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var info engine.CellInfo
	if err := c.apiCall(ctx, "GET", sessionPath(args, fmt.Sprintf("/cells/%d/%d", i, j)), nil, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatCellInfo(&info)), nil
}

func (c *Client) handleGameInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(gameInstructions), nil
}
