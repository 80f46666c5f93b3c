package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/wricardo/mcp-training/geocoins/game/engine"
	"github.com/wricardo/mcp-training/geocoins/game/grid"
	"github.com/wricardo/mcp-training/geocoins/game/ledger"
	"github.com/wricardo/mcp-training/geocoins/game/service"
	"github.com/wricardo/mcp-training/geocoins/transport/websocket"
)

// Server exposes the game service over HTTP under /api
type Server struct {
	service service.GameService
	hub     *websocket.Hub
	router  *mux.Router
}

// NewServer creates a new API server. hub may be nil.
func NewServer(gameService service.GameService, hub *websocket.Hub) *Server {
	s := &Server{
		service: gameService,
		hub:     hub,
		router:  mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	// sessions
	api.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	api.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods("DELETE")

	// play
	api.HandleFunc("/sessions/{id}/state", s.handleGetGameState).Methods("GET")
	api.HandleFunc("/sessions/{id}/move", s.handleMove).Methods("POST")
	api.HandleFunc("/sessions/{id}/bulk-move", s.handleBulkMove).Methods("POST")
	api.HandleFunc("/sessions/{id}/locate", s.handleLocate).Methods("POST")
	api.HandleFunc("/sessions/{id}/grab", s.handleGrab).Methods("POST")
	api.HandleFunc("/sessions/{id}/donate", s.handleDonate).Methods("POST")
	api.HandleFunc("/sessions/{id}/reset", s.handleReset).Methods("POST")
	api.HandleFunc("/sessions/{id}/history", s.handleGetHistory).Methods("GET")
	api.HandleFunc("/sessions/{id}/cells/{i}/{j}", s.handleDescribeCell).Methods("GET")

	// configs
	api.HandleFunc("/configs", s.handleListConfigs).Methods("GET")
	api.HandleFunc("/configs", s.handleCreateConfig).Methods("POST")
	api.HandleFunc("/configs/{name}", s.handleGetConfig).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{"error": message, "code": status})
}

// errorStatus maps service and ledger errors to HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, service.ErrConfigNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrEmptyCache),
		errors.Is(err, ledger.ErrNotMaterialized),
		errors.Is(err, ledger.ErrEmptyInventory),
		errors.Is(err, ledger.ErrTokenNotHeld):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondServiceError(w http.ResponseWriter, err error) {
	respondError(w, errorStatus(err), err.Error())
}

func (s *Server) broadcast(sessionID string, state *engine.GameState, events []service.GameEvent) {
	if s.hub != nil && state != nil {
		s.hub.BroadcastToSession(sessionID, state, events...)
	}
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConfigID   string `json:"config_id,omitempty"`
		ConfigName string `json:"config_name,omitempty"` // older clients
	}

	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	configID := req.ConfigID
	if configID == "" && req.ConfigName != "" {
		configID = req.ConfigName
	}

	session, err := s.service.CreateSession(r.Context(), configID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, session)
}

// listQuery holds the sort/order/limit parameters of GET /api/sessions
type listQuery struct {
	sortBy string // created | accessed
	order  string // asc | desc
	limit  int    // 0 means all
}

func parseListQuery(r *http.Request) listQuery {
	q := r.URL.Query()
	lq := listQuery{sortBy: "accessed", order: "desc"}
	if q.Get("sort") == "created" {
		lq.sortBy = "created"
	}
	if q.Get("order") == "asc" {
		lq.order = "asc"
	}
	lq.limit = positiveInt(q.Get("limit"), 0)
	return lq
}

// positiveInt parses raw, returning def unless it is a positive integer
func positiveInt(raw string, def int) int {
	if n, err := strconv.Atoi(raw); err == nil && n > 0 {
		return n
	}
	return def
}

func (lq listQuery) apply(sessions []*service.SessionInfo) []*service.SessionInfo {
	stamp := func(s *service.SessionInfo) time.Time {
		if lq.sortBy == "created" {
			return s.CreatedAt
		}
		return s.LastAccessedAt
	}
	sort.SliceStable(sessions, func(a, b int) bool {
		if lq.order == "asc" {
			return stamp(sessions[a]).Before(stamp(sessions[b]))
		}
		return stamp(sessions[a]).After(stamp(sessions[b]))
	})
	if lq.limit > 0 && lq.limit < len(sessions) {
		sessions = sessions[:lq.limit]
	}
	return sessions
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	all, err := s.service.ListSessions(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	lq := parseListQuery(r)
	page := lq.apply(all)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(page),
		"total":    len(all),
		"sessions": page,
		"sort":     lq.sortBy,
		"order":    lq.order,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	session, err := s.service.GetSession(r.Context(), sessionID)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, session)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	if err := s.service.DeleteSession(r.Context(), sessionID); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	if s.hub != nil {
		s.hub.BroadcastEvent(sessionID, "session_deleted", map[string]string{"id": sessionID})
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Session %s deleted", sessionID),
	})
}

func (s *Server) handleGetGameState(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	state, err := s.service.GetGameState(r.Context(), sessionID)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, state)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req struct {
		Direction string `json:"direction"`
		Reset     bool   `json:"reset,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.service.Move(r.Context(), sessionID, req.Direction, req.Reset)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	s.broadcast(sessionID, result.GameState, result.Events)

	if step := result.Step; step != nil {
		status := "FAIL"
		if result.Success {
			status = "OK"
		}
		log.Printf("[MOVE] session=%s %s %s->%s caches=%d +%d -%d status=%s",
			sessionID, step.Dir, step.From, step.To, step.CachesInView, step.Appeared, step.Archived, status)
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleBulkMove(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req struct {
		Moves []string `json:"moves"`
		Reset bool     `json:"reset,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.service.BulkMove(r.Context(), sessionID, req.Moves, req.Reset)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	s.broadcast(sessionID, result.GameState, result.Events)

	log.Printf("[BULK] session=%s exec=%d/%d stopped_on=%d end=%s",
		sessionID, result.MovesExecuted, result.RequestedMoves, result.StoppedOnMove, result.EndCell)

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleLocate(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req struct {
		Lat *float64 `json:"lat"`
		Lng *float64 `json:"lng"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Lat == nil || req.Lng == nil {
		respondError(w, http.StatusBadRequest, "Request body must carry lat and lng")
		return
	}

	result, err := s.service.Locate(r.Context(), sessionID, grid.Point{Lat: *req.Lat, Lng: *req.Lng})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	s.broadcast(sessionID, result.GameState, result.Events)
	respondJSON(w, http.StatusOK, result)
}

// cellRequest names a cache cell and optionally one coin
type cellRequest struct {
	I       *int `json:"i"`
	J       *int `json:"j"`
	Serial  *int `json:"serial,omitempty"`
	OriginI *int `json:"origin_i,omitempty"`
	OriginJ *int `json:"origin_j,omitempty"`
}

func (c cellRequest) cell() (grid.Cell, bool) {
	if c.I == nil || c.J == nil {
		return grid.Cell{}, false
	}
	return grid.Cell{Row: *c.I, Col: *c.J}, true
}

// token returns the coin named by the request; a missing origin defaults to the cell
func (c cellRequest) token(cell grid.Cell) *ledger.TokenID {
	if c.Serial == nil {
		return nil
	}
	id := ledger.TokenID{Row: cell.Row, Col: cell.Col, Serial: *c.Serial}
	if c.OriginI != nil {
		id.Row = *c.OriginI
	}
	if c.OriginJ != nil {
		id.Col = *c.OriginJ
	}
	return &id
}

func (s *Server) handleGrab(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req cellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	cell, ok := req.cell()
	if !ok {
		respondError(w, http.StatusBadRequest, "Request body must carry i and j")
		return
	}

	result, err := s.service.Grab(r.Context(), sessionID, cell)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	s.broadcast(sessionID, result.GameState, result.Events)
	log.Printf("[GRAB] session=%s cell=%s token=%s", sessionID, cell, result.Token.ID)
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleDonate(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req cellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	cell, ok := req.cell()
	if !ok {
		respondError(w, http.StatusBadRequest, "Request body must carry i and j")
		return
	}

	result, err := s.service.Donate(r.Context(), sessionID, cell, req.token(cell))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	s.broadcast(sessionID, result.GameState, result.Events)
	log.Printf("[DONATE] session=%s cell=%s token=%s", sessionID, cell, result.Token.ID)
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	state, err := s.service.Reset(r.Context(), sessionID)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	s.broadcast(sessionID, state, []service.GameEvent{service.NewEvent("reset", state.Message)})

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Game reset successfully",
		"state":   state,
	})
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	q := r.URL.Query()
	opts := service.HistoryOptions{
		Page:  positiveInt(q.Get("page"), 1),
		Limit: positiveInt(q.Get("limit"), 20),
		Order: "desc",
	}
	if q.Get("order") == "asc" {
		opts.Order = "asc"
	}

	history, err := s.service.GetMoveHistory(r.Context(), sessionID, opts)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, history)
}

func (s *Server) handleDescribeCell(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	row, errI := strconv.Atoi(vars["i"])
	col, errJ := strconv.Atoi(vars["j"])
	if errI != nil || errJ != nil {
		respondError(w, http.StatusBadRequest, "Cell indices must be integers")
		return
	}

	info, err := s.service.DescribeCell(r.Context(), vars["id"], grid.Cell{Row: row, Col: col})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.service.ListConfigs(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, configs)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	configName := mux.Vars(r)["name"]

	for _, ext := range []string{".json", ".yaml", ".yml"} {
		configName = strings.TrimSuffix(configName, ext)
	}

	config, err := s.service.LoadConfig(r.Context(), configName)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, config)
}

func (s *Server) handleCreateConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConfigID string `json:"config_id"`
		engine.GameConfig
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	gameConfig := req.GameConfig
	engine.ApplyDefaults(&gameConfig)
	if err := engine.ValidateGameConfig(&gameConfig); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	configID := req.ConfigID
	if configID == "" {
		configID = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(gameConfig.Name), " ", "-"))
	}
	if strings.ContainsAny(configID, `/\`) {
		respondError(w, http.StatusBadRequest, "config_id may not contain path separators")
		return
	}

	if err := s.service.SaveConfig(r.Context(), configID+".json", &gameConfig); err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to save config: %v", err))
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message":   "Configuration saved successfully",
		"config_id": configID,
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "session parameter required", http.StatusBadRequest)
		return
	}
	if s.hub == nil {
		http.Error(w, "WebSocket updates are disabled", http.StatusServiceUnavailable)
		return
	}

	if _, err := s.service.GetSession(r.Context(), sessionID); err != nil {
		http.Error(w, "Invalid session", http.StatusNotFound)
		return
	}

	s.hub.ServeWS(w, r, sessionID)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
