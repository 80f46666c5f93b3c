// Command geocoins starts the Geocoin Hunt server.
//
// It supports two modes:
//  1. "server" (default) – runs the HTTP server exposing REST API, WebSocket, and an /mcp HTTP endpoint
//  2. "stdio-mcp" – runs an MCP stdio server and spins up an internal HTTP API if none is available
//
// Settings come from the environment (and a .env file), overridable by flags:
// host/port, config directory, store driver and path, debug logging, version
// output, and optional ngrok tunneling for external access during development.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/mcp-training/geocoins/api"
	"github.com/wricardo/mcp-training/geocoins/game/config"
	"github.com/wricardo/mcp-training/geocoins/game/service"
	"github.com/wricardo/mcp-training/geocoins/game/session"
	"github.com/wricardo/mcp-training/geocoins/game/store"
	"github.com/wricardo/mcp-training/geocoins/transport/mcp"
	"github.com/wricardo/mcp-training/geocoins/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Geocoin Hunt Server"
)

// Settings control how the server starts and which services are enabled.
type Settings struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	Host        string `env:"HOST" envDefault:"localhost"`
	ConfigDir   string `env:"CONFIG_DIR" envDefault:"configs"`
	StoreDriver string `env:"STORE_DRIVER" envDefault:"sqlite"`
	StorePath   string `env:"STORE_PATH" envDefault:"geocoins.db"`
	Debug       bool   `env:"DEBUG"`
	Version     bool

	NgrokEnabled bool   `env:"NGROK_ENABLED"`
	NgrokAuth    string `env:"NGROK_AUTHTOKEN"`
	NgrokDomain  string `env:"NGROK_DOMAIN"`

	SessionMaxAge   time.Duration `env:"SESSION_MAX_AGE" envDefault:"24h"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"1h"`
}

// parseSettings reads the environment, then applies flags from args.
// It returns the settings and the selected mode.
func parseSettings(args []string) (*Settings, string, error) {
	s := &Settings{}
	if err := env.Parse(s); err != nil {
		return nil, "", fmt.Errorf("parse env: %w", err)
	}
	if s.NgrokAuth == "" {
		s.NgrokAuth = os.Getenv("NGROK_AUTH_TOKEN")
	}

	fs := flag.NewFlagSet("geocoins", flag.ContinueOnError)
	fs.IntVar(&s.Port, "port", s.Port, "HTTP server port")
	fs.StringVar(&s.Host, "host", s.Host, "HTTP server host")
	fs.StringVar(&s.ConfigDir, "config-dir", s.ConfigDir, "Directory containing game configurations")
	fs.StringVar(&s.StoreDriver, "store", s.StoreDriver, "Progress store driver (memory, file, sqlite)")
	fs.StringVar(&s.StorePath, "store-path", s.StorePath, "Progress store path (directory for file, database for sqlite)")
	fs.BoolVar(&s.Debug, "debug", s.Debug, "Enable debug logging")
	fs.BoolVar(&s.Version, "version", false, "Show version information")
	fs.BoolVar(&s.NgrokEnabled, "ngrok", s.NgrokEnabled, "Enable ngrok tunnel")
	fs.StringVar(&s.NgrokAuth, "ngrok-auth", s.NgrokAuth, "Ngrok auth token (or use NGROK_AUTHTOKEN env var)")
	fs.StringVar(&s.NgrokDomain, "ngrok-domain", s.NgrokDomain, "Custom ngrok domain (optional)")
	fs.Usage = func() { usage(fs) }

	if err := fs.Parse(args); err != nil {
		return nil, "", err
	}

	mode := "server"
	if fs.NArg() > 0 {
		mode = fs.Arg(0)
	}
	return s, mode, nil
}

func usage(fs *flag.FlagSet) {
	out := fs.Output()
	fmt.Fprintf(out, "Usage: %s [OPTIONS] [MODE]\n\n", os.Args[0])
	fmt.Fprintf(out, "%s v%s\n\n", AppName, Version)
	fmt.Fprintf(out, "Available modes:\n")
	fmt.Fprintf(out, "  server, http     Run HTTP server with API, WebSocket, and MCP endpoint (default)\n")
	fmt.Fprintf(out, "  stdio-mcp        Run MCP stdio server with internal HTTP server\n")
	fmt.Fprintf(out, "  mcp-stdio, mcp   Aliases for stdio-mcp\n")
	fmt.Fprintf(out, "\nOptions:\n")
	fs.PrintDefaults()
	fmt.Fprintf(out, "\nExamples:\n")
	fmt.Fprintf(out, "  %s                          # Run HTTP server on default port 8080\n", os.Args[0])
	fmt.Fprintf(out, "  %s -store memory            # Keep progress in memory only\n", os.Args[0])
	fmt.Fprintf(out, "  %s -store file -store-path data  # One zstd file per key under ./data\n", os.Args[0])
	fmt.Fprintf(out, "  %s mcp -port 9090           # Run MCP stdio server with internal HTTP on port 9090\n", os.Args[0])
}

// services bundles what the server modes need
type services struct {
	game     service.GameService
	sessions *session.Manager
	store    store.Store
}

// main parses settings, initializes services, and starts the selected mode.
func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Warning: Error loading .env file: %v", err)
		}
	} else {
		log.Println("Loaded environment variables from .env file")
	}

	settings, mode, err := parseSettings(os.Args[1:])
	if err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		log.Fatalf("Invalid settings: %v", err)
	}

	if settings.Version {
		fmt.Printf("%s v%s\n", AppName, Version)
		os.Exit(0)
	}

	if settings.Debug {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	} else {
		log.SetFlags(log.LstdFlags)
	}

	log.Printf("Starting %s v%s (mode: %s)", AppName, Version, mode)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	svc, err := initializeServices(ctx, settings)
	if err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}
	defer svc.shutdown()

	switch mode {
	case "stdio-mcp", "mcp-stdio", "mcp":
		runStdioMCPWithInternalServer(ctx, settings, svc.game)

	case "server", "http":
		runHTTPServer(ctx, settings, svc.game)

	default:
		log.Printf("Unknown mode: %s. Use 'server' (default) or 'stdio-mcp'", mode)
	}
}

// initializeServices opens the progress store and wires config/session
// managers and the game service. It also starts a background cleanup routine
// that prunes stale sessions until ctx is cancelled.
func initializeServices(ctx context.Context, settings *Settings) (*services, error) {
	configManager, err := config.NewManager(settings.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}

	base, err := store.Open(settings.StoreDriver, settings.StorePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", settings.StoreDriver, err)
	}
	log.Printf("Progress store: %s (%s)", settings.StoreDriver, settings.StorePath)

	persistence := session.NewStorePersistence(base)
	sessionManager := session.NewManagerWithPersistence(base, persistence, configManager)

	if err := sessionManager.LoadPersistedSessions(ctx); err != nil {
		log.Printf("Warning: Failed to load persisted sessions: %v", err)
	}

	gameService := service.NewGameService(sessionManager, configManager)

	go sessionCleanupRoutine(ctx, sessionManager, settings.CleanupInterval, settings.SessionMaxAge)

	return &services{
		game:     gameService,
		sessions: sessionManager,
		store:    base,
	}, nil
}

// shutdown flushes every session and closes the store
func (s *services) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.sessions.SaveAllSessions(ctx); err != nil {
		log.Printf("Failed to save sessions on shutdown: %v", err)
	}
	if err := s.store.Close(); err != nil {
		log.Printf("Failed to close store: %v", err)
	}
}

// sessionCleanupRoutine periodically drops sessions from memory that have not
// been accessed within maxAge. Their progress stays in the store.
func sessionCleanupRoutine(ctx context.Context, manager *session.Manager, interval, maxAge time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := manager.CleanupExpiredSessions(maxAge); removed > 0 {
				log.Printf("Cleaned up %d expired sessions", removed)
			}
		}
	}
}

// newMCPHandler serves JSON-RPC messages for the MCP server over plain HTTP POST.
func newMCPHandler(mcpClient *mcp.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	}
}

// newRouter mounts the REST API at the root and the MCP endpoint at /mcp.
func newRouter(gameService service.GameService, hub *websocket.Hub, baseURL string) http.Handler {
	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", api.NewServer(gameService, hub))
	mainRouter.HandleFunc("/mcp", newMCPHandler(mcp.NewClient(baseURL)))
	return mainRouter
}

// runHTTPServer starts the HTTP server with REST API, WebSocket hub, and an /mcp proxy endpoint.
// If ngrok is enabled, it also provisions a public tunnel. It returns once ctx is cancelled.
func runHTTPServer(ctx context.Context, settings *Settings, gameService service.GameService) {
	hub := websocket.NewHub()
	go hub.Run(ctx)

	addr := fmt.Sprintf("%s:%d", settings.Host, settings.Port)
	mainRouter := newRouter(gameService, hub, fmt.Sprintf("http://%s", addr))

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mainRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()

		log.Printf("HTTP server listening on %s", addr)
		log.Printf("REST API: http://%s/api", addr)
		log.Printf("WebSocket: ws://%s/ws?session=<session_id>", addr)
		log.Printf("MCP endpoint: http://%s/mcp", addr)

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server failed: %v", err)
		}
	}()

	if settings.NgrokEnabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrokTunnel(ctx, settings, mainRouter)
		}()
	}

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	wg.Wait()
	log.Println("Server stopped")
}

// runNgrokTunnel serves handler through an ngrok endpoint until ctx is cancelled.
func runNgrokTunnel(ctx context.Context, settings *Settings, handler http.Handler) {
	if settings.NgrokAuth == "" {
		log.Println("WARNING: Ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN env var)")
		return
	}

	log.Println("Starting ngrok tunnel...")

	var tunnel ngrokConfig.Tunnel
	if settings.NgrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(settings.NgrokDomain))
		log.Printf("Using custom ngrok domain: %s", settings.NgrokDomain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(settings.NgrokAuth))
	if err != nil {
		log.Printf("Failed to start ngrok tunnel: %v", err)
		return
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			log.Printf("Failed to close ngrok tunnel: %v", err)
		}
	}()

	ngrokURL := tun.URL()
	log.Printf("Ngrok tunnel established: %s", ngrokURL)
	log.Printf("  REST API (ngrok): %s/api", ngrokURL)
	log.Printf("  WebSocket (ngrok): %s/ws?session=<session_id>", ngrokURL)
	log.Printf("  MCP endpoint (ngrok): %s/mcp", ngrokURL)

	if err := http.Serve(tun, handler); err != nil && err != http.ErrServerClosed && ctx.Err() == nil {
		log.Printf("Ngrok server error: %v", err)
	}
	log.Println("Ngrok tunnel closed")
}

// runStdioMCPWithInternalServer runs an MCP stdio server.
// It tries to reuse an external API at the configured host and port; if unavailable,
// it starts a minimal internal HTTP API bound to a random loopback port and targets that.
func runStdioMCPWithInternalServer(ctx context.Context, settings *Settings, gameService service.GameService) {
	externalURL := fmt.Sprintf("http://%s:%d", settings.Host, settings.Port)
	baseURL := externalURL
	log.Printf("Checking for external API server at %s...", externalURL)

	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(externalURL + "/api/health")
	if err == nil && resp.StatusCode < 500 {
		resp.Body.Close()
		log.Printf("External API server found at %s, using it for MCP", externalURL)
	} else {
		log.Printf("No external API server found, starting internal HTTP server")

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			log.Printf("Failed to get available port: %v", err)
			return
		}
		internalAddr := listener.Addr().String()
		log.Printf("Starting internal HTTP server on %s for MCP stdio", internalAddr)

		hub := websocket.NewHub()
		go hub.Run(ctx)

		httpServer := &http.Server{Handler: api.NewServer(gameService, hub)}
		go func() {
			if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
				log.Printf("Internal HTTP server error: %v", err)
			}
		}()
		defer httpServer.Close()

		baseURL = fmt.Sprintf("http://%s", internalAddr)
	}

	mcpClient := mcp.NewClient(baseURL)
	log.Printf("MCP stdio server ready (API at %s)", baseURL)

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		log.Printf("MCP stdio server error: %v", err)
	}
}
