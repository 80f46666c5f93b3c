// Package api provides the HTTP REST API for the geocoin hunt.
//
// Endpoints:
//
// Session Management:
//   - POST /api/sessions - Create a session ({"config_id": "classic"})
//   - GET /api/sessions - List sessions (?sort=created|accessed&order=asc|desc&limit=N)
//   - GET /api/sessions/{id} - Get a session
//   - DELETE /api/sessions/{id} - Delete a session and its stored progress
//
// Game Operations:
//   - GET /api/sessions/{id}/state - Current GameState
//   - POST /api/sessions/{id}/move - Move one tile ({"direction": "north", "reset": false})
//   - POST /api/sessions/{id}/bulk-move - Several moves ({"moves": ["north", "east"]})
//   - POST /api/sessions/{id}/locate - Jump to a sensed position ({"lat": 36.98, "lng": -122.06})
//   - POST /api/sessions/{id}/grab - Take a coin from a cache ({"i": 369894, "j": -1220628})
//   - POST /api/sessions/{id}/donate - Leave a coin ({"i", "j"} plus optional "serial", "origin_i", "origin_j")
//   - POST /api/sessions/{id}/reset - Clear progress and return to the start
//   - GET /api/sessions/{id}/history - Paginated move history (?page=1&limit=20&order=desc)
//   - GET /api/sessions/{id}/cells/{i}/{j} - Describe one cell
//
// Configuration:
//   - GET /api/configs - List available configurations
//   - GET /api/configs/{name} - Get one configuration
//   - POST /api/configs - Save a configuration
//
// Other:
//   - GET /api/health - Liveness check
//   - GET /ws?session={id} - WebSocket state updates
//
// Error Handling:
//
// Errors are returned as JSON with an HTTP status code:
//
//	{
//	  "error": "grab at 369894,-1220628: cache is empty",
//	  "code": 409
//	}
//
// Unknown sessions and configs map to 404. Refused cache actions (empty cache,
// cell out of range, empty inventory, coin not held) map to 409 Conflict.
//
// Usage:
//
//	server := api.NewServer(gameService, hub)
//	http.ListenAndServe(":8080", server)
package api
