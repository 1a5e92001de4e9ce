// Command plannerd is the HTTP shell around the LD-PRM planner: it
// ingests grid_stream/pose_stream frames, serves the goal_request
// service, and publishes overlay_out/path_out (spec.md §6).
//
// Grounded on the teacher's main.go end to end: corsMiddleware,
// banner+emoji log.Printf style, bare net/http.HandleFunc wiring, and
// JSON request/response structs — re-targeted from drone routing onto
// the planner's stream/service/publish surface.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/png"
	"log"
	"net/http"
	"sync"

	"ldprm/internal/config"
	"ldprm/internal/geo"
	"ldprm/internal/grid"
	"ldprm/internal/plannerloop"
	"ldprm/internal/roadmap"
	"ldprm/internal/worldbuffer"
)

// corsMiddleware adds CORS headers to allow frontend requests.
func corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// gridFrame is the grid_stream wire shape (spec.md §6).
type gridFrame struct {
	Bytes      string  `json:"bytes"` // base64, row-major, 8 bits per cell
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Resolution float64 `json:"resolution"`
	ReferenceX float64 `json:"referenceX"`
	ReferenceY float64 `json:"referenceY"`
}

// poseFrame is the pose_stream wire shape (spec.md §6).
type poseFrame struct {
	Position struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
		Z float64 `json:"z"`
	} `json:"position"`
}

// goalRequest is the goal_request wire shape (spec.md §6).
type goalRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type goalResponse struct {
	Ack bool `json:"ack"`
}

// publisher holds the most recently published overlay/path, guarded by a
// mutex the same way the teacher guards globalPRMGraph with prmMutex.
type publisher struct {
	mu      sync.RWMutex
	overlay image.Image
	path    []geo.WorldOrd
	pathZ   float64
}

func (p *publisher) setOverlay(img image.Image) {
	p.mu.Lock()
	p.overlay = img
	p.mu.Unlock()
}

func (p *publisher) setPath(path []geo.WorldOrd, z float64) {
	p.mu.Lock()
	p.path = path
	p.pathZ = z
	p.mu.Unlock()
}

func (p *publisher) overlayHandler(w http.ResponseWriter, r *http.Request) {
	p.mu.RLock()
	img := p.overlay
	p.mu.RUnlock()

	if img == nil {
		http.Error(w, "no overlay published yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, img); err != nil {
		log.Printf("❌ failed to encode overlay: %v\n", err)
	}
}

func (p *publisher) pathHandler(w http.ResponseWriter, r *http.Request) {
	p.mu.RLock()
	path, z := p.path, p.pathZ
	p.mu.RUnlock()

	type waypoint struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
		Z float64 `json:"z"`
	}
	out := make([]waypoint, len(path))
	for i, ord := range path {
		out[i] = waypoint{X: ord.X(), Y: ord.Y(), Z: z}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"waypoints": out,
	})
}

func gridHandler(wb *worldbuffer.WorldBuffer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var f gridFrame
		if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
			log.Printf("❌ invalid grid frame: %v\n", err)
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		cells, err := base64.StdEncoding.DecodeString(f.Bytes)
		if err != nil || len(cells) != f.Width*f.Height {
			log.Println("❌ malformed grid bytes")
			http.Error(w, "Malformed grid bytes", http.StatusBadRequest)
			return
		}

		reference := geo.NewWorldOrd(f.ReferenceX, f.ReferenceY)
		g := grid.New(f.Width, f.Height, f.Resolution, reference, cells)
		wb.PushGrid(g)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	}
}

func poseHandler(wb *worldbuffer.WorldBuffer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var f poseFrame
		if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
			log.Printf("❌ invalid pose frame: %v\n", err)
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		wb.PushPose(worldbuffer.Pose{
			Position: geo.NewWorldOrd(f.Position.X, f.Position.Y),
			Z:        f.Position.Z,
		})

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	}
}

// goalHandler implements goal_request: it always acknowledges, even for a
// goal that will later turn out to be inaccessible (spec.md §7
// GoalInaccessible: "the service still ACKed true").
func goalHandler(loop *plannerloop.PlannerLoop) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Println("========================================")
		log.Println("📍 Goal request received")

		if r.Method != http.MethodPost {
			log.Printf("❌ Method not allowed: %s\n", r.Method)
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req goalRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Printf("❌ Invalid request body: %v\n", err)
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		log.Printf("   Goal: (%.3f, %.3f)\n", req.X, req.Y)
		loop.RequestGoal(geo.NewWorldOrd(req.X, req.Y))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(goalResponse{Ack: true})
		log.Println("========================================")
	}
}

func healthHandler(loop *plannerloop.PlannerLoop) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": loop.State().String(),
		})
	}
}

func main() {
	log.Println("========================================")
	log.Println("🚀 LD-PRM Motion Planner")
	log.Println("========================================")

	cfg := config.Config{}.WithDefaults()
	wb := worldbuffer.New()
	rm := roadmap.New(cfg, geo.NewWorldOrd(0, 0))
	loop := plannerloop.New(wb, rm, cfg.MaxRetries)

	pub := &publisher{}
	loop.PublishOverlay = pub.setOverlay
	loop.PublishPath = pub.setPath

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	http.HandleFunc("/grid", corsMiddleware(gridHandler(wb)))
	http.HandleFunc("/pose", corsMiddleware(poseHandler(wb)))
	http.HandleFunc("/goal", corsMiddleware(goalHandler(loop)))
	http.HandleFunc("/overlay", corsMiddleware(pub.overlayHandler))
	http.HandleFunc("/path", corsMiddleware(pub.pathHandler))
	http.HandleFunc("/health", corsMiddleware(healthHandler(loop)))

	log.Println("Server starting on :8080")
	log.Println("")
	log.Println("Endpoints:")
	log.Println("  POST /grid     - push an occupancy grid frame")
	log.Println("  POST /pose     - push a robot pose frame")
	log.Println("  POST /goal     - request a path to a new goal")
	log.Println("  GET  /overlay  - fetch the latest roadmap overlay (PNG)")
	log.Println("  GET  /path     - fetch the latest planned waypoints")
	log.Println("  GET  /health   - check planner state")
	log.Println("")
	log.Println("CORS enabled for all origins")
	log.Println("========================================")

	if err := http.ListenAndServe(":8080", nil); err != nil {
		log.Fatal(err)
	}
}
