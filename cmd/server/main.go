package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aquario/treesim/simulator"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for development
		return true
	},
}

// Client message types
type ClientMessage struct {
	Type   string               `json:"type"`
	Config *simulator.SimConfig `json:"config,omitempty"`
}

// Server message types
type ServerMessage struct {
	Type      string               `json:"type"`
	SessionID string               `json:"sessionId,omitempty"`
	Running   *bool                `json:"running,omitempty"`
	Config    *simulator.SimConfig `json:"config,omitempty"`
	Metrics   *simulator.Metrics   `json:"metrics,omitempty"`
	Error     string               `json:"error,omitempty"`
}

// simState manages the simulation and its pacing. The simulator itself
// is single-threaded between ticks; the mutex arbitrates between the
// pacing loop and websocket handlers.
type simState struct {
	sim       *simulator.Simulator
	sessionID string
	running   bool
	mu        sync.Mutex
}

func newSimState(config simulator.SimConfig) (*simState, error) {
	sim, err := simulator.NewSimulator(config, nil)
	if err != nil {
		return nil, err
	}
	sim.LogEvent = func(string) {} // UI reads metrics, not log lines
	return &simState{sim: sim, sessionID: uuid.NewString()}, nil
}

func (s *simState) start() { s.mu.Lock(); s.running = true; s.mu.Unlock() }
func (s *simState) pause() { s.mu.Lock(); s.running = false; s.mu.Unlock() }

func (s *simState) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// reset replaces the simulator with a fresh one, optionally under a new
// configuration
func (s *simState) reset(config *simulator.SimConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg := s.sim.Config()
	if config != nil {
		cfg = *config
	}
	sim, err := simulator.NewSimulator(cfg, nil)
	if err != nil {
		return err
	}
	sim.LogEvent = func(string) {}
	s.sim = sim
	s.sessionID = uuid.NewString()
	s.running = false
	return nil
}

// stepSecond advances the simulation by one simulated second if running
// and not yet at the configured end
func (s *simState) stepSecond() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	cfg := s.sim.Config()
	if s.sim.Tick() >= cfg.Duration*cfg.Ticks {
		s.running = false
		return
	}
	s.sim.RunSeconds(1)
}

func (s *simState) snapshot() ServerMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	running := s.running
	cfg := s.sim.Config()
	return ServerMessage{
		Type:      "state",
		SessionID: s.sessionID,
		Running:   &running,
		Config:    &cfg,
		Metrics:   s.sim.Metrics(),
	}
}

func handleWebSocket(state *simState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("websocket upgrade: %v", err)
			return
		}
		defer conn.Close()

		// Reader: control messages from the client
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				_, data, err := conn.ReadMessage()
				if err != nil {
					return
				}
				var msg ClientMessage
				if err := json.Unmarshal(data, &msg); err != nil {
					log.Printf("bad client message: %v", err)
					continue
				}
				switch msg.Type {
				case "start":
					state.start()
				case "pause":
					state.pause()
				case "reset":
					if err := state.reset(msg.Config); err != nil {
						log.Printf("reset: %v", err)
					}
				}
			}
		}()

		// Writer: push a state snapshot twice a second
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				snap := state.snapshot()
				if err := conn.WriteJSON(snap); err != nil {
					return
				}
			}
		}
	}
}

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	configFile := flag.String("config", "", "Optional JSON config file for the initial simulation")
	flag.Parse()

	config := simulator.DefaultConfig()
	if *configFile != "" {
		raw, err := os.ReadFile(*configFile)
		if err != nil {
			log.Fatalf("read config: %v", err)
		}
		if err := json.Unmarshal(raw, &config); err != nil {
			log.Fatalf("parse config: %v", err)
		}
	}

	state, err := newSimState(config)
	if err != nil {
		log.Fatalf("create simulator: %v", err)
	}

	initPrometheusMetrics()

	// Pacing loop: one simulated second per real half-second while
	// running, with Prometheus gauges refreshed after each step.
	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for range ticker.C {
			state.stepSecond()
			updatePrometheusMetrics(state.snapshot().Metrics)
		}
	}()

	http.HandleFunc("/ws", handleWebSocket(state))
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "treesim server: connect a websocket client to /ws, metrics at /metrics\n")
	})

	log.Printf("treesim server listening on %s", *addr)
	log.Fatal(http.ListenAndServe(*addr, nil))
}
