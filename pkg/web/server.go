// Package web serves a live dashboard for the fusion engine: current tick
// state over websocket plus REST endpoints for the scene and learned policy.
package web

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/cobotix/go-gazebot/internal/log"
	"github.com/cobotix/go-gazebot/pkg/engine"
	"github.com/cobotix/go-gazebot/pkg/sim"
)

// EventEntry is one row in the dashboard's event feed.
type EventEntry struct {
	Time    string `json:"time"`
	Type    string `json:"type"` // select, calibration, info
	Message string `json:"message"`
}

// Server is the dashboard server. It implements engine.Publisher, so it can
// be handed to the runner alongside MQTT.
type Server struct {
	app  *fiber.App
	port string

	state   engine.Telemetry
	stateMu sync.RWMutex

	events   []EventEntry
	eventsMu sync.RWMutex

	stateHub *hub
	eventHub *hub

	// Targets supplies the current scene for /api/targets.
	Targets func() []sim.Target

	// PolicySnapshot returns the serialized Q-table for /api/policy.
	PolicySnapshot func() ([]byte, error)

	// OnRecalibrate is invoked by POST /api/recalibrate. It should enqueue
	// the request, not run the session inline.
	OnRecalibrate func() error
}

// NewServer builds the dashboard on the given port.
func NewServer(port string) *Server {
	s := &Server{
		port:     port,
		events:   make([]EventEntry, 0, 200),
		stateHub: newHub("state"),
		eventHub: newHub("events"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Gazebot Dashboard",
		DisableStartupMessage: true,
	})

	app.Use(cors.New())
	app.Static("/", "./web")

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/targets", s.handleTargets)
	api.Get("/policy", s.handlePolicy)
	api.Get("/events", s.handleEvents)
	api.Post("/recalibrate", s.handleRecalibrate)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/state", websocket.New(func(c *websocket.Conn) {
		s.stateHub.serve(c)
	}))
	app.Get("/ws/events", websocket.New(func(c *websocket.Conn) {
		s.eventHub.serve(c)
	}))

	s.app = app
	return s
}

// Start blocks serving the dashboard.
func (s *Server) Start() error {
	go s.stateHub.run()
	go s.eventHub.run()

	log.Info("dashboard listening", "port", s.port)
	return s.app.Listen(":" + s.port)
}

// StartAsync serves in the background.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			log.Error("dashboard server failed", "error", err)
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// Publish implements engine.Publisher: store the latest tick and stream it
// to connected sockets. Selections also land in the event feed.
func (s *Server) Publish(t engine.Telemetry) {
	s.stateMu.Lock()
	s.state = t
	s.stateMu.Unlock()

	s.stateHub.broadcastJSON(t)

	if t.Action != "noop" {
		s.AddEvent("select", t.Action)
	}
}

// AddEvent appends to the bounded event feed and streams it out.
func (s *Server) AddEvent(eventType, message string) {
	entry := EventEntry{
		Time:    time.Now().Format("15:04:05"),
		Type:    eventType,
		Message: message,
	}

	s.eventsMu.Lock()
	s.events = append(s.events, entry)
	if len(s.events) > 200 {
		s.events = s.events[1:]
	}
	s.eventsMu.Unlock()

	s.eventHub.broadcastJSON(entry)
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return c.JSON(s.state)
}

func (s *Server) handleTargets(c *fiber.Ctx) error {
	if s.Targets == nil {
		return c.JSON([]sim.Target{})
	}
	return c.JSON(s.Targets())
}

func (s *Server) handlePolicy(c *fiber.Ctx) error {
	if s.PolicySnapshot == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "policy not available"})
	}
	data, err := s.PolicySnapshot()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	c.Set("Content-Type", "application/json")
	return c.Send(data)
}

func (s *Server) handleEvents(c *fiber.Ctx) error {
	s.eventsMu.RLock()
	defer s.eventsMu.RUnlock()
	return c.JSON(s.events)
}

func (s *Server) handleRecalibrate(c *fiber.Ctx) error {
	if s.OnRecalibrate == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "recalibration not configured"})
	}
	if err := s.OnRecalibrate(); err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}
	s.AddEvent("calibration", "recalibration requested")
	return c.JSON(fiber.Map{"status": "queued"})
}
