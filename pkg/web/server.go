// Package web exposes call control and observation over HTTP: a small
// JSON API to place, answer, and end calls, and a websocket feed of
// live call events for dashboards.
package web

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/vaani-labs/go-vaani/pkg/call"
	"github.com/vaani-labs/go-vaani/pkg/hub"
)

const (
	maxBufferedEvents       = 500
	maxBufferedConversation = 200
)

// ConversationEntry is one line of the live transcript.
type ConversationEntry struct {
	Time     string `json:"time"`
	Role     string `json:"role"` // caller, assistant
	Text     string `json:"text"`
	Language string `json:"language"`
}

// Server is the call control server. It fronts one call.Controller.
type Server struct {
	app        *fiber.App
	addr       string
	controller *call.Controller
	logger     *slog.Logger

	eventsMu sync.RWMutex
	events   []call.Event

	convMu       sync.RWMutex
	conversation []ConversationEntry

	eventHub *hub.Hub
}

// NewServer creates the control server for the given controller.
func NewServer(addr string, controller *call.Controller, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		addr:       addr,
		controller: controller,
		logger:     logger.With("component", "web"),
		events:     make([]call.Event, 0, maxBufferedEvents),
		eventHub:   hub.New("events", logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "vaani",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/call", s.handleDial)
	api.Post("/answer", s.handleAnswer)
	api.Post("/hangup", s.handleHangup)
	api.Get("/events", s.handleEvents)
	api.Get("/conversation", s.handleConversation)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/events", websocket.New(s.handleEventsWS))

	s.app = app
	return s
}

// HandleEvent ingests one controller event: buffers it, updates the
// conversation transcript, and broadcasts it to websocket clients.
// Wire it to the controller via call.WithOnEvent.
func (s *Server) HandleEvent(ev call.Event) {
	s.eventsMu.Lock()
	s.events = append(s.events, ev)
	if len(s.events) > maxBufferedEvents {
		s.events = s.events[1:]
	}
	s.eventsMu.Unlock()

	switch ev.Kind {
	case call.EventTranscript:
		s.addConversation("caller", ev)
	case call.EventReply, call.EventTextOnly:
		s.addConversation("assistant", ev)
	}

	s.eventHub.BroadcastJSON(ev)
}

func (s *Server) addConversation(role string, ev call.Event) {
	entry := ConversationEntry{
		Time:     ev.Time.Format("15:04:05"),
		Role:     role,
		Text:     ev.Text,
		Language: string(ev.Language),
	}
	s.convMu.Lock()
	s.conversation = append(s.conversation, entry)
	if len(s.conversation) > maxBufferedConversation {
		s.conversation = s.conversation[1:]
	}
	s.convMu.Unlock()
}

// Start runs the server until Shutdown.
func (s *Server) Start() error {
	go s.eventHub.Run()
	s.logger.Info("control server listening", "addr", s.addr)
	return s.app.Listen(s.addr)
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Error("control server stopped", "error", err)
		}
	}()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.ShutdownWithTimeout(5 * time.Second)
}

// dialTimeout bounds how long an API-initiated dial or answer may take.
const dialTimeout = 60 * time.Second

func (s *Server) callContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), dialTimeout)
}
