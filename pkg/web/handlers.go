package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/vaani-labs/go-vaani/pkg/call"
	"github.com/vaani-labs/go-vaani/pkg/hub"
)

// statusResponse is the /api/status payload.
type statusResponse struct {
	State    call.State `json:"state"`
	CallID   string     `json:"call_id,omitempty"`
	Remote   string     `json:"remote,omitempty"`
	Duration string     `json:"duration,omitempty"`
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	state, active := s.controller.Status()
	resp := statusResponse{State: state}
	if active != nil {
		resp.CallID = active.ID
		resp.Remote = active.Remote
		resp.Duration = active.Duration().String()
	}
	return c.JSON(resp)
}

// dialRequest is the /api/call body.
type dialRequest struct {
	Target string `json:"target"`
}

func (s *Server) handleDial(c *fiber.Ctx) error {
	var req dialRequest
	if err := c.BodyParser(&req); err != nil || req.Target == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "target is required",
		})
	}

	ctx, cancel := s.callContext()
	defer cancel()
	if err := s.controller.Dial(ctx, req.Target); err != nil {
		return c.Status(callErrorStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"status": "active", "target": req.Target})
}

func (s *Server) handleAnswer(c *fiber.Ctx) error {
	ctx, cancel := s.callContext()
	defer cancel()
	if err := s.controller.Answer(ctx); err != nil {
		return c.Status(callErrorStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"status": "active"})
}

func (s *Server) handleHangup(c *fiber.Ctx) error {
	if err := s.controller.Hangup(); err != nil {
		return c.Status(callErrorStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"status": "ended"})
}

func (s *Server) handleEvents(c *fiber.Ctx) error {
	s.eventsMu.RLock()
	defer s.eventsMu.RUnlock()
	return c.JSON(s.events)
}

func (s *Server) handleConversation(c *fiber.Ctx) error {
	s.convMu.RLock()
	defer s.convMu.RUnlock()
	return c.JSON(s.conversation)
}

// handleEventsWS streams live call events. Buffered events are replayed
// on connect so a dashboard joining mid-call sees the whole call.
func (s *Server) handleEventsWS(c *websocket.Conn) {
	s.eventsMu.RLock()
	backlog := make([]call.Event, len(s.events))
	copy(backlog, s.events)
	s.eventsMu.RUnlock()

	for _, ev := range backlog {
		if err := c.WriteJSON(ev); err != nil {
			c.Close()
			return
		}
	}

	client := hub.NewClient(s.eventHub, c)
	client.Run()
}

// callErrorStatus maps controller errors to HTTP statuses.
func callErrorStatus(err error) int {
	switch {
	case errors.Is(err, call.ErrBusy):
		return fiber.StatusConflict
	case errors.Is(err, call.ErrNotRegistered), errors.Is(err, call.ErrNoActiveCall):
		return fiber.StatusPreconditionFailed
	default:
		return fiber.StatusBadGateway
	}
}
