package service

import (
	"context"

	"github.com/raphaelgruber/spoilerguard/internal/models"
	"golang.org/x/sync/errgroup"
)

// EventType names a streamed QA event.
type EventType string

const (
	EventStatus EventType = "status"
	EventToken  EventType = "token"
	EventDone   EventType = "done"
	EventError  EventType = "error"
)

// Event is one message of a streamed answer. Exactly one of the payload
// fields is set, matching Type.
type Event struct {
	Type     EventType          `json:"type"`
	Message  string             `json:"message,omitempty"`
	Token    string             `json:"token,omitempty"`
	Response *models.QAResponse `json:"response,omitempty"`
	Error    string             `json:"error,omitempty"`
}

const eventBuffer = 64

// AskStream runs the QA pipeline and hands its progress to consume in order:
// status events, answer tokens, then a single done or error event. Invalid
// requests fail before any event is produced. An error returned by consume
// stops the pipeline and is returned.
func (s *QAService) AskStream(ctx context.Context, req models.QARequest, consume func(Event) error) error {
	if err := ValidateQA(req); err != nil {
		return err
	}

	events := make(chan Event, eventBuffer)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(events)
		send := func(e Event) error {
			select {
			case events <- e:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		}

		h := &hooks{
			status: func(msg string) { _ = send(Event{Type: EventStatus, Message: msg}) },
			token:  func(tok string) error { return send(Event{Type: EventToken, Token: tok}) },
		}
		resp, err := s.ask(gctx, req, h)
		if err != nil {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			s.opts.logger.Error("streamed answer failed", "error", err, "episode_id", req.EpisodeID)
			return send(Event{Type: EventError, Error: err.Error()})
		}
		return send(Event{Type: EventDone, Response: resp})
	})

	g.Go(func() error {
		for e := range events {
			if err := consume(e); err != nil {
				return err
			}
		}
		return nil
	})

	return g.Wait()
}
