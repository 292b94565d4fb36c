package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"timed-quiz/internal/app"
	"timed-quiz/internal/domain"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

type WSHandler struct {
	service  *app.QuizService
	log      logrus.FieldLogger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, log logrus.FieldLogger) *WSHandler {
	return &WSHandler{
		service: service,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectPayload struct {
	Option *string `json:"option"`
	Index  *int    `json:"index"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and runs one quiz session per connection. The
// client sends intents; every state change, countdown ticks included, is pushed
// back as a "state" message and the final summary as a "result" message.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	ctx := r.Context()
	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	var pumps sync.WaitGroup

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.WithError(err).Debug("ws write error")
				return
			}
		}
	}()

	emit := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}
	fail := func(message string) {
		emit(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message}})
	}

	// attach starts a session and forwards its updates until stop is called.
	attach := func() (string, func(), error) {
		view, err := h.service.Start(ctx)
		if err != nil {
			return "", nil, err
		}
		updates, cancel, err := h.service.Subscribe(ctx, view.SessionID)
		if err != nil {
			h.service.End(context.Background(), view.SessionID)
			return "", nil, err
		}

		stop := make(chan struct{})
		pumps.Add(1)
		go func() {
			defer pumps.Done()
			h.pump(ctx, view.SessionID, updates, send, stop, closeSignals, writerDone)
		}()

		var once sync.Once
		return view.SessionID, func() {
			once.Do(func() {
				close(stop)
				cancel()
				h.service.End(context.Background(), view.SessionID)
			})
		}, nil
	}

	sessionID, detach, err := attach()
	if err != nil {
		fail(err.Error())
	} else {
		for {
			var inbound inboundMessage
			if err := conn.ReadJSON(&inbound); err != nil {
				break
			}

			var opErr error
			switch inbound.Type {
			case "select":
				var payload selectPayload
				if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
					fail("invalid select payload")
					continue
				}
				switch {
				case payload.Option != nil:
					_, opErr = h.service.Select(ctx, sessionID, *payload.Option)
				case payload.Index != nil:
					_, opErr = h.service.SelectIndex(ctx, sessionID, *payload.Index)
				default:
					fail("option or index required")
					continue
				}
			case "next":
				_, opErr = h.service.Next(ctx, sessionID)
			case "previous":
				_, opErr = h.service.Previous(ctx, sessionID)
			case "skip":
				_, opErr = h.service.Skip(ctx, sessionID)
			case "restart":
				detach()
				sessionID, detach, opErr = attach()
				if opErr != nil {
					detach = func() {}
				}
			default:
				fail("unsupported message type")
				continue
			}

			if opErr != nil {
				// Invalid intents are dropped; the client keeps its last state.
				if errors.Is(opErr, domain.ErrInvalidState) {
					h.log.WithError(opErr).WithField("session", sessionID).Debug("ws intent ignored")
					continue
				}
				fail(opErr.Error())
			}
		}
		detach()
	}

	close(closeSignals)
	pumps.Wait()
	close(send)
	<-writerDone
}

// pump forwards session views to the writer and appends the summary once the
// session finished.
func (h *WSHandler) pump(ctx context.Context, sessionID string, updates <-chan domain.View, send chan<- outboundMessage[any], stop, closed, writerDone <-chan struct{}) {
	deliver := func(msg outboundMessage[any]) bool {
		select {
		case send <- msg:
			return true
		case <-stop:
		case <-closed:
		case <-writerDone:
		}
		return false
	}

	for {
		select {
		case view, ok := <-updates:
			if !ok {
				return
			}
			if !deliver(outboundMessage[any]{Type: "state", Payload: view}) {
				return
			}
			if view.Phase != domain.PhaseFinished {
				continue
			}
			summary, err := h.service.Summary(ctx, sessionID)
			if err != nil {
				h.log.WithError(err).WithField("session", sessionID).Warn("summary unavailable")
				return
			}
			deliver(outboundMessage[any]{Type: "result", Payload: summary})
			return
		case <-stop:
			return
		case <-closed:
			return
		}
	}
}
