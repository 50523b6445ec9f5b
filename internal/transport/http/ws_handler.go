package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"confetti-quiz/internal/app"
	"confetti-quiz/internal/domain"
	"confetti-quiz/internal/feedback"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ResolverFactory builds a result resolver for a widget base URL.
type ResolverFactory func(base string) (app.ResultResolver, error)

type WSHandler struct {
	service   *app.QuizService
	emitter   *feedback.Emitter
	resolvers ResolverFactory
	upgrader  websocket.Upgrader
}

// NewWSHandler wires the handler; emitter carries the shared sinks (broker, log) and
// resolvers may be nil to always use the service resolver.
func NewWSHandler(service *app.QuizService, emitter *feedback.Emitter, resolvers ResolverFactory) *WSHandler {
	if emitter == nil {
		emitter = feedback.NewEmitter(nil)
	}
	return &WSHandler{
		service:   service,
		emitter:   emitter,
		resolvers: resolvers,
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

type checkPayload struct {
	Answer string `json:"answer"`
}

type questionsPayload struct {
	Questions     json.RawMessage `json:"questions"`
	DataQuestions json.RawMessage `json:"data-questions"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type celebratePayload struct {
	Intensity float64 `json:"intensity"`
}

// connEmitter forwards controller feedback to one websocket connection and to the shared sinks.
type connEmitter struct {
	shared *feedback.Emitter
	push   func(outboundMessage[any])
}

func (e *connEmitter) Celebrate(intensity float64) {
	e.shared.Celebrate(intensity)
	e.push(outboundMessage[any]{Type: "celebrate", Payload: celebratePayload{Intensity: intensity}})
}

func (e *connEmitter) Notify(ctx context.Context, event domain.ProgressEvent) {
	e.shared.With(feedback.SinkFunc(func(_ context.Context, ev domain.ProgressEvent) error {
		e.push(outboundMessage[any]{Type: "progress", Payload: ev})
		return nil
	})).Notify(ctx, event)
}

// ServeWS upgrades HTTP requests to websockets and attaches one quiz widget per connection.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := app.AttachRequest{
		Path:          query.Get("path"),
		Questions:     query.Get("questions"),
		DataQuestions: query.Get("data-questions"),
	}
	if base := query.Get("base"); base != "" && h.resolvers != nil {
		resolver, err := h.resolvers(base)
		if err != nil {
			http.Error(w, "invalid base url", http.StatusBadRequest)
			return
		}
		req.Resolver = resolver
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	attachmentID := uuid.NewString()
	ctx, cancelAttach := context.WithCancel(r.Context())
	defer cancelAttach()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	push := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-closeSignals:
		}
	}
	req.Emitter = &connEmitter{shared: h.emitter, push: push}

	ctrl := h.service.Attach(ctx, req)
	log.Printf("ws %s attached to %s", attachmentID, ctrl.Identity().Path)

	updates, cancel := ctrl.Subscribe()
	defer cancel()

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws %s write error: %v", attachmentID, err)
				// keep draining so producers never block on a dead connection
				for range send {
				}
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case view, ok := <-updates:
				if !ok {
					return
				}
				push(outboundMessage[any]{Type: "state", Payload: view})
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if err := h.dispatch(ctrl, inbound); err != nil {
			push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
	log.Printf("ws %s detached", attachmentID)
}

// dispatch applies one inbound message. State changes reach the client through the
// controller subscription, so only failures are reported here.
func (h *WSHandler) dispatch(ctrl *app.Controller, inbound inboundMessage) error {
	var err error
	switch inbound.Type {
	case "check":
		var payload checkPayload
		if jsonErr := json.Unmarshal(inbound.Payload, &payload); jsonErr != nil {
			return fmt.Errorf("invalid check payload")
		}
		_, err = ctrl.Check(payload.Answer)
	case "next":
		_, err = ctrl.Next()
	case "previous":
		_, err = ctrl.Previous()
	case "restart":
		ctrl.Restart()
	case "questions":
		var payload questionsPayload
		if jsonErr := json.Unmarshal(inbound.Payload, &payload); jsonErr != nil {
			return fmt.Errorf("invalid questions payload")
		}
		set, ok := app.SelectQuestions(payloadText(payload.Questions), payloadText(payload.DataQuestions))
		if !ok {
			return domain.ErrInvalidQuestionFormat
		}
		_, err = ctrl.ReplaceQuestions(set)
	default:
		return fmt.Errorf("unsupported message type %q", inbound.Type)
	}
	return err
}

// payloadText accepts either an embedded JSON array or a JSON string holding one.
func payloadText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
