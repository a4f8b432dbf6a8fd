package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
)

// FeedHandler pushes status snapshots of one quiz over a websocket.
type FeedHandler struct {
	service  *app.QuizService
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewFeedHandler(service *app.QuizService, log *zap.Logger) *FeedHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &FeedHandler{
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
	Type string `json:"type"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS subscribes the connection to the quiz feed. The first message is the
// current status; later ones follow finishes and approvals. A {"type":"sync"}
// message from the client asks for a fresh snapshot.
func (h *FeedHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.PathValue("id")

	updates, cancel, err := h.service.Subscribe(r.Context(), quizID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.String("quiz_id", quizID), zap.Error(err))
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// only this goroutine writes to conn
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write error", zap.String("quiz_id", quizID), zap.Error(err))
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "status", Payload: update}:
				case <-writerDone:
					return
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	push := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var inbound inboundMessage
		if err := json.Unmarshal(raw, &inbound); err != nil {
			push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid message"}})
			continue
		}
		switch inbound.Type {
		case "sync":
			status, err := h.service.Status(r.Context(), quizID)
			if err != nil {
				push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
				continue
			}
			push(outboundMessage[any]{Type: "status", Payload: status})
		default:
			push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}})
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}
