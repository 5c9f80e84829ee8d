package websocket

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/rs/zerolog"

	"github.com/seekhub/translator/internal/model"
)

const (
	// SubscriberBuffer bounds the events queued per subscriber.
	SubscriberBuffer = 32
	pingInterval     = 30 * time.Second
	writeWait        = 10 * time.Second
)

// Subscription is one consumer's view of a subject's event stream. The
// channel is closed after the terminal event or on Close.
type Subscription struct {
	SubjectID string
	ch        chan model.ProgressEvent
	hub       *Hub
}

// Events returns the receive side of the subscription.
func (s *Subscription) Events() <-chan model.ProgressEvent {
	return s.ch
}

// Close unsubscribes. Safe to call more than once.
func (s *Subscription) Close() {
	s.hub.remove(s)
}

// Hub fans progress events out to subscribers grouped by subject.
// Publish never blocks: a full subscriber buffer drops its oldest event.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string]map[*Subscription]struct{}
	dropped     atomic.Int64
	logger      zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		subscribers: make(map[string]map[*Subscription]struct{}),
		logger:      logger.With().Str("component", "hub").Logger(),
	}
}

// Subscribe registers a new subscriber. Only events published afterwards are delivered.
func (h *Hub) Subscribe(subjectID string) *Subscription {
	sub := &Subscription{
		SubjectID: subjectID,
		ch:        make(chan model.ProgressEvent, SubscriberBuffer),
		hub:       h,
	}

	h.mu.Lock()
	if h.subscribers[subjectID] == nil {
		h.subscribers[subjectID] = make(map[*Subscription]struct{})
	}
	h.subscribers[subjectID][sub] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug().Str("subject_id", subjectID).Msg("subscriber registered")
	return sub
}

// Publish delivers the event to every current subscriber of the subject.
// A terminal event is delivered and then every subscriber is closed.
func (h *Hub) Publish(subjectID string, event model.ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subscribers[subjectID]
	for sub := range subs {
		h.deliver(sub, event)
	}

	if event.IsTerminal() {
		for sub := range subs {
			close(sub.ch)
		}
		delete(h.subscribers, subjectID)
	}
}

// deliver must be called with h.mu held; Publish is the only sender.
func (h *Hub) deliver(sub *Subscription, event model.ProgressEvent) {
	select {
	case sub.ch <- event:
		return
	default:
	}

	select {
	case <-sub.ch:
		h.dropped.Add(1)
	default:
	}

	select {
	case sub.ch <- event:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.subscribers[sub.SubjectID]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	close(sub.ch)
	if len(subs) == 0 {
		delete(h.subscribers, sub.SubjectID)
	}
	h.logger.Debug().Str("subject_id", sub.SubjectID).Msg("subscriber removed")
}

// SubscriberCount returns the number of live subscribers for a subject.
func (h *Hub) SubscriberCount(subjectID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[subjectID])
}

// Dropped returns how many events were discarded for slow subscribers.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// HandleConnection streams a subscription to a WebSocket client until the
// terminal event, a write error, or the client going away.
func (h *Hub) HandleConnection(c *websocket.Conn, sub *Subscription) {
	defer sub.Close()

	control := make(chan []byte, 4)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()

		for {
			select {
			case event, ok := <-sub.Events():
				if !ok {
					_ = c.SetWriteDeadline(time.Now().Add(writeWait))
					_ = c.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream finished"))
					_ = c.Close()
					return
				}
				data, err := json.Marshal(event)
				if err != nil {
					h.logger.Error().Err(err).Msg("failed to marshal progress event")
					continue
				}
				_ = c.SetWriteDeadline(time.Now().Add(writeWait))
				if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
					_ = c.Close()
					return
				}

			case data := <-control:
				_ = c.SetWriteDeadline(time.Now().Add(writeWait))
				if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
					_ = c.Close()
					return
				}

			case <-ticker.C:
				_ = c.SetWriteDeadline(time.Now().Add(writeWait))
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					_ = c.Close()
					return
				}
			}
		}
	}()

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				h.logger.Debug().Err(err).Str("subject_id", sub.SubjectID).Msg("websocket read error")
			}
			break
		}

		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		if msg.Type == model.WSMessageTypePing {
			pong, _ := json.Marshal(model.WSMessage{Type: model.WSMessageTypePong})
			select {
			case control <- pong:
			default:
			}
		}
	}

	sub.Close()
	<-done
}
