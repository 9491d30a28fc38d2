package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/armtemiy/armlab/internal/logging"
	"github.com/armtemiy/armlab/pkg/domain"
)

// Event names sent on /wizard/events.
const (
	EventView    = "view"
	EventPersist = "persist"
)

// Message is one server-sent event.
type Message struct {
	Event string
	Data  []byte
}

// StreamManager handles active SSE connections
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- Message]struct{} // SessionID -> Set of Channels
	logger      *slog.Logger
}

func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan<- Message]struct{}),
		logger:      logger,
	}
}

func (sm *StreamManager) Subscribe(sessionID string) (<-chan Message, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan Message, 10)
	if _, ok := sm.subscribers[sessionID]; !ok {
		sm.subscribers[sessionID] = make(map[chan<- Message]struct{})
	}
	sm.subscribers[sessionID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[sessionID]; ok {
			if _, live := subs[ch]; !live {
				return
			}
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, sessionID)
			}
		}
	}
}

// Subscribers returns the number of live subscriptions for a session.
func (sm *StreamManager) Subscribers(sessionID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[sessionID])
}

func (sm *StreamManager) Broadcast(sessionID string, msg Message) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[sessionID] {
		select {
		case ch <- msg:
		default:
			// slow client
			sm.logger.Warn("SSE: client buffer full, dropping message", "session_id", sessionID, "event", msg.Event)
		}
	}
}

// Publish broadcasts v as JSON under the given event name.
func (sm *StreamManager) Publish(sessionID, event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		sm.logger.Error("SSE: encode failed", "event", event, "err", err)
		return
	}
	sm.Broadcast(sessionID, Message{Event: event, Data: data})
}

// PersistHook forwards save outcomes to the session's subscribers.
// Plug it into domain.LifecycleHooks.OnPersist.
func (sm *StreamManager) PersistHook(ctx context.Context, e *domain.PersistEvent) {
	payload := map[string]any{
		"node_id":     e.NodeID,
		"save_status": e.Status,
		"stale":       e.Stale,
	}
	if e.Err != nil {
		payload["save_error"] = e.Err.Error()
	}
	sm.Publish(e.SessionID, EventPersist, payload)
}

// subscribeEvents handles GET /wizard/events. The optional watch parameter
// is a comma separated list of event names to forward.
func (s *Server) subscribeEvents(w http.ResponseWriter, r *http.Request) {
	sessionID, _, err := s.caller(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SSE: streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	watch := make(map[string]bool)
	if v := r.URL.Query().Get("watch"); v != "" {
		for _, name := range strings.Split(v, ",") {
			watch[strings.TrimSpace(name)] = true
		}
	}

	ch, cancel := s.Streams.Subscribe(sessionID)
	defer cancel()

	s.logger.Debug("SSE: subscribed", "session_id", sessionID)
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE: client disconnected", "session_id", sessionID)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if len(watch) > 0 && !watch[msg.Event] {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Event, msg.Data)
			flusher.Flush()
		}
	}
}
