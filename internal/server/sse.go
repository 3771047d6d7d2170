package server

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/goliatone/go-helpdesk/pkg/interfaces/logger"
	"github.com/goliatone/go-helpdesk/pkg/stream"
	"github.com/google/uuid"
)

var errStreamClosed = errors.New("server: stream closed")

// flushSink adapts an http.ResponseWriter into a stream.Sink. Heartbeat
// ticks and broadcast fan-out write from different goroutines, so every
// write-and-flush is serialized behind the mutex.
type flushSink struct {
	mu      sync.Mutex
	writer  http.ResponseWriter
	flusher http.Flusher
	closed  bool
}

func (s *flushSink) Send(event stream.Event) error {
	frame, err := event.Encode()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errStreamClosed
	}
	if _, err := s.writer.Write(frame); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Close rejects further writes. The response writer is recycled by
// net/http once the handler returns, so a broadcaster holding a stale
// registry snapshot must never reach it; the error it gets instead turns
// into an eviction.
func (s *flushSink) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// handleStream is the long-lived notification stream. Per connection it
// registers a sink, emits `connected`, keeps the transport warm with
// heartbeats, and deregisters when the client goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondJSON(w, http.StatusInternalServerError, map[string]any{"error": "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	connectionID := uuid.New().String()
	sink := &flushSink{writer: w, flusher: flusher}
	s.registry.Add(connectionID, user.ID, sink)
	defer s.registry.Remove(connectionID)
	defer sink.Close()

	lgr := s.logger.With(
		logger.F("connection_id", connectionID),
		logger.F("user_id", user.ID))
	lgr.Info("stream opened")

	connected, err := stream.NewEvent(stream.EventConnected, map[string]string{
		"connectionId": connectionID,
	})
	if err == nil {
		err = sink.Send(connected)
	}
	if err != nil {
		// The transport died before the handshake finished; the client
		// falls back to polling.
		lgr.Warn("stream handshake failed", logger.F("error", err))
		return
	}

	interval := s.cfg.Stream.HeartbeatInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			lgr.Info("stream closed")
			return
		case <-ticker.C:
			heartbeat, err := stream.NewEvent(stream.EventHeartbeat, nil)
			if err == nil {
				err = sink.Send(heartbeat)
			}
			if err != nil {
				lgr.Info("stream heartbeat failed", logger.F("error", err))
				return
			}
		}
	}
}
