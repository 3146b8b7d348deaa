package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mbocsi/nativebridge/broker"
)

// SSEClient streams bridge traffic to one HTTP response as server-sent
// events.
type SSEClient struct {
	ctx     context.Context
	writer  http.ResponseWriter
	flusher http.Flusher
	session string
}

func NewSSEClient(ctx context.Context, w http.ResponseWriter, session string) (*SSEClient, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	return &SSEClient{
		ctx:     ctx,
		writer:  w,
		flusher: flusher,
		session: session,
	}, true
}

func (s *SSEClient) Send(t broker.Traffic) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(s.writer, "event: traffic\ndata: %s\n\n", data)
	s.flusher.Flush()
	return err
}

// Stream subscribes to tap and forwards traffic until the request ends.
func (s *SSEClient) Stream(tap *broker.Broker) error {
	ch := make(chan broker.Traffic, 32)
	tap.Subscribe(s.session, ch)
	defer tap.Unsubscribe(s.session, ch)

	s.writer.Header().Set("Content-Type", "text/event-stream")
	s.writer.Header().Set("Cache-Control", "no-cache")
	s.writer.Header().Set("Connection", "keep-alive")
	s.writer.WriteHeader(http.StatusOK)
	s.flusher.Flush()

	for {
		select {
		case <-s.ctx.Done():
			return nil
		case t := <-ch:
			if err := s.Send(t); err != nil {
				return err
			}
		}
	}
}
