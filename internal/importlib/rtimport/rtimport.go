// Package rtimport publishes buildgrid's progress events over a socket.io
// connection, adapted from the teacher's socketio_client module (an asset
// that connects, then stays alive for the run's duration) into a "publish
// build event" sink for internal/progress.Reporter (spec §9's realtime
// import provider).
package rtimport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"time"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/vk/buildgrid/internal/progress"
)

// Publisher holds a live socket.io connection and forwards progress events
// to it as "build_event" messages.
type Publisher struct {
	io *socket.Socket
}

// Connect dials rawURL and waits for the socket.io handshake to complete,
// mirroring the teacher's CreateSocketIOClient connect/select pattern.
func Connect(ctx context.Context, rawURL, namespace string, insecureSkipVerify bool) (*Publisher, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("rtimport: parsing url: %w", err)
	}

	opts := socket.DefaultOptions()
	opts.SetPath(parsed.Path)
	if insecureSkipVerify {
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	connectChan := make(chan error, 1)
	baseURL := fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(namespace, opts)

	io.Once(types.EventName("connect"), func(...any) {
		connectChan <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		if len(errs) > 0 {
			if err, ok := errs[0].(error); ok {
				connectChan <- err
				return
			}
		}
		connectChan <- fmt.Errorf("rtimport: connect_error")
	})

	io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("rtimport: connecting to %s: %w", rawURL, err)
		}
		return &Publisher{io: io}, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, ctx.Err()
	case <-time.After(15 * time.Second):
		io.Disconnect()
		return nil, fmt.Errorf("rtimport: timed out connecting to %s", rawURL)
	}
}

// Close disconnects the underlying socket.
func (p *Publisher) Close() error {
	p.io.Disconnect()
	return nil
}

// Run drains events and emits each as a "build_event" message until events
// is closed or ctx is cancelled.
func (p *Publisher) Run(ctx context.Context, events <-chan progress.Event) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			p.publish(ev)
		case <-ctx.Done():
			return
		}
	}
}

func (p *Publisher) publish(ev progress.Event) {
	payload := map[string]any{
		"target": ev.Target,
		"kind":   ev.Kind.String(),
	}
	if ev.Err != nil {
		payload["error"] = ev.Err.Error()
	}
	if !ev.Timestamp.IsZero() {
		payload["timestamp"] = ev.Timestamp.Format(time.RFC3339Nano)
	}
	p.io.Emit("build_event", payload)
}
