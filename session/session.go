// Package session composes device description, the control facades,
// and the event channel into one per-device handle.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/castbridge/dlnacast/control"
	"github.com/castbridge/dlnacast/events"
	"github.com/castbridge/dlnacast/relay"
	"github.com/castbridge/dlnacast/soap"
	"github.com/castbridge/dlnacast/upnp"
)

// ErrNotConnected is returned when a facade or subscription is used
// before Connect has succeeded.
var ErrNotConnected = errors.New("session not connected")

// Options configures a Session.
type Options struct {
	// DescriptionURL locates the renderer's device description
	// document. Discovery is out of scope; the URL is supplied.
	DescriptionURL string
	// EventBusURL, when set, enables the playback event channel.
	EventBusURL string
	// ProxyBase switches the control facades to relay mode: commands
	// go through <ProxyBase>/dlna/<action> instead of direct SOAP.
	ProxyBase string
	// SOAP11 rides along on relay requests.
	SOAP11 bool
	// Timeout bounds individual HTTP requests; default 10s.
	Timeout time.Duration
	// MaxReconnectAttempts is passed through to the event channel.
	MaxReconnectAttempts int
	Logger               *slog.Logger
	// OnReconnected fires when the event channel reconnects after a
	// connection loss. Bus subscriptions are not replayed
	// automatically, and stale registrations survive the reconnect;
	// unsubscribe and subscribe again from this hook.
	OnReconnected func()
}

// Session is a single renderer handle with one connect/disconnect
// lifecycle.
type Session struct {
	opts Options
	log  *slog.Logger

	// connectMu serializes Connect calls so concurrent callers cannot
	// both resolve the device and overwrite each other's facades.
	connectMu sync.Mutex

	mu        sync.Mutex
	device    *upnp.DeviceDescription
	avt       control.AVTransportAPI
	rcs       control.RenderingControlAPI
	channel   *events.Channel
	topic     string
	connected bool
}

// New creates a Session. It performs no I/O until Connect.
func New(opts Options) *Session {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Session{opts: opts, log: opts.Logger}
}

// Connect resolves the device description, binds the control facades
// to the discovered control URLs, and opens the event channel when an
// event bus is configured.
func (s *Session) Connect(ctx context.Context) error {
	s.connectMu.Lock()
	defer s.connectMu.Unlock()

	s.mu.Lock()
	if s.connected {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	device, err := upnp.NewDescriptor(s.opts.Timeout).Describe(ctx, s.opts.DescriptionURL)
	if err != nil {
		return err
	}

	avtService, err := device.FindService("AVTransport")
	if err != nil {
		return err
	}
	rcsService, err := device.FindService("RenderingControl")
	if err != nil {
		return err
	}

	var avt control.AVTransportAPI
	var rcs control.RenderingControlAPI
	if s.opts.ProxyBase != "" {
		avt = relay.NewAVTransport(relay.NewClient(s.opts.ProxyBase, avtService.ControlURL, s.opts.SOAP11, s.opts.Timeout, s.log))
		rcs = relay.NewRenderingControl(relay.NewClient(s.opts.ProxyBase, rcsService.ControlURL, s.opts.SOAP11, s.opts.Timeout, s.log))
	} else {
		client := soap.NewClient(s.opts.Timeout)
		avt = control.NewAVTransport(client, avtService.ControlURL, s.log)
		rcs = control.NewRenderingControl(client, rcsService.ControlURL, s.log)
	}

	topic, err := events.PlaybackTopic(avtService.ControlURL)
	if err != nil {
		return err
	}

	var channel *events.Channel
	if s.opts.EventBusURL != "" {
		channel = events.NewChannel(events.Options{
			URL:                  s.opts.EventBusURL,
			MaxReconnectAttempts: s.opts.MaxReconnectAttempts,
			Logger:               s.log,
			OnConnected:          s.opts.OnReconnected,
		})
		if err := channel.Connect(ctx); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.device = device
	s.avt = avt
	s.rcs = rcs
	s.channel = channel
	s.topic = topic
	s.connected = true
	s.mu.Unlock()

	s.log.Info("renderer session connected",
		"device", device.FriendlyName, "control", avtService.ControlURL, "relay", s.opts.ProxyBase != "")
	return nil
}

// Disconnect tears down the event channel. Idempotent.
func (s *Session) Disconnect() {
	s.mu.Lock()
	channel := s.channel
	s.connected = false
	s.mu.Unlock()

	if channel != nil {
		channel.Disconnect()
	}
}

// Device returns the parsed device description.
func (s *Session) Device() *upnp.DeviceDescription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device
}

// AVTransport returns the playback-control facade.
func (s *Session) AVTransport() (control.AVTransportAPI, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil, ErrNotConnected
	}
	return s.avt, nil
}

// RenderingControl returns the volume/mute facade.
func (s *Session) RenderingControl() (control.RenderingControlAPI, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil, ErrNotConnected
	}
	return s.rcs, nil
}

// Events returns the event channel, or nil when no event bus is
// configured.
func (s *Session) Events() *events.Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channel
}

// PlaybackTopic returns this renderer's event topic.
func (s *Session) PlaybackTopic() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.topic
}

// SubscribePlaybackState delivers decoded playback-state events for
// this renderer. The channel must be connected.
func (s *Session) SubscribePlaybackState(handler func(events.PlaybackStateEvent)) error {
	s.mu.Lock()
	channel := s.channel
	topic := s.topic
	connected := s.connected
	s.mu.Unlock()

	if !connected || channel == nil {
		return ErrNotConnected
	}

	_, err := channel.Subscribe(topic, func(body json.RawMessage) {
		var event events.PlaybackStateEvent
		if err := json.Unmarshal(body, &event); err != nil {
			s.log.Warn("playback event unparseable", "error", err)
			return
		}
		handler(event)
	})
	return err
}
