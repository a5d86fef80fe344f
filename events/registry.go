package events

import (
	"log/slog"
	"sync"
)

// Registry tracks named channel instances. It replaces ad-hoc global
// lookup: the composing application owns a Registry and passes it by
// reference.
type Registry struct {
	mu       sync.Mutex
	log      *slog.Logger
	channels map[string]*Channel
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		log:      logger,
		channels: make(map[string]*Channel),
	}
}

// Get returns the channel registered under id, if any.
func (r *Registry) Get(id string) (*Channel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	channel, ok := r.channels[id]
	return channel, ok
}

// GetOrCreate returns the channel registered under id, creating it
// with opts when absent.
func (r *Registry) GetOrCreate(id string, opts Options) *Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	if channel, ok := r.channels[id]; ok {
		return channel
	}
	r.log.Debug("creating event channel", "id", id, "url", opts.URL)
	channel := NewChannel(opts)
	r.channels[id] = channel
	return channel
}

// Remove disconnects and drops the channel registered under id.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	channel, ok := r.channels[id]
	delete(r.channels, id)
	r.mu.Unlock()
	if ok {
		channel.Disconnect()
	}
}

// Close disconnects and drops every registered channel.
func (r *Registry) Close() {
	r.mu.Lock()
	channels := r.channels
	r.channels = make(map[string]*Channel)
	r.mu.Unlock()
	for _, channel := range channels {
		channel.Disconnect()
	}
}
