package events

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/castbridge/dlnacast/control"
	"github.com/castbridge/dlnacast/didl"
)

// Topic naming contract with the event bus.
const (
	PlaybackTopicPrefix = "/topic/upnp/event/AVTransport/"
	ProgressTopic       = "/topic/progress"
	MediaInfoTopic      = "/topic/mediaInfo"
)

// PlaybackTopic derives the playback-state topic for a renderer from
// its control URL's host component.
func PlaybackTopic(controlURL string) (string, error) {
	u, err := url.Parse(controlURL)
	if err != nil {
		return "", err
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("control url %q has no host", controlURL)
	}
	return PlaybackTopicPrefix + u.Hostname(), nil
}

// PlaybackStateEvent is published on the per-renderer AVTransport
// topic whenever the transport state changes.
type PlaybackStateEvent struct {
	TransportState          control.TransportState `json:"transportState"`
	CurrentTrack            int                    `json:"currentTrack"`
	NumberOfTracks          int                    `json:"numberOfTracks"`
	CurrentTrackDuration    string                 `json:"currentTrackDuration"`
	CurrentTrackURI         string                 `json:"currentTrackURI"`
	CurrentTrackMetaData    *didl.Metadata         `json:"currentTrackMetaData,omitempty"`
	CurrentPlayMode         string                 `json:"currentPlayMode"`
	CurrentTransportActions string                 `json:"currentTransportActions"`
	RelativeTimePosition    string                 `json:"relativeTimePosition"`
}

// ProgressEvent reports playhead movement.
type ProgressEvent struct {
	RelTime       string `json:"relTime"`
	TrackDuration string `json:"trackDuration"`
}

// MediaInfoEvent reports a change of loaded media.
type MediaInfoEvent struct {
	control.MediaInfo
}

// DecodeEvent decodes an event body into the typed payload for its
// topic. Unknown topics return the raw body.
func DecodeEvent(topic string, body json.RawMessage) (any, error) {
	switch {
	case strings.HasPrefix(topic, PlaybackTopicPrefix):
		var event PlaybackStateEvent
		if err := json.Unmarshal(body, &event); err != nil {
			return nil, err
		}
		return event, nil
	case topic == ProgressTopic:
		var event ProgressEvent
		if err := json.Unmarshal(body, &event); err != nil {
			return nil, err
		}
		return event, nil
	case topic == MediaInfoTopic:
		var event MediaInfoEvent
		if err := json.Unmarshal(body, &event); err != nil {
			return nil, err
		}
		return event, nil
	}
	return body, nil
}
