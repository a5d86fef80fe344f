// Package control provides the AVTransport and RenderingControl
// facades for a single renderer.
package control

import (
	"context"

	"github.com/castbridge/dlnacast/didl"
)

// TransportState is the renderer's playback state.
type TransportState string

const (
	StateStopped        TransportState = "STOPPED"
	StatePlaying        TransportState = "PLAYING"
	StatePausedPlayback TransportState = "PAUSED_PLAYBACK"
)

// TransportInfo mirrors GetTransportInfo. Unparseable responses default
// to Speed=1, State=STOPPED, Status="OK" rather than failing.
type TransportInfo struct {
	Speed  int            `json:"currentSpeed"`
	State  TransportState `json:"currentTransportState"`
	Status string         `json:"currentTransportStatus"`
}

// PositionInfo mirrors GetPositionInfo. Numeric fields fail softly to
// zero; TrackMetaData is nil when absent or unparseable.
type PositionInfo struct {
	Track         int            `json:"track"`
	TrackDuration string         `json:"trackDuration"`
	TrackURI      string         `json:"trackURI"`
	TrackMetaData *didl.Metadata `json:"trackMetaData,omitempty"`
	RelTime       string         `json:"relTime"`
	AbsTime       string         `json:"absTime"`
	RelCount      int            `json:"relCount"`
	AbsCount      int            `json:"absCount"`
}

// MediaInfo mirrors GetMediaInfo.
type MediaInfo struct {
	CurrentURI         string         `json:"currentURI"`
	CurrentURIMetaData *didl.Metadata `json:"currentURIMetaData,omitempty"`
	NextURI            string         `json:"nextURI,omitempty"`
	NextURIMetaData    *didl.Metadata `json:"nextURIMetaData,omitempty"`
	PlayMedium         string         `json:"playMedium"`
}

// AVTransportAPI is the playback-control surface. It is implemented by
// the direct SOAP facade and by the HTTP relay facade.
type AVTransportAPI interface {
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Stop(ctx context.Context) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	Seek(ctx context.Context, position string) error
	SetAVTransportURI(ctx context.Context, uri string) error
	TransportInfo(ctx context.Context) (TransportInfo, error)
	PositionInfo(ctx context.Context) (PositionInfo, error)
	MediaInfo(ctx context.Context) (MediaInfo, error)
}

// RenderingControlAPI is the volume/mute surface.
type RenderingControlAPI interface {
	Volume(ctx context.Context) (int, error)
	SetVolume(ctx context.Context, level int) error
	Mute(ctx context.Context) (bool, error)
	SetMute(ctx context.Context, mute bool) error
}
