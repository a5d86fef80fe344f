package relay

import (
	"context"

	"github.com/castbridge/dlnacast/control"
)

// AVTransport implements control.AVTransportAPI against the proxy.
type AVTransport struct {
	client *Client
}

// NewAVTransport creates the relayed AVTransport facade.
func NewAVTransport(client *Client) *AVTransport {
	return &AVTransport{client: client}
}

var _ control.AVTransportAPI = (*AVTransport)(nil)

func (t *AVTransport) Play(ctx context.Context) error {
	_, err := t.client.call(ctx, "play", nil)
	return err
}

func (t *AVTransport) Pause(ctx context.Context) error {
	_, err := t.client.call(ctx, "pause", nil)
	return err
}

func (t *AVTransport) Stop(ctx context.Context) error {
	_, err := t.client.call(ctx, "stop", nil)
	return err
}

func (t *AVTransport) Next(ctx context.Context) error {
	_, err := t.client.call(ctx, "next", nil)
	return err
}

func (t *AVTransport) Previous(ctx context.Context) error {
	_, err := t.client.call(ctx, "previous", nil)
	return err
}

func (t *AVTransport) Seek(ctx context.Context, position string) error {
	_, err := t.client.call(ctx, "seek", map[string]any{"position": position})
	return err
}

func (t *AVTransport) SetAVTransportURI(ctx context.Context, uri string) error {
	_, err := t.client.call(ctx, "setAVTransportURI", map[string]any{"uri": uri})
	return err
}

func (t *AVTransport) TransportInfo(ctx context.Context) (control.TransportInfo, error) {
	info := control.TransportInfo{Speed: 1, State: control.StateStopped, Status: "OK"}
	if err := t.client.decode(ctx, "getTransportInfo", nil, &info); err != nil {
		return control.TransportInfo{}, err
	}
	return info, nil
}

func (t *AVTransport) PositionInfo(ctx context.Context) (control.PositionInfo, error) {
	var info control.PositionInfo
	if err := t.client.decode(ctx, "getPositionInfo", nil, &info); err != nil {
		return control.PositionInfo{}, err
	}
	return info, nil
}

func (t *AVTransport) MediaInfo(ctx context.Context) (control.MediaInfo, error) {
	var info control.MediaInfo
	if err := t.client.decode(ctx, "getMediaInfo", nil, &info); err != nil {
		return control.MediaInfo{}, err
	}
	return info, nil
}

// RenderingControl implements control.RenderingControlAPI against the
// proxy.
type RenderingControl struct {
	client *Client
}

// NewRenderingControl creates the relayed RenderingControl facade.
func NewRenderingControl(client *Client) *RenderingControl {
	return &RenderingControl{client: client}
}

var _ control.RenderingControlAPI = (*RenderingControl)(nil)

func (r *RenderingControl) Volume(ctx context.Context) (int, error) {
	var volume int
	if err := r.client.decode(ctx, "getVolume", nil, &volume); err != nil {
		return 0, err
	}
	return volume, nil
}

func (r *RenderingControl) SetVolume(ctx context.Context, level int) error {
	_, err := r.client.call(ctx, "setVolume", map[string]any{"volume": level})
	return err
}

func (r *RenderingControl) Mute(ctx context.Context) (bool, error) {
	var muted bool
	if err := r.client.decode(ctx, "isMute", nil, &muted); err != nil {
		return false, err
	}
	return muted, nil
}

func (r *RenderingControl) SetMute(ctx context.Context, mute bool) error {
	_, err := r.client.call(ctx, "setMute", map[string]any{"mute": mute})
	return err
}
