package control

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/castbridge/dlnacast/soap"
)

// DefaultVolume is returned when a GetVolume response carries no
// usable CurrentVolume element.
const DefaultVolume = 50

// RenderingControl is the direct SOAP implementation of
// RenderingControlAPI, bound to one renderer's RenderingControl
// control URL.
type RenderingControl struct {
	client     *soap.Client
	controlURL string
	log        *slog.Logger
}

// NewRenderingControl binds a RenderingControl facade to controlURL.
func NewRenderingControl(client *soap.Client, controlURL string, logger *slog.Logger) *RenderingControl {
	if logger == nil {
		logger = slog.Default()
	}
	return &RenderingControl{
		client:     client,
		controlURL: controlURL,
		log:        logger,
	}
}

var _ RenderingControlAPI = (*RenderingControl)(nil)

func (r *RenderingControl) invoke(ctx context.Context, action string, params []soap.Param) ([]byte, error) {
	return r.client.Invoke(ctx, r.controlURL, soap.RenderingControlURN, action, params)
}

// Volume returns the master channel volume. A response missing the
// expected element degrades to DefaultVolume with a logged warning.
func (r *RenderingControl) Volume(ctx context.Context) (int, error) {
	payload, err := r.invoke(ctx, "GetVolume", []soap.Param{{Name: "Channel", Value: "Master"}})
	if err != nil {
		return 0, err
	}
	values, err := soap.ParseResponse(payload, "GetVolume")
	if err != nil {
		r.log.Warn("volume response unparseable, using default", "error", err)
		return DefaultVolume, nil
	}
	volume, err := strconv.Atoi(values["CurrentVolume"])
	if err != nil {
		r.log.Warn("volume value unparseable, using default", "value", values["CurrentVolume"])
		return DefaultVolume, nil
	}
	return volume, nil
}

func (r *RenderingControl) SetVolume(ctx context.Context, level int) error {
	_, err := r.invoke(ctx, "SetVolume", []soap.Param{
		{Name: "Channel", Value: "Master"},
		{Name: "DesiredVolume", Value: strconv.Itoa(level)},
	})
	return err
}

// Mute reports whether the master channel is muted. A response missing
// the expected element degrades to false with a logged warning.
func (r *RenderingControl) Mute(ctx context.Context) (bool, error) {
	payload, err := r.invoke(ctx, "GetMute", []soap.Param{{Name: "Channel", Value: "Master"}})
	if err != nil {
		return false, err
	}
	values, err := soap.ParseResponse(payload, "GetMute")
	if err != nil {
		r.log.Warn("mute response unparseable, assuming unmuted", "error", err)
		return false, nil
	}
	return values["CurrentMute"] == "1", nil
}

func (r *RenderingControl) SetMute(ctx context.Context, mute bool) error {
	desired := "0"
	if mute {
		desired = "1"
	}
	_, err := r.invoke(ctx, "SetMute", []soap.Param{
		{Name: "Channel", Value: "Master"},
		{Name: "DesiredMute", Value: desired},
	})
	return err
}
