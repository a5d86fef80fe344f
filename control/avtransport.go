package control

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/castbridge/dlnacast/didl"
	"github.com/castbridge/dlnacast/soap"
)

// AVTransport is the direct SOAP implementation of AVTransportAPI,
// bound to one renderer's AVTransport control URL. Safe for concurrent
// use; all state is fixed at construction.
type AVTransport struct {
	client     *soap.Client
	controlURL string
	parser     *didl.Parser
	log        *slog.Logger
}

// NewAVTransport binds an AVTransport facade to controlURL.
func NewAVTransport(client *soap.Client, controlURL string, logger *slog.Logger) *AVTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &AVTransport{
		client:     client,
		controlURL: controlURL,
		parser:     didl.NewParser(logger),
		log:        logger,
	}
}

var _ AVTransportAPI = (*AVTransport)(nil)

func (t *AVTransport) invoke(ctx context.Context, action string, params []soap.Param) ([]byte, error) {
	return t.client.Invoke(ctx, t.controlURL, soap.AVTransportURN, action, params)
}

func (t *AVTransport) Play(ctx context.Context) error {
	_, err := t.invoke(ctx, "Play", []soap.Param{{Name: "Speed", Value: "1"}})
	return err
}

func (t *AVTransport) Pause(ctx context.Context) error {
	_, err := t.invoke(ctx, "Pause", nil)
	return err
}

func (t *AVTransport) Stop(ctx context.Context) error {
	_, err := t.invoke(ctx, "Stop", nil)
	return err
}

func (t *AVTransport) Next(ctx context.Context) error {
	_, err := t.invoke(ctx, "Next", nil)
	return err
}

func (t *AVTransport) Previous(ctx context.Context) error {
	_, err := t.invoke(ctx, "Previous", nil)
	return err
}

// Seek jumps to position, a renderer-defined time string such as
// "00:01:30". The renderer validates the value.
func (t *AVTransport) Seek(ctx context.Context, position string) error {
	_, err := t.invoke(ctx, "Seek", []soap.Param{
		{Name: "Unit", Value: "REL_TIME"},
		{Name: "Target", Value: position},
	})
	return err
}

func (t *AVTransport) SetAVTransportURI(ctx context.Context, uri string) error {
	_, err := t.invoke(ctx, "SetAVTransportURI", []soap.Param{
		{Name: "CurrentURI", Value: uri},
		{Name: "CurrentURIMetaData", Value: ""},
	})
	return err
}

// TransportInfo queries the current playback state. A missing response
// element is fatal; missing individual fields fall back to defaults.
func (t *AVTransport) TransportInfo(ctx context.Context) (TransportInfo, error) {
	payload, err := t.invoke(ctx, "GetTransportInfo", nil)
	if err != nil {
		return TransportInfo{}, err
	}
	values, err := soap.ParseResponse(payload, "GetTransportInfo")
	if err != nil {
		return TransportInfo{}, err
	}
	return TransportInfo{
		Speed:  parseIntDefault(values["CurrentSpeed"], 1),
		State:  TransportState(values.Get("CurrentTransportState", string(StateStopped))),
		Status: values.Get("CurrentTransportStatus", "OK"),
	}, nil
}

// PositionInfo queries playhead position. Numeric fields fail softly to
// zero and track metadata degrades to nil.
func (t *AVTransport) PositionInfo(ctx context.Context) (PositionInfo, error) {
	payload, err := t.invoke(ctx, "GetPositionInfo", nil)
	if err != nil {
		return PositionInfo{}, err
	}
	values, err := soap.ParseResponse(payload, "GetPositionInfo")
	if err != nil {
		return PositionInfo{}, err
	}
	return PositionInfo{
		Track:         parseIntDefault(values["Track"], 0),
		TrackDuration: values["TrackDuration"],
		TrackURI:      values["TrackURI"],
		TrackMetaData: t.parser.Parse(values["TrackMetaData"]),
		RelTime:       values["RelTime"],
		AbsTime:       values["AbsTime"],
		RelCount:      parseIntDefault(values["RelCount"], 0),
		AbsCount:      parseIntDefault(values["AbsCount"], 0),
	}, nil
}

// MediaInfo queries the loaded media. URI metadata fields are routed
// through the DIDL parser.
func (t *AVTransport) MediaInfo(ctx context.Context) (MediaInfo, error) {
	payload, err := t.invoke(ctx, "GetMediaInfo", nil)
	if err != nil {
		return MediaInfo{}, err
	}
	values, err := soap.ParseResponse(payload, "GetMediaInfo")
	if err != nil {
		return MediaInfo{}, err
	}
	return MediaInfo{
		CurrentURI:         values["CurrentURI"],
		CurrentURIMetaData: t.parser.Parse(values["CurrentURIMetaData"]),
		NextURI:            values["NextURI"],
		NextURIMetaData:    t.parser.Parse(values["NextURIMetaData"]),
		PlayMedium:         values["PlayMedium"],
	}, nil
}

func parseIntDefault(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}
