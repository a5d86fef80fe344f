package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/castbridge/dlnacast/control"
	"github.com/castbridge/dlnacast/soap"
)

type recordedCall struct {
	action string
	body   map[string]any
}

// newFakeProxy stands in for the server-side pass-through relay.
func newFakeProxy(t *testing.T, data map[string]any) (*httptest.Server, *[]recordedCall) {
	t.Helper()
	var calls []recordedCall

	router := chi.NewRouter()
	router.Post("/dlna/{action}", func(w http.ResponseWriter, r *http.Request) {
		action := chi.URLParam(r, "action")
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		calls = append(calls, recordedCall{action: action, body: body})

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"data": data[action]})
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestRelayCalls(t *testing.T) {
	t.Run("posts control url and soap11 on every call", func(t *testing.T) {
		srv, calls := newFakeProxy(t, nil)
		client := NewClient(srv.URL, "http://10.0.0.5:8200/AVTransport/Control", true, 5*time.Second, nil)

		err := NewAVTransport(client).Play(context.Background())
		require.NoError(t, err)
		require.Len(t, *calls, 1)
		require.Equal(t, "play", (*calls)[0].action)
		require.Equal(t, "http://10.0.0.5:8200/AVTransport/Control", (*calls)[0].body["controlURL"])
		require.Equal(t, true, (*calls)[0].body["soap11"])
	})

	t.Run("seek and set uri carry their params", func(t *testing.T) {
		srv, calls := newFakeProxy(t, nil)
		client := NewClient(srv.URL, "http://10.0.0.5/ctl", false, 5*time.Second, nil)
		avt := NewAVTransport(client)

		require.NoError(t, avt.Seek(context.Background(), "00:01:30"))
		require.NoError(t, avt.SetAVTransportURI(context.Background(), "http://example.com/a.mp4"))

		require.Equal(t, "00:01:30", (*calls)[0].body["position"])
		require.Equal(t, "http://example.com/a.mp4", (*calls)[1].body["uri"])
	})

	t.Run("decodes typed transport info from data envelope", func(t *testing.T) {
		srv, _ := newFakeProxy(t, map[string]any{
			"getTransportInfo": map[string]any{
				"currentSpeed":           1,
				"currentTransportState":  "PLAYING",
				"currentTransportStatus": "OK",
			},
		})
		client := NewClient(srv.URL, "http://10.0.0.5/ctl", false, 5*time.Second, nil)

		info, err := NewAVTransport(client).TransportInfo(context.Background())
		require.NoError(t, err)
		require.Equal(t, control.StatePlaying, info.State)
		require.Equal(t, 1, info.Speed)
	})

	t.Run("decodes position info with metadata", func(t *testing.T) {
		srv, _ := newFakeProxy(t, map[string]any{
			"getPositionInfo": map[string]any{
				"track":         1,
				"trackDuration": "00:42:05",
				"relTime":       "00:01:30",
				"trackMetaData": map[string]any{"item": map[string]any{"title": "Episode 1"}},
			},
		})
		client := NewClient(srv.URL, "http://10.0.0.5/ctl", false, 5*time.Second, nil)

		info, err := NewAVTransport(client).PositionInfo(context.Background())
		require.NoError(t, err)
		require.Equal(t, 1, info.Track)
		require.Equal(t, "00:42:05", info.TrackDuration)
		require.NotNil(t, info.TrackMetaData)
		require.Equal(t, "Episode 1", info.TrackMetaData.Item.Title)
	})

	t.Run("volume and mute", func(t *testing.T) {
		srv, calls := newFakeProxy(t, map[string]any{
			"getVolume": 42,
			"isMute":    true,
		})
		client := NewClient(srv.URL, "http://10.0.0.5/ctl", false, 5*time.Second, nil)
		rcs := NewRenderingControl(client)

		volume, err := rcs.Volume(context.Background())
		require.NoError(t, err)
		require.Equal(t, 42, volume)

		muted, err := rcs.Mute(context.Background())
		require.NoError(t, err)
		require.True(t, muted)

		require.NoError(t, rcs.SetVolume(context.Background(), 10))
		require.NoError(t, rcs.SetMute(context.Background(), false))
		require.Equal(t, float64(10), (*calls)[2].body["volume"])
		require.Equal(t, false, (*calls)[3].body["mute"])
	})

	t.Run("relay failure is a protocol error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		t.Cleanup(srv.Close)
		client := NewClient(srv.URL, "http://10.0.0.5/ctl", false, 5*time.Second, nil)

		err := NewAVTransport(client).Play(context.Background())
		var protoErr *soap.ProtocolError
		require.ErrorAs(t, err, &protoErr)
		require.Equal(t, "invoke", protoErr.Phase)
	})
}
