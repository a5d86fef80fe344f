package control

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/castbridge/dlnacast/soap"
)

type soapExchange struct {
	action string
	body   string
}

// newSOAPServer records incoming actions and replies with canned
// response bodies keyed by SOAPACTION.
func newSOAPServer(t *testing.T, replies map[string]string) (*httptest.Server, *[]soapExchange) {
	t.Helper()
	var seen []soapExchange
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, _ := io.ReadAll(r.Body)
		action := r.Header.Get("SOAPACTION")
		seen = append(seen, soapExchange{action: action, body: string(payload)})
		for key, reply := range replies {
			if action == key {
				w.Write([]byte(reply))
				return
			}
		}
		w.Write([]byte("<s:Envelope><s:Body></s:Body></s:Envelope>"))
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func newAVTransport(t *testing.T, srv *httptest.Server) *AVTransport {
	t.Helper()
	return NewAVTransport(soap.NewClient(5*time.Second), srv.URL+"/AVTransport/Control", nil)
}

func TestTransportCommands(t *testing.T) {
	t.Run("play sends speed 1", func(t *testing.T) {
		srv, seen := newSOAPServer(t, map[string]string{
			`"urn:schemas-upnp-org:service:AVTransport:1#Play"`: "<s:Envelope><s:Body><u:PlayResponse/></s:Body></s:Envelope>",
		})

		err := newAVTransport(t, srv).Play(context.Background())
		require.NoError(t, err)
		require.Len(t, *seen, 1)
		require.Contains(t, (*seen)[0].body, "<Speed>1</Speed>")
		require.Contains(t, (*seen)[0].body, "<InstanceID>0</InstanceID>")
	})

	t.Run("seek sends unit then target", func(t *testing.T) {
		srv, seen := newSOAPServer(t, nil)

		err := newAVTransport(t, srv).Seek(context.Background(), "00:01:30")
		require.NoError(t, err)
		require.Contains(t, (*seen)[0].body, "<Unit>REL_TIME</Unit>")
		require.Contains(t, (*seen)[0].body, "<Target>00:01:30</Target>")
	})

	t.Run("set uri sends empty metadata", func(t *testing.T) {
		srv, seen := newSOAPServer(t, nil)

		err := newAVTransport(t, srv).SetAVTransportURI(context.Background(), "http://example.com/movie.mp4")
		require.NoError(t, err)
		require.Contains(t, (*seen)[0].body, "<CurrentURI>http://example.com/movie.mp4</CurrentURI>")
		require.Contains(t, (*seen)[0].body, "<CurrentURIMetaData></CurrentURIMetaData>")
	})

	t.Run("control action propagates device rejection", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("<s:Fault><errorCode>701</errorCode></s:Fault>"))
		}))
		t.Cleanup(srv.Close)

		err := newAVTransport(t, srv).Pause(context.Background())
		var protoErr *soap.ProtocolError
		require.ErrorAs(t, err, &protoErr)
		require.Equal(t, "701", protoErr.Code)
	})
}

func TestTransportInfo(t *testing.T) {
	t.Run("round trips all three fields", func(t *testing.T) {
		srv, _ := newSOAPServer(t, map[string]string{
			`"urn:schemas-upnp-org:service:AVTransport:1#GetTransportInfo"`: `<s:Envelope><s:Body>
				<u:GetTransportInfoResponse>
					<CurrentTransportState>PAUSED_PLAYBACK</CurrentTransportState>
					<CurrentTransportStatus>OK</CurrentTransportStatus>
					<CurrentSpeed>1</CurrentSpeed>
				</u:GetTransportInfoResponse></s:Body></s:Envelope>`,
		})

		info, err := newAVTransport(t, srv).TransportInfo(context.Background())
		require.NoError(t, err)
		require.Equal(t, StatePausedPlayback, info.State)
		require.Equal(t, "OK", info.Status)
		require.Equal(t, 1, info.Speed)
	})

	t.Run("missing fields fall back to defaults", func(t *testing.T) {
		srv, _ := newSOAPServer(t, map[string]string{
			`"urn:schemas-upnp-org:service:AVTransport:1#GetTransportInfo"`: `<s:Envelope><s:Body>
				<u:GetTransportInfoResponse></u:GetTransportInfoResponse></s:Body></s:Envelope>`,
		})

		info, err := newAVTransport(t, srv).TransportInfo(context.Background())
		require.NoError(t, err)
		require.Equal(t, StateStopped, info.State)
		require.Equal(t, "OK", info.Status)
		require.Equal(t, 1, info.Speed)
	})

	t.Run("missing response element is fatal", func(t *testing.T) {
		srv, _ := newSOAPServer(t, nil)

		_, err := newAVTransport(t, srv).TransportInfo(context.Background())
		var protoErr *soap.ProtocolError
		require.ErrorAs(t, err, &protoErr)
	})
}

func TestPositionInfo(t *testing.T) {
	srv, _ := newSOAPServer(t, map[string]string{
		`"urn:schemas-upnp-org:service:AVTransport:1#GetPositionInfo"`: `<s:Envelope><s:Body>
			<u:GetPositionInfoResponse>
				<Track>1</Track>
				<TrackDuration>00:42:05</TrackDuration>
				<TrackURI>http://10.0.0.5/media/1.mp4</TrackURI>
				<TrackMetaData>&lt;DIDL-Lite xmlns="urn:schemas-upnp-org:metadata-1-0/DIDL-Lite/" xmlns:dc="http://purl.org/dc/elements/1.1/"&gt;&lt;item&gt;&lt;dc:title&gt;Episode 1&lt;/dc:title&gt;&lt;/item&gt;&lt;/DIDL-Lite&gt;</TrackMetaData>
				<RelTime>00:01:30</RelTime>
				<AbsTime>NOT_IMPLEMENTED</AbsTime>
				<RelCount>90</RelCount>
				<AbsCount>notanumber</AbsCount>
			</u:GetPositionInfoResponse></s:Body></s:Envelope>`,
	})

	info, err := newAVTransport(t, srv).PositionInfo(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, info.Track)
	require.Equal(t, "00:42:05", info.TrackDuration)
	require.Equal(t, "http://10.0.0.5/media/1.mp4", info.TrackURI)
	require.Equal(t, "00:01:30", info.RelTime)
	require.Equal(t, 90, info.RelCount)
	// Unparseable numerics degrade to zero rather than failing.
	require.Zero(t, info.AbsCount)
	require.NotNil(t, info.TrackMetaData)
	require.Equal(t, "Episode 1", info.TrackMetaData.Item.Title)
}

func TestMediaInfo(t *testing.T) {
	srv, _ := newSOAPServer(t, map[string]string{
		`"urn:schemas-upnp-org:service:AVTransport:1#GetMediaInfo"`: `<s:Envelope><s:Body>
			<u:GetMediaInfoResponse>
				<CurrentURI>http://10.0.0.5/media/1.mp4</CurrentURI>
				<CurrentURIMetaData>NOT_IMPLEMENTED</CurrentURIMetaData>
				<PlayMedium>NETWORK</PlayMedium>
			</u:GetMediaInfoResponse></s:Body></s:Envelope>`,
	})

	info, err := newAVTransport(t, srv).MediaInfo(context.Background())
	require.NoError(t, err)
	require.Equal(t, "http://10.0.0.5/media/1.mp4", info.CurrentURI)
	require.Nil(t, info.CurrentURIMetaData)
	require.Empty(t, info.NextURI)
	require.Equal(t, "NETWORK", info.PlayMedium)
}
