package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/castbridge/dlnacast/control"
	"github.com/castbridge/dlnacast/events"
)

const descriptionTemplate = `<?xml version="1.0"?>
<root xmlns="urn:schemas-upnp-org:device-1-0">
  <device>
    <friendlyName>Test Renderer</friendlyName>
    <serviceList>
      <service>
        <serviceType>urn:schemas-upnp-org:service:AVTransport:1</serviceType>
        <serviceId>urn:upnp-org:serviceId:AVTransport</serviceId>
        <controlURL>/AVTransport/Control</controlURL>
        <eventSubURL>/AVTransport/Event</eventSubURL>
        <SCPDURL>/AVTransport.xml</SCPDURL>
      </service>
      <service>
        <serviceType>urn:schemas-upnp-org:service:RenderingControl:1</serviceType>
        <serviceId>urn:upnp-org:serviceId:RenderingControl</serviceId>
        <controlURL>/RenderingControl/Control</controlURL>
        <eventSubURL>/RenderingControl/Event</eventSubURL>
        <SCPDURL>/RenderingControl.xml</SCPDURL>
      </service>
    </serviceList>
  </device>
</root>`

// newRenderer serves a device description plus canned SOAP responses.
func newRenderer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/description.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(descriptionTemplate))
	})
	mux.HandleFunc("/AVTransport/Control", func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.Header.Get("SOAPACTION"), "GetTransportInfo") {
			w.Write([]byte(`<s:Envelope><s:Body><u:GetTransportInfoResponse>
				<CurrentTransportState>PLAYING</CurrentTransportState>
				<CurrentTransportStatus>OK</CurrentTransportStatus>
				<CurrentSpeed>1</CurrentSpeed>
			</u:GetTransportInfoResponse></s:Body></s:Envelope>`))
			return
		}
		w.Write([]byte("<s:Envelope><s:Body><u:Response/></s:Body></s:Envelope>"))
	})
	mux.HandleFunc("/RenderingControl/Control", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<s:Envelope><s:Body><u:GetVolumeResponse>
			<CurrentVolume>30</CurrentVolume></u:GetVolumeResponse></s:Body></s:Envelope>`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestConnectDirect(t *testing.T) {
	renderer := newRenderer(t)
	sess := New(Options{DescriptionURL: renderer.URL + "/description.xml"})
	t.Cleanup(sess.Disconnect)

	require.NoError(t, sess.Connect(context.Background()))
	require.Equal(t, "Test Renderer", sess.Device().FriendlyName)

	avt, err := sess.AVTransport()
	require.NoError(t, err)
	info, err := avt.TransportInfo(context.Background())
	require.NoError(t, err)
	require.Equal(t, control.StatePlaying, info.State)

	rcs, err := sess.RenderingControl()
	require.NoError(t, err)
	volume, err := rcs.Volume(context.Background())
	require.NoError(t, err)
	require.Equal(t, 30, volume)
}

func TestConnectConcurrent(t *testing.T) {
	var mu sync.Mutex
	describes := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/description.xml", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		describes++
		mu.Unlock()
		w.Write([]byte(descriptionTemplate))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	sess := New(Options{DescriptionURL: srv.URL + "/description.xml"})
	t.Cleanup(sess.Disconnect)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = sess.Connect(context.Background())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	// Only the first caller resolves the device; the rest observe the
	// connected session and return without redoing the work.
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, describes)
}

func TestFacadesBeforeConnect(t *testing.T) {
	sess := New(Options{DescriptionURL: "http://10.0.0.5/description.xml"})

	_, err := sess.AVTransport()
	require.ErrorIs(t, err, ErrNotConnected)
	_, err = sess.RenderingControl()
	require.ErrorIs(t, err, ErrNotConnected)
	require.ErrorIs(t, sess.SubscribePlaybackState(func(events.PlaybackStateEvent) {}), ErrNotConnected)
}

func TestConnectRelay(t *testing.T) {
	renderer := newRenderer(t)

	var relayedActions []string
	var relayedControlURL string
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		relayedActions = append(relayedActions, strings.TrimPrefix(r.URL.Path, "/dlna/"))
		relayedControlURL, _ = body["controlURL"].(string)
		json.NewEncoder(w).Encode(map[string]any{"data": nil})
	}))
	t.Cleanup(proxy.Close)

	sess := New(Options{
		DescriptionURL: renderer.URL + "/description.xml",
		ProxyBase:      proxy.URL,
		SOAP11:         true,
	})
	t.Cleanup(sess.Disconnect)
	require.NoError(t, sess.Connect(context.Background()))

	avt, err := sess.AVTransport()
	require.NoError(t, err)
	require.NoError(t, avt.Play(context.Background()))

	require.Equal(t, []string{"play"}, relayedActions)
	require.Equal(t, renderer.URL+"/AVTransport/Control", relayedControlURL)
}

func TestSubscribePlaybackState(t *testing.T) {
	renderer := newRenderer(t)

	upgrader := websocket.Upgrader{}
	bus := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Wait for the subscribe frame, then publish one event on the
		// subscribed topic.
		var frame events.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		conn.WriteJSON(events.Frame{
			Type:        "message",
			Destination: frame.Destination,
			Body:        json.RawMessage(`{"transportState":"PLAYING","relativeTimePosition":"00:00:05"}`),
		})

		// Hold the connection open until the client disconnects.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(bus.Close)

	sess := New(Options{
		DescriptionURL: renderer.URL + "/description.xml",
		EventBusURL:    "ws" + strings.TrimPrefix(bus.URL, "http"),
	})
	t.Cleanup(sess.Disconnect)
	require.NoError(t, sess.Connect(context.Background()))
	require.Contains(t, sess.PlaybackTopic(), "/topic/upnp/event/AVTransport/127.0.0.1")

	received := make(chan events.PlaybackStateEvent, 1)
	require.NoError(t, sess.SubscribePlaybackState(func(event events.PlaybackStateEvent) {
		received <- event
	}))

	select {
	case event := <-received:
		require.Equal(t, control.StatePlaying, event.TransportState)
		require.Equal(t, "00:00:05", event.RelativeTimePosition)
	case <-time.After(2 * time.Second):
		t.Fatal("no playback event delivered")
	}
}
