// Package relay implements the control facades over a pass-through
// HTTP proxy instead of talking SOAP to the renderer directly. Every
// action is POSTed to <base>/dlna/<action> as JSON and the proxy
// answers with {"data": <parsedResult>}.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/castbridge/dlnacast/soap"
)

// Client issues relay calls for one renderer. The control URL and the
// soap11 flag ride along on every request body so the proxy can reach
// the device.
type Client struct {
	base       string
	controlURL string
	soap11     bool
	httpClient *http.Client
	log        *slog.Logger
}

// NewClient creates a relay client. base is the proxy origin, e.g.
// "http://hub.local:8080".
func NewClient(base, controlURL string, soap11 bool, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		base:       base,
		controlURL: controlURL,
		soap11:     soap11,
		httpClient: &http.Client{Timeout: timeout},
		log:        logger,
	}
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

// call POSTs the action with the given extra params and returns the
// raw data payload.
func (c *Client) call(ctx context.Context, action string, params map[string]any) (json.RawMessage, error) {
	body := map[string]any{
		"controlURL": c.controlURL,
		"soap11":     c.soap11,
	}
	for key, value := range params {
		body[key] = value
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &soap.ProtocolError{Phase: "invoke", Action: action, Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/dlna/"+action, bytes.NewReader(payload))
	if err != nil {
		return nil, &soap.ProtocolError{Phase: "invoke", Action: action, Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &soap.ProtocolError{Phase: "invoke", Action: action, Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &soap.ProtocolError{Phase: "invoke", Action: action, Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &soap.ProtocolError{Phase: "invoke", Action: action, Detail: fmt.Sprintf("relay http %d", resp.StatusCode)}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &soap.ProtocolError{Phase: "invoke", Action: action, Cause: err}
	}
	return env.Data, nil
}

// decode runs call and unmarshals the data payload into out.
func (c *Client) decode(ctx context.Context, action string, params map[string]any, out any) error {
	data, err := c.call(ctx, action, params)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return &soap.ProtocolError{Phase: "invoke", Action: action, Detail: "empty relay response"}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &soap.ProtocolError{Phase: "invoke", Action: action, Cause: err}
	}
	return nil
}
