package soap

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// Well-known renderer service type URNs.
const (
	AVTransportURN      = "urn:schemas-upnp-org:service:AVTransport:1"
	RenderingControlURN = "urn:schemas-upnp-org:service:RenderingControl:1"
)

// Param is a single action argument. Params are kept as an ordered slice
// because some UPnP services are positionally sensitive.
type Param struct {
	Name  string
	Value string
}

// Client issues SOAP 1.1 requests to a renderer's control endpoints.
// It is stateless apart from the pooled HTTP client and safe for
// concurrent use.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a SOAP client with the given per-request timeout.
// Uses connection pooling for better performance when making multiple
// requests to the same renderer.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext:         (&net.Dialer{Timeout: timeout}).DialContext,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// BuildEnvelope renders the fixed SOAP 1.1 envelope for an action.
// InstanceID=0 is always the first argument; the caller-supplied params
// follow in the order given. Values are XML-escaped.
func BuildEnvelope(serviceType, action string, params []Param) []byte {
	var buf strings.Builder
	buf.WriteString("<?xml version=\"1.0\" encoding=\"utf-8\"?>")
	buf.WriteString("<s:Envelope xmlns:s=\"http://schemas.xmlsoap.org/soap/envelope/\" s:encodingStyle=\"http://schemas.xmlsoap.org/soap/encoding/\">")
	buf.WriteString("<s:Body>")
	buf.WriteString("<u:")
	buf.WriteString(action)
	buf.WriteString(" xmlns:u=\"")
	buf.WriteString(serviceType)
	buf.WriteString("\">")
	buf.WriteString("<InstanceID>0</InstanceID>")

	for _, p := range params {
		buf.WriteString("\n            <")
		buf.WriteString(p.Name)
		buf.WriteString(">")
		buf.WriteString(escapeXML(p.Value))
		buf.WriteString("</")
		buf.WriteString(p.Name)
		buf.WriteString(">")
	}

	buf.WriteString("</u:")
	buf.WriteString(action)
	buf.WriteString(">")
	buf.WriteString("</s:Body>")
	buf.WriteString("</s:Envelope>")

	return []byte(buf.String())
}

// Invoke POSTs the action envelope to controlURL and returns the raw
// response body. Transport failures and non-2xx responses surface as
// *ProtocolError.
func (c *Client) Invoke(ctx context.Context, controlURL, serviceType, action string, params []Param) ([]byte, error) {
	body := BuildEnvelope(serviceType, action, params)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, controlURL, bytes.NewReader(body))
	if err != nil {
		return nil, &ProtocolError{Phase: "invoke", Action: action, Cause: err}
	}

	req.Header.Set("Content-Type", "text/xml; charset=\"utf-8\"")
	req.Header.Set("SOAPACTION", fmt.Sprintf("\"%s#%s\"", serviceType, action))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ProtocolError{Phase: "invoke", Action: action, Cause: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProtocolError{Phase: "invoke", Action: action, Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		code, desc := parseFault(payload)
		return nil, &ProtocolError{
			Phase:  "invoke",
			Action: action,
			Code:   code,
			Detail: firstNonEmpty(desc, fmt.Sprintf("http %d", resp.StatusCode)),
		}
	}

	return payload, nil
}

func escapeXML(input string) string {
	var b strings.Builder
	if err := xml.EscapeText(&b, []byte(input)); err != nil {
		return input
	}
	return b.String()
}

// parseFault pulls errorCode/errorDescription out of a SOAP fault body.
func parseFault(payload []byte) (string, string) {
	decoder := xml.NewDecoder(bytes.NewReader(payload))
	var code string
	var desc string

	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "errorCode":
				var value string
				if err := decoder.DecodeElement(&value, &se); err == nil {
					code = strings.TrimSpace(value)
				}
			case "errorDescription":
				var value string
				if err := decoder.DecodeElement(&value, &se); err == nil {
					desc = strings.TrimSpace(value)
				}
			}
		}
	}

	return code, desc
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
