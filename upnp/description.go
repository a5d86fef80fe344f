// Package upnp fetches and parses UPnP device description documents.
package upnp

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/castbridge/dlnacast/soap"
)

// ServiceDescriptor identifies one service advertised by a device.
// ControlURL and EventSubURL are always absolute, resolved against the
// description document's origin at parse time.
type ServiceDescriptor struct {
	ServiceType string
	ServiceID   string
	ControlURL  string
	EventSubURL string
	SCPDURL     string
}

// DeviceDescription is the parsed device description document.
type DeviceDescription struct {
	FriendlyName     string
	Manufacturer     string
	ModelName        string
	ModelDescription string
	UDN              string
	Services         []ServiceDescriptor
}

// FindService returns the first service whose serviceType contains
// substr (e.g. "AVTransport", "RenderingControl").
func (d *DeviceDescription) FindService(substr string) (*ServiceDescriptor, error) {
	for i := range d.Services {
		if strings.Contains(d.Services[i].ServiceType, substr) {
			return &d.Services[i], nil
		}
	}
	return nil, &soap.NotFoundError{ServiceType: substr}
}

// Descriptor fetches device description documents.
type Descriptor struct {
	httpClient *http.Client
}

// NewDescriptor creates a Descriptor with the given fetch timeout.
func NewDescriptor(timeout time.Duration) *Descriptor {
	return &Descriptor{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Describe GETs descriptionURL and parses the document into a
// DeviceDescription. Malformed documents yield a *soap.ProtocolError
// with phase "describe".
func (d *Descriptor) Describe(ctx context.Context, descriptionURL string) (*DeviceDescription, error) {
	origin, err := documentOrigin(descriptionURL)
	if err != nil {
		return nil, &soap.ProtocolError{Phase: "describe", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, descriptionURL, nil)
	if err != nil {
		return nil, &soap.ProtocolError{Phase: "describe", Cause: err}
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, &soap.ProtocolError{Phase: "describe", Cause: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &soap.ProtocolError{Phase: "describe", Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &soap.ProtocolError{Phase: "describe", Detail: fmt.Sprintf("http %d", resp.StatusCode)}
	}

	return ParseDescription(payload, origin)
}

// ParseDescription parses a device description document. origin is the
// scheme://host[:port] of the document URL, used to absolutize the
// per-service URLs.
func ParseDescription(payload []byte, origin string) (*DeviceDescription, error) {
	decoder := xml.NewDecoder(strings.NewReader(string(payload)))
	var desc DeviceDescription
	sawServiceList := false

	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "serviceList":
			sawServiceList = true
		case "service":
			var raw struct {
				ServiceType string `xml:"serviceType"`
				ServiceID   string `xml:"serviceId"`
				ControlURL  string `xml:"controlURL"`
				EventSubURL string `xml:"eventSubURL"`
				SCPDURL     string `xml:"SCPDURL"`
			}
			if err := decoder.DecodeElement(&raw, &se); err != nil {
				continue
			}
			serviceType := strings.TrimSpace(raw.ServiceType)
			controlURL := strings.TrimSpace(raw.ControlURL)
			eventSubURL := strings.TrimSpace(raw.EventSubURL)
			if serviceType == "" || controlURL == "" || eventSubURL == "" {
				return nil, &soap.ProtocolError{
					Phase:  "describe",
					Detail: fmt.Sprintf("service %q missing serviceType, controlURL, or eventSubURL", strings.TrimSpace(raw.ServiceID)),
				}
			}
			desc.Services = append(desc.Services, ServiceDescriptor{
				ServiceType: serviceType,
				ServiceID:   strings.TrimSpace(raw.ServiceID),
				ControlURL:  absolutize(origin, controlURL),
				EventSubURL: absolutize(origin, eventSubURL),
				SCPDURL:     absolutize(origin, raw.SCPDURL),
			})
		case "friendlyName":
			decodeText(decoder, &se, &desc.FriendlyName)
		case "manufacturer":
			decodeText(decoder, &se, &desc.Manufacturer)
		case "modelName":
			decodeText(decoder, &se, &desc.ModelName)
		case "modelDescription":
			decodeText(decoder, &se, &desc.ModelDescription)
		case "UDN":
			// Only take the first UDN: embedded devices carry their own.
			if desc.UDN == "" {
				var value string
				decodeText(decoder, &se, &value)
				desc.UDN = strings.TrimPrefix(value, "uuid:")
			}
		}
	}

	if !sawServiceList || len(desc.Services) == 0 {
		return nil, &soap.ProtocolError{Phase: "describe", Detail: "no serviceList in device description"}
	}

	return &desc, nil
}

func decodeText(decoder *xml.Decoder, se *xml.StartElement, out *string) {
	var value string
	if err := decoder.DecodeElement(&value, se); err == nil {
		*out = strings.TrimSpace(value)
	}
}

func documentOrigin(descriptionURL string) (string, error) {
	u, err := url.Parse(descriptionURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("description url %q is not absolute", descriptionURL)
	}
	return u.Scheme + "://" + u.Host, nil
}

func absolutize(origin, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if strings.Contains(value, "://") {
		return value
	}
	return origin + "/" + strings.TrimPrefix(value, "/")
}
