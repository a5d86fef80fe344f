package soap

import "fmt"

// ProtocolError represents a failed UPnP exchange: a transport failure,
// a non-2xx HTTP response, or a response missing the expected XML structure.
type ProtocolError struct {
	Phase  string // "invoke" or "describe"
	Action string
	Code   string // UPnP fault code, when the device returned one
	Detail string
	Cause  error
}

func (e *ProtocolError) Error() string {
	switch {
	case e.Code != "" && e.Detail != "":
		return fmt.Sprintf("upnp %s %s failed: fault %s (%s)", e.Phase, e.Action, e.Code, e.Detail)
	case e.Code != "":
		return fmt.Sprintf("upnp %s %s failed: fault %s", e.Phase, e.Action, e.Code)
	case e.Detail != "":
		return fmt.Sprintf("upnp %s %s failed: %s", e.Phase, e.Action, e.Detail)
	case e.Cause != nil:
		return fmt.Sprintf("upnp %s %s failed: %v", e.Phase, e.Action, e.Cause)
	}
	return fmt.Sprintf("upnp %s %s failed", e.Phase, e.Action)
}

func (e *ProtocolError) Unwrap() error {
	return e.Cause
}

// NotFoundError indicates a requested service type is absent from a
// device description.
type NotFoundError struct {
	ServiceType string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("upnp service %s not found in device description", e.ServiceType)
}
