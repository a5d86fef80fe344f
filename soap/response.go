package soap

import (
	"bytes"
	"encoding/xml"
	"strings"
)

// ResponseValues holds the flattened child elements of an action
// response, keyed by local element name.
type ResponseValues map[string]string

// Get returns the trimmed value for name, or fallback when the element
// was absent or empty.
func (v ResponseValues) Get(name, fallback string) string {
	if value, ok := v[name]; ok && value != "" {
		return value
	}
	return fallback
}

// ParseResponse locates the u:<Action>Response element in a SOAP
// response body and returns its child element values. A body without
// the response element yields a *ProtocolError; individual fields are
// left to the caller to default.
func ParseResponse(payload []byte, action string) (ResponseValues, error) {
	decoder := xml.NewDecoder(bytes.NewReader(payload))
	want := action + "Response"

	for {
		tok, err := decoder.Token()
		if err != nil {
			return nil, &ProtocolError{Phase: "invoke", Action: action, Detail: "missing " + want + " element"}
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != want {
			continue
		}

		values := make(ResponseValues)
		for {
			tok, err := decoder.Token()
			if err != nil {
				return values, nil
			}
			switch child := tok.(type) {
			case xml.StartElement:
				var value string
				if err := decoder.DecodeElement(&value, &child); err == nil {
					values[child.Name.Local] = strings.TrimSpace(value)
				}
			case xml.EndElement:
				if child.Name.Local == want {
					return values, nil
				}
			}
		}
	}
}
