// Package didl parses DIDL-Lite item metadata embedded in AVTransport
// responses. Parsing never fails hard: malformed input yields nil
// metadata and a logged warning.
package didl

import (
	"encoding/xml"
	"log/slog"
	"strconv"
	"strings"
)

// UnknownTitle is used when an item carries no usable title element.
const UnknownTitle = "Unknown Title"

// Resource mirrors the res child of an item: protocolInfo attribute
// plus the element text, copied verbatim.
type Resource struct {
	ProtocolInfo string `json:"protocolInfo"`
	Value        string `json:"value"`
}

// Item is the playback metadata for one media item. Title is always
// set; every other field is present only when the source XML carried a
// non-empty value.
type Item struct {
	Title       string    `json:"title"`
	Artist      string    `json:"artist,omitempty"`
	Album       string    `json:"album,omitempty"`
	Genre       string    `json:"genre,omitempty"`
	Duration    string    `json:"duration,omitempty"`
	AlbumArtURI string    `json:"albumArtURI,omitempty"`
	Resolution  string    `json:"resolution,omitempty"`
	Size        int64     `json:"size,omitempty"`
	Res         *Resource `json:"res,omitempty"`
}

// Metadata is the parsed form of a DIDL-Lite document's first item.
type Metadata struct {
	Item Item `json:"item"`
}

// Parser converts DIDL-Lite XML into Metadata. The zero value is
// usable; NewParser attaches a diagnostics logger.
type Parser struct {
	log *slog.Logger
}

// NewParser creates a Parser routing parse warnings to logger. A nil
// logger falls back to slog.Default().
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{log: logger}
}

type didlDocument struct {
	Items []didlItem `xml:"item"`
}

type didlItem struct {
	DCTitle     string   `xml:"http://purl.org/dc/elements/1.1/ title"`
	UpnpTitle   string   `xml:"urn:schemas-upnp-org:metadata-1-0/upnp/ title"`
	UpnpArtist  string   `xml:"urn:schemas-upnp-org:metadata-1-0/upnp/ artist"`
	DCCreator   string   `xml:"http://purl.org/dc/elements/1.1/ creator"`
	Album       string   `xml:"urn:schemas-upnp-org:metadata-1-0/upnp/ album"`
	Genre       string   `xml:"urn:schemas-upnp-org:metadata-1-0/upnp/ genre"`
	AlbumArtURI string   `xml:"urn:schemas-upnp-org:metadata-1-0/upnp/ albumArtURI"`
	Res         *didlRes `xml:"res"`
}

type didlRes struct {
	ProtocolInfo string `xml:"protocolInfo,attr"`
	Duration     string `xml:"duration,attr"`
	Resolution   string `xml:"resolution,attr"`
	Size         string `xml:"size,attr"`
	Value        string `xml:",chardata"`
}

// Parse extracts the first item of a DIDL-Lite document. It returns nil
// for empty input, the NOT_IMPLEMENTED sentinel some renderers send,
// documents without an item, or any parse failure.
func (p *Parser) Parse(didlXML string) *Metadata {
	didlXML = strings.TrimSpace(didlXML)
	if didlXML == "" || didlXML == "NOT_IMPLEMENTED" {
		return nil
	}

	var doc didlDocument
	if err := xml.Unmarshal([]byte(didlXML), &doc); err != nil {
		p.logger().Warn("didl parse failed", "error", err)
		return nil
	}
	if len(doc.Items) == 0 {
		return nil
	}

	raw := doc.Items[0]
	item := Item{
		Title:       firstNonEmpty(raw.DCTitle, raw.UpnpTitle, UnknownTitle),
		Artist:      firstNonEmpty(raw.UpnpArtist, raw.DCCreator),
		Album:       strings.TrimSpace(raw.Album),
		Genre:       strings.TrimSpace(raw.Genre),
		AlbumArtURI: strings.TrimSpace(raw.AlbumArtURI),
	}

	if raw.Res != nil {
		item.Duration = raw.Res.Duration
		item.Resolution = raw.Res.Resolution
		if raw.Res.Size != "" {
			size, err := strconv.ParseInt(raw.Res.Size, 10, 64)
			if err != nil {
				p.logger().Warn("didl res size not numeric", "size", raw.Res.Size)
			} else {
				item.Size = size
			}
		}
		item.Res = &Resource{
			ProtocolInfo: raw.Res.ProtocolInfo,
			Value:        strings.TrimSpace(raw.Res.Value),
		}
	}

	return &Metadata{Item: item}
}

func (p *Parser) logger() *slog.Logger {
	if p.log != nil {
		return p.log
	}
	return slog.Default()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
