package gpx

import (
	"encoding/xml"
	"slices"
	"time"
)

// RawXML preserves nested extension blocks without re-parsing them.
// We store the inner XML bytes verbatim so we can round-trip extensions
// emitted by other tools (Garmin, Strava, etc.).
type RawXML []byte

func (r RawXML) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	if len(r) == 0 {
		return nil
	}

	type inner struct {
		Content string `xml:",innerxml"`
	}

	return e.EncodeElement(inner{Content: string(r)}, start)
}

func (r *RawXML) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	type inner struct {
		Content string `xml:",innerxml"`
	}

	var data inner
	if err := d.DecodeElement(&data, &start); err != nil {
		return err
	}

	if len(data.Content) == 0 {
		*r = nil
		return nil
	}

	*r = append((*r)[:0], data.Content...)
	return nil
}

// Point represents a GPS track point with all metadata.
// A nil Time means the source point carried no <time> element.
type Point struct {
	Lat       float64    `xml:"lat,attr"`
	Lon       float64    `xml:"lon,attr"`
	Elevation *float64   `xml:"ele,omitempty"`
	Time      *time.Time `xml:"time,omitempty"`

	Name string   `xml:"name,omitempty"`
	Sym  string   `xml:"sym,omitempty"`
	Type string   `xml:"type,omitempty"`
	Sat  *int     `xml:"sat,omitempty"`
	HDOP *float64 `xml:"hdop,omitempty"`
	VDOP *float64 `xml:"vdop,omitempty"`
	PDOP *float64 `xml:"pdop,omitempty"`

	// Extensions (Garmin, Strava, etc.) - preserve as raw XML
	Extensions RawXML `xml:"extensions,omitempty"`
}

// Clone returns a deep copy of p so the copy can be edited without
// touching the source document.
func (p Point) Clone() Point {
	out := p
	out.Elevation = clonePtr(p.Elevation)
	out.Time = clonePtr(p.Time)
	out.Sat = clonePtr(p.Sat)
	out.HDOP = clonePtr(p.HDOP)
	out.VDOP = clonePtr(p.VDOP)
	out.PDOP = clonePtr(p.PDOP)
	out.Extensions = slices.Clone(p.Extensions)
	return out
}

// WithTime returns a clone of p stamped with t.
func (p Point) WithTime(t time.Time) Point {
	out := p.Clone()
	out.Time = &t
	return out
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Track represents a GPX track with segments
type Track struct {
	Name        string         `xml:"name,omitempty"`
	Comment     string         `xml:"cmt,omitempty"`
	Description string         `xml:"desc,omitempty"`
	Type        string         `xml:"type,omitempty"`
	Segments    []TrackSegment `xml:"trkseg"`
	Extensions  RawXML         `xml:"extensions,omitempty"`
}

// TrackSegment represents a track segment
type TrackSegment struct {
	Points     []Point `xml:"trkpt"`
	Extensions RawXML  `xml:"extensions,omitempty"`
}

// GPX represents the full GPX file structure
type GPX struct {
	XMLName xml.Name `xml:"gpx"`
	Version string   `xml:"version,attr"`
	Creator string   `xml:"creator,attr"`
	XMLNS   string   `xml:"xmlns,attr,omitempty"`

	// Namespace declarations (xmlns:gpxtpx, xmlns:xsi, ...) and other
	// prefixed root attributes such as xsi:schemaLocation. ParseReader
	// rewrites them into their literal prefixed form so they are written
	// back exactly as they were read.
	Attrs []xml.Attr `xml:",any,attr"`

	Metadata   *Metadata `xml:"metadata,omitempty"`
	Waypoints  []Point   `xml:"wpt"`
	Routes     []Route   `xml:"rte"`
	Tracks     []Track   `xml:"trk"`
	Extensions RawXML    `xml:"extensions,omitempty"`
}

// Route is carried through untouched; only tracks are trimmed.
type Route struct {
	Name       string  `xml:"name,omitempty"`
	Points     []Point `xml:"rtept"`
	Extensions RawXML  `xml:"extensions,omitempty"`
}

// Metadata represents GPX metadata
type Metadata struct {
	Name        string     `xml:"name,omitempty"`
	Description string     `xml:"desc,omitempty"`
	Author      RawXML     `xml:"author,omitempty"`
	Time        *time.Time `xml:"time,omitempty"`
	Extensions  RawXML     `xml:"extensions,omitempty"`
}
