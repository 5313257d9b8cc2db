package gpx

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/planbiir/gpxtrim/internal/geo"
)

const (
	// DefaultNamespace is the GPX 1.1 namespace written when the source omits it.
	DefaultNamespace = "http://www.topografix.com/GPX/1/1"

	xmlnsPrefix = "xmlns"
	xmlURL      = "http://www.w3.org/XML/1998/namespace"
)

// Parse reads and parses a GPX file, preserving all extensions and namespaces
func Parse(filename string) (*GPX, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return ParseReader(file)
}

// ParseBytes parses an in-memory GPX document.
func ParseBytes(data []byte) (*GPX, error) {
	return ParseReader(bytes.NewReader(data))
}

// ParseReader parses GPX from an io.Reader
func ParseReader(r io.Reader) (*GPX, error) {
	decoder := xml.NewDecoder(r)

	var gpxData GPX
	if err := decoder.Decode(&gpxData); err != nil {
		return nil, fmt.Errorf("failed to parse GPX: %w", err)
	}

	// Set default namespaces if missing
	if gpxData.XMLNS == "" {
		gpxData.XMLNS = DefaultNamespace
	}
	if gpxData.Version == "" {
		gpxData.Version = "1.1"
	}
	if gpxData.Creator == "" {
		gpxData.Creator = "gpxtrim"
	}

	gpxData.Attrs = literalAttrs(gpxData.Attrs)

	return &gpxData, nil
}

// literalAttrs turns decoded root attributes back into the prefixed names
// they had in the source. The decoder resolves prefixes into namespace URLs,
// which the encoder would otherwise re-emit under generated prefixes and
// leave prefixed extension elements unbound.
func literalAttrs(attrs []xml.Attr) []xml.Attr {
	if len(attrs) == 0 {
		return nil
	}

	prefixes := make(map[string]string, len(attrs))
	for _, a := range attrs {
		if a.Name.Space == xmlnsPrefix {
			prefixes[a.Value] = a.Name.Local
		}
	}

	out := make([]xml.Attr, 0, len(attrs))
	for _, a := range attrs {
		switch space := a.Name.Space; {
		case space == "":
		case space == xmlnsPrefix:
			a.Name = xml.Name{Local: xmlnsPrefix + ":" + a.Name.Local}
		case space == xmlURL:
			a.Name = xml.Name{Local: "xml:" + a.Name.Local}
		case prefixes[space] != "":
			a.Name = xml.Name{Local: prefixes[space] + ":" + a.Name.Local}
		default:
			a.Name = xml.Name{Local: a.Name.Local}
		}
		out = append(out, a)
	}

	return out
}

// Write saves GPX data to a file, preserving all extensions and structure
func (g *GPX) Write(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	return g.WriteToWriter(file)
}

// WriteToWriter writes GPX data to an io.Writer
func (g *GPX) WriteToWriter(w io.Writer) error {
	// Write XML header
	if _, err := w.Write([]byte(xml.Header)); err != nil {
		return err
	}

	encoder := xml.NewEncoder(w)
	encoder.Indent("", "  ")

	if err := encoder.Encode(g); err != nil {
		return fmt.Errorf("failed to encode GPX: %w", err)
	}

	return encoder.Close()
}

// Bytes serializes the document.
func (g *GPX) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := g.WriteToWriter(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Header returns a copy of the document with everything except the tracks.
func (g *GPX) Header() *GPX {
	h := *g
	h.Tracks = nil
	h.Attrs = slices.Clone(g.Attrs)
	h.Extensions = slices.Clone(g.Extensions)
	if g.Metadata != nil {
		md := *g.Metadata
		md.Time = clonePtr(g.Metadata.Time)
		md.Author = slices.Clone(g.Metadata.Author)
		md.Extensions = slices.Clone(g.Metadata.Extensions)
		h.Metadata = &md
	}
	h.Waypoints = clonePoints(g.Waypoints)
	if g.Routes != nil {
		h.Routes = make([]Route, len(g.Routes))
		for i, r := range g.Routes {
			h.Routes[i] = Route{Name: r.Name, Points: clonePoints(r.Points), Extensions: slices.Clone(r.Extensions)}
		}
	}
	return &h
}

func clonePoints(points []Point) []Point {
	if points == nil {
		return nil
	}
	out := make([]Point, len(points))
	for i, p := range points {
		out[i] = p.Clone()
	}
	return out
}

// Stats returns basic statistics about the GPX data
func (g *GPX) Stats() (pointCount int, trackCount int, segmentCount int, duration time.Duration, distance float64) {
	trackCount = len(g.Tracks)

	var first, last *time.Time
	var prev *Point
	for _, track := range g.Tracks {
		segmentCount += len(track.Segments)
		for _, segment := range track.Segments {
			for i := range segment.Points {
				p := &segment.Points[i]
				pointCount++
				if p.Time != nil {
					if first == nil {
						first = p.Time
					}
					last = p.Time
				}
				if prev != nil {
					distance += geo.Distance(prev.Lat, prev.Lon, p.Lat, p.Lon) / 1000
				}
				prev = p
			}
		}
	}

	if first != nil && last != nil {
		duration = last.Sub(*first)
	}

	return
}
