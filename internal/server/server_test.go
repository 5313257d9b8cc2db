package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planbiir/gpxtrim/internal/config"
	"github.com/planbiir/gpxtrim/internal/gpx"
	"github.com/planbiir/gpxtrim/internal/logger"
	"github.com/planbiir/gpxtrim/internal/metrics"
)

var t0 = time.Date(2025, 6, 1, 6, 0, 0, 0, time.UTC)

// stopDoc stands still for 620 s: with defaults one pause, 619 s removed.
func stopDoc(t *testing.T) []byte {
	t.Helper()

	pt := func(sec int) gpx.Point {
		ts := t0.Add(time.Duration(sec) * time.Second)
		return gpx.Point{Lat: 47.37, Lon: 8.54, Time: &ts}
	}
	doc := &gpx.GPX{Tracks: []gpx.Track{{
		Segments: []gpx.TrackSegment{{Points: []gpx.Point{pt(0), pt(10), pt(620)}}},
	}}}
	data, err := doc.Bytes()
	require.NoError(t, err)
	return data
}

func zipOf(t *testing.T, files map[string][]byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func upload(t *testing.T, target, filename string, data []byte, fields map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func newServer(mutate ...func(*config.Config)) *Server {
	cfg := config.New()
	cfg.Workers = 2
	for _, m := range mutate {
		m(cfg)
	}
	return New(cfg, logger.Nop(), metrics.New())
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Code
}

func TestTrimDocument(t *testing.T) {
	rec := serve(newServer(), upload(t, "/trim", "Lunch Run.gpx", stopDoc(t), nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/gpx+xml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="Lunch Run_trimmed.gpx"`)
	assert.Equal(t, "1", rec.Header().Get("X-Trimmed-Count"))
	assert.NotEmpty(t, rec.Header().Get("X-Run-Id"))

	doc, err := gpx.ParseBytes(rec.Body.Bytes())
	require.NoError(t, err)
	pts := doc.Tracks[0].Segments[0].Points
	require.Len(t, pts, 2)
	assert.Equal(t, time.Second, pts[1].Time.Sub(*pts[0].Time))
}

func TestTrimFormOverrides(t *testing.T) {
	fields := map[string]string{"min_pause_duration": "900", "min_speed": "0.2"}
	rec := serve(newServer(), upload(t, "/trim", "ride.gpx", stopDoc(t), fields))

	require.Equal(t, http.StatusOK, rec.Code)
	doc, err := gpx.ParseBytes(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Len(t, doc.Tracks[0].Segments[0].Points, 3, "a 620 s stop is below a 900 s threshold")
}

func TestTrimBadOverrides(t *testing.T) {
	s := newServer()
	for _, fields := range []map[string]string{
		{"min_speed": "fast"},
		{"min_speed": "-1"},
		{"min_pause_duration": "4.5"},
		{"min_pause_duration": "-10"},
	} {
		rec := serve(s, upload(t, "/trim", "ride.gpx", stopDoc(t), fields))
		assert.Equal(t, http.StatusBadRequest, rec.Code, fields)
	}
}

func TestTrimSummary(t *testing.T) {
	rec := serve(newServer(), upload(t, "/trim?summary=1", "ride.gpx", stopDoc(t), nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
	body := rec.Body.String()
	assert.Contains(t, body, "=== ride.gpx ===")
	assert.Contains(t, body, "Activity date  2025-06-01")
	assert.Contains(t, body, "10m 19s")
	assert.Contains(t, body, "Created ride_trimmed.gpx")
}

func TestTrimArchive(t *testing.T) {
	archive := zipOf(t, map[string][]byte{
		"a.gpx":     stopDoc(t),
		"b.gpx":     stopDoc(t),
		"notes.txt": []byte("hello"),
	})
	rec := serve(newServer(), upload(t, "/trim", "export.zip", archive, nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	assert.Equal(t, "2", rec.Header().Get("X-Trimmed-Count"))

	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	require.NoError(t, err)
	assert.Len(t, zr.File, 2)
}

func TestTrimEmptyArchive(t *testing.T) {
	archive := zipOf(t, map[string][]byte{"notes.txt": []byte("hello")})
	rec := serve(newServer(), upload(t, "/trim", "export.zip", archive, nil))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "no_tracks", errorCode(t, rec))
	assert.Contains(t, rec.Body.String(), msgNoTracks)
}

func TestTrimArchiveAllFailed(t *testing.T) {
	archive := zipOf(t, map[string][]byte{"broken.gpx": []byte("<gpx")})
	rec := serve(newServer(), upload(t, "/trim", "export.zip", archive, nil))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "all_failed", errorCode(t, rec))
}

func TestTrimBadInput(t *testing.T) {
	s := newServer()

	rec := serve(s, upload(t, "/trim", "broken.gpx", []byte("<gpx><trk>"), nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_input", errorCode(t, rec))

	rec = serve(s, upload(t, "/trim", "", nil, map[string]string{"min_speed": "1"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/trim", strings.NewReader("plain"))
	req.Header.Set("Content-Type", "text/plain")
	rec = serve(s, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrimTooLarge(t *testing.T) {
	s := newServer(func(c *config.Config) { c.MaxUploadMB = 1 })
	big := bytes.Repeat([]byte("x"), 2<<20)

	rec := serve(s, upload(t, "/trim", "huge.gpx", big, nil))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestTrimMethodNotAllowed(t *testing.T) {
	rec := serve(newServer(), httptest.NewRequest(http.MethodGet, "/trim", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newServer()

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	serve(s, upload(t, "/trim", "ride.gpx", stopDoc(t), nil))
	rec = serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `gpxtrim_entries_total{outcome="trimmed"} 1`)
}

func TestUploadName(t *testing.T) {
	assert.Equal(t, "ride.gpx", uploadName("ride.gpx"))
	assert.Equal(t, "ride.gpx", uploadName(`C:\Users\me\ride.gpx`))
	assert.Equal(t, "ride.gpx", uploadName("../../ride.gpx"))
	assert.Equal(t, "upload.gpx", uploadName(""))
}

func TestServeShutsDown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- newServer().Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/healthz"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}
