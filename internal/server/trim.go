package server

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/planbiir/gpxtrim/internal/batch"
	"github.com/planbiir/gpxtrim/internal/logger"
	"github.com/planbiir/gpxtrim/internal/report"
	"github.com/planbiir/gpxtrim/internal/trim"
)

// multipart parts above this size spill to temporary files.
const formMemory = 8 << 20

const (
	msgNoTracks  = "No .gpx files found in the archive."
	msgAllFailed = "No track in the archive could be trimmed."
)

// handleTrim handles POST /trim. The upload is read from the multipart
// field "file"; min_speed and min_pause_duration override the defaults.
func (s *Server) handleTrim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes())

	if err := r.ParseMultipartForm(formMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large",
				fmt.Errorf("%w: limit is %d MB", ErrPayloadTooLarge, s.cfg.MaxUploadMB))
			return
		}
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	tc, err := s.trimConfig(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: missing file", ErrBadRequest))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}

	name := uploadName(hdr.Filename)
	driver := batch.New(batch.Options{
		Trim:    tc,
		Suffix:  s.cfg.Suffix,
		Workers: s.cfg.Workers,
		Logger:  s.log,
		Metrics: s.metrics,
	})

	res, err := driver.Process(ctx, name, data)
	if err != nil {
		s.log.Warn(ctx, "trim request failed", logger.String("file", name), logger.Error(err))
		writeError(w, http.StatusBadRequest, "invalid_input", err)
		return
	}

	s.log.Info(ctx, "trim request",
		logger.String("run_id", res.RunID), logger.String("file", name),
		logger.Int("trimmed", res.Processed()), logger.Int("failed", len(res.Failed())),
		logger.Int("skipped", res.Skipped))

	if res.Empty() {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Code: "no_tracks", Message: msgNoTracks})
		return
	}
	if res.Data == nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Code: "all_failed", Message: msgAllFailed})
		return
	}

	w.Header().Set("X-Run-Id", res.RunID)
	w.Header().Set("X-Trimmed-Count", strconv.Itoa(res.Processed()))

	if r.URL.Query().Get("summary") == "1" {
		s.writeSummary(w, res)
		return
	}

	contentType := "application/gpx+xml"
	if res.Archive {
		contentType = "application/zip"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": res.Output}))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}

func (s *Server) writeSummary(w http.ResponseWriter, res *batch.Result) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	for _, e := range res.Entries {
		if e.Err != nil {
			fmt.Fprintf(w, "\n=== %s ===\n\nFailed: %v\n", e.Name, e.Err)
			continue
		}
		_ = report.Text(w, e.Name, e.Stats)
	}
	if res.Archive {
		fmt.Fprintf(w, "\nCreated %s with %d trimmed track(s).\n", res.Output, res.Processed())
	} else {
		fmt.Fprintf(w, "\nCreated %s\n", res.Output)
	}
}

// trimConfig applies the optional form overrides to the configured defaults.
func (s *Server) trimConfig(r *http.Request) (trim.Config, error) {
	tc := s.cfg.Trim()

	if v := strings.TrimSpace(r.FormValue("min_speed")); v != "" {
		speed, err := strconv.ParseFloat(v, 64)
		if err != nil || speed < 0 {
			return tc, fmt.Errorf("%w: min_speed must be a non-negative number", ErrBadRequest)
		}
		tc.MinSpeed = speed
	}

	if v := strings.TrimSpace(r.FormValue("min_pause_duration")); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs < 0 {
			return tc, fmt.Errorf("%w: min_pause_duration must be a non-negative integer", ErrBadRequest)
		}
		tc.MinPauseDuration = time.Duration(secs) * time.Second
	}

	return tc, nil
}

// uploadName strips any client-side directories from a multipart file name.
func uploadName(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == "/" {
		return "upload.gpx"
	}
	return name
}
