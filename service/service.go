// Package service exposes stored ink recordings over HTTP, websocket and
// MCP: CRUD on recordings, timeline JSON, frame rendering, PDF export and
// live playback driven by the transport clock.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/hazyhaar/inkplay/catalog"
	"github.com/hazyhaar/inkplay/ink"
	"github.com/hazyhaar/inkplay/replay"
	"github.com/hazyhaar/inkplay/timeline"
)

const (
	defaultFrameWidth  = 800
	defaultFrameHeight = 600
	maxFrameDim        = 4096
)

// Service wires the catalog store to the playback pipeline.
type Service struct {
	store      *catalog.Store
	norm       *ink.Normalizer
	logger     *slog.Logger
	tlOpts     timeline.Options
	maxPayload int64
	upgrader   websocket.Upgrader

	// Normalizing and rebuilding a timeline on every frame request would
	// dominate render cost, so decoded sessions are cached per recording
	// and invalidated on writes.
	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	capture     *ink.Capture
	tl          *timeline.Timeline
	renderer    *replay.Renderer
	audioOffset float64
}

// New creates a Service over an initialized catalog store.
func New(store *catalog.Store, cfg *Config, logger *slog.Logger) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	maxBytes := cfg.MaxPayloadMB * 1024 * 1024
	return &Service{
		store: store,
		norm: ink.New(ink.Config{
			MaxPayloadBytes: maxBytes,
			Logger:          logger,
		}),
		logger: logger,
		tlOpts: timeline.Options{
			StepMs: float64(cfg.StepMs),
			GapMs:  float64(cfg.GapMs),
		},
		maxPayload: int64(maxBytes),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Playback is same-origin in the classroom deployment; the
			// reverse proxy enforces origin policy.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		sessions: make(map[string]*session),
	}
}

// RegisterHTTP registers playback endpoints on the router.
func (s *Service) RegisterHTTP(r chi.Router) {
	r.Post("/recordings", s.handleCreate)
	r.Get("/recordings", s.handleList)
	r.Get("/recordings/{recording_id}", s.handleGet)
	r.Delete("/recordings/{recording_id}", s.handleDelete)

	r.Get("/recordings/{recording_id}/timeline", s.handleTimeline)
	r.Get("/recordings/{recording_id}/frame", s.handleFrame)
	r.Get("/recordings/{recording_id}/export.pdf", s.handleExportPDF)
	r.Get("/recordings/{recording_id}/live", s.handleLive)
}

// loadSession returns the decoded playback session for a recording,
// building and caching it on first access.
func (s *Service) loadSession(ctx context.Context, id string) (*session, error) {
	s.mu.Lock()
	if sess, ok := s.sessions[id]; ok {
		s.mu.Unlock()
		return sess, nil
	}
	s.mu.Unlock()

	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	capture := s.norm.Normalize(rec.Payload)
	tl := timeline.Build(capture.Strokes, s.tlOpts)
	sess := &session{
		capture:     capture,
		tl:          tl,
		renderer:    replay.New(capture, tl),
		audioOffset: rec.AudioOffsetMs,
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()
	return sess, nil
}

func (s *Service) evict(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// --- recordings CRUD ---

func (s *Service) handleCreate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, s.maxPayload+1))
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("read body: %w", err))
		return
	}
	if int64(len(body)) > s.maxPayload {
		s.writeError(w, r, http.StatusRequestEntityTooLarge,
			fmt.Errorf("payload exceeds %d bytes", s.maxPayload))
		return
	}

	q := r.URL.Query()
	audioOffset, _ := strconv.ParseFloat(q.Get("audio_offset_ms"), 64)
	rec := &catalog.Recording{
		PageID:        q.Get("page_id"),
		Author:        q.Get("author"),
		Payload:       body,
		AudioPath:     q.Get("audio_path"),
		AudioOffsetMs: audioOffset,
	}
	if err := s.store.Put(r.Context(), rec); err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	s.evict(rec.RecordingID)

	// Normalization never fails; a garbage payload just yields an empty
	// capture, which the response makes visible through point_count.
	capture := s.norm.Normalize(body)
	tl := timeline.Build(capture.Strokes, s.tlOpts)

	s.logger.Info("recording stored",
		"recording_id", rec.RecordingID,
		"page_id", rec.PageID,
		"strokes", len(capture.Strokes),
		"duration_ms", tl.DurationMs())

	s.writeJSON(w, http.StatusCreated, map[string]any{
		"recording_id": rec.RecordingID,
		"duration_ms":  tl.DurationMs(),
		"timestamped":  tl.Timestamped(),
		"point_count":  capture.PointCount(),
	})
}

func (s *Service) handleList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	recs, err := s.store.List(r.Context(), r.URL.Query().Get("page_id"), limit)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	if recs == nil {
		recs = []*catalog.Recording{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"recordings": recs})
}

func (s *Service) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "recording_id")
	rec, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	sess, err := s.loadSession(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"recording_id":    rec.RecordingID,
		"page_id":         rec.PageID,
		"author":          rec.Author,
		"audio_path":      rec.AudioPath,
		"audio_offset_ms": rec.AudioOffsetMs,
		"created_at":      rec.CreatedAt,
		"duration_ms":     sess.tl.DurationMs(),
		"timestamped":     sess.tl.Timestamped(),
		"point_count":     sess.capture.PointCount(),
	})
}

func (s *Service) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "recording_id")
	if err := s.store.Delete(r.Context(), id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.evict(id)
	w.WriteHeader(http.StatusNoContent)
}

// --- playback ---

func (s *Service) handleTimeline(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "recording_id")
	sess, err := s.loadSession(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	events := sess.tl.Events()
	if events == nil {
		events = []timeline.Event{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"recording_id": id,
		"duration_ms":  sess.tl.DurationMs(),
		"timestamped":  sess.tl.Timestamped(),
		"events":       events,
	})
}

func (s *Service) handleFrame(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "recording_id")
	sess, err := s.loadSession(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	q := r.URL.Query()
	cursor, _ := strconv.ParseFloat(q.Get("t"), 64)
	if cursor < 0 {
		cursor = 0
	}
	if d := sess.tl.DurationMs(); cursor > d {
		cursor = d
	}
	width := frameDim(q.Get("w"), defaultFrameWidth)
	height := frameDim(q.Get("h"), defaultFrameHeight)

	img := sess.renderer.RenderAt(cursor, width, height)
	data, err := replay.EncodePNG(img)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(data)
}

func frameDim(raw string, def int) int {
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	if v > maxFrameDim {
		return maxFrameDim
	}
	return v
}

func (s *Service) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "recording_id")
	sess, err := s.loadSession(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	q := r.URL.Query()
	opts := replay.PDFOptions{
		BackingPDF: q.Get("backing"),
	}
	if v, err := strconv.ParseFloat(q.Get("page_w"), 64); err == nil && v > 0 {
		opts.PageWidth = v
	}
	if v, err := strconv.ParseFloat(q.Get("page_h"), 64); err == nil && v > 0 {
		opts.PageHeight = v
	}
	if v, err := strconv.Atoi(q.Get("page")); err == nil && v > 0 {
		opts.PageNr = v
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", id+".pdf"))
	if err := replay.ExportPDF(w, sess.capture, sess.tl, opts); err != nil {
		// Headers may already be out; log instead of rewriting the status.
		s.logger.Error("pdf export failed", "recording_id", id, "error", err)
	}
}

// --- helpers ---

func (s *Service) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("write response", "error", err)
	}
}

func (s *Service) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, catalog.ErrNotFound) {
		s.writeError(w, r, http.StatusNotFound, err)
		return
	}
	s.writeError(w, r, http.StatusInternalServerError, err)
}

func (s *Service) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= 500 {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	s.writeJSON(w, status, map[string]any{"error": err.Error()})
}
