package service

import (
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/hazyhaar/inkplay/player"
)

// liveCommand is what the client sends over the live socket.
type liveCommand struct {
	Cmd string  `json:"cmd"` // play | pause | stop | seek | sync
	Ms  float64 `json:"ms,omitempty"`
}

// liveFrame is pushed to the client on every clock tick and state change.
type liveFrame struct {
	CursorMs float64 `json:"cursor_ms"`
	Mode     string  `json:"mode"`
}

// handleLive upgrades to a websocket and drives a playback clock for one
// recording. Frames are pushed server-side; the client only sends commands.
func (s *Service) handleLive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "recording_id")
	sess, err := s.loadSession(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "recording_id", id, "error", err)
		return
	}
	defer conn.Close()

	// gorilla/websocket allows one concurrent writer; ticks come from the
	// player goroutine while errors come from the read loop.
	var writeMu sync.Mutex
	push := func(cursor float64, mode player.Mode) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(liveFrame{CursorMs: cursor, Mode: mode.String()}); err != nil {
			s.logger.Debug("live push failed", "recording_id", id, "error", err)
		}
	}

	var p *player.Player
	p = player.New(sess.tl.DurationMs(), func(cursor float64) {
		push(cursor, p.Mode())
	}, player.WithAudioOffset(sess.audioOffset))
	defer p.Stop()

	s.logger.Info("live session opened", "recording_id", id,
		"duration_ms", sess.tl.DurationMs())

	// Initial state so the client can draw frame zero immediately.
	push(p.Cursor(), p.Mode())

	for {
		var cmd liveCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("live session error", "recording_id", id, "error", err)
			}
			return
		}

		switch cmd.Cmd {
		case "play":
			p.Play(r.Context())
		case "pause":
			p.Pause()
			push(p.Cursor(), p.Mode())
		case "stop":
			p.Stop()
			push(p.Cursor(), p.Mode())
		case "seek":
			p.Seek(cmd.Ms)
		case "sync":
			p.SyncAudio(cmd.Ms)
		default:
			s.logger.Debug("unknown live command", "recording_id", id, "cmd", cmd.Cmd)
		}
	}
}
