package service

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/inkplay/kit"
	"github.com/hazyhaar/inkplay/replay"
)

// RegisterMCP registers playback tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerInfoTool(srv)
	s.registerTimelineTool(srv)
	s.registerFrameTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	sch := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sch["required"] = required
	}
	return sch
}

// --- info ---

type infoReq struct {
	RecordingID string `json:"recording_id"`
}

func (s *Service) registerInfoTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "inkplay_info",
		Description: "Get metadata for a stored ink recording: duration, timestamp mode, point count, audio binding.",
		InputSchema: inputSchema(map[string]any{
			"recording_id": map[string]any{"type": "string", "description": "Recording ID"},
		}, []string{"recording_id"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*infoReq)
		rec, err := s.store.Get(ctx, r.RecordingID)
		if err != nil {
			return nil, err
		}
		sess, err := s.loadSession(ctx, r.RecordingID)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"recording_id":    rec.RecordingID,
			"page_id":         rec.PageID,
			"author":          rec.Author,
			"audio_path":      rec.AudioPath,
			"audio_offset_ms": rec.AudioOffsetMs,
			"duration_ms":     sess.tl.DurationMs(),
			"timestamped":     sess.tl.Timestamped(),
			"point_count":     sess.capture.PointCount(),
		}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r infoReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- timeline ---

type timelineReq struct {
	RecordingID string `json:"recording_id"`
}

func (s *Service) registerTimelineTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "inkplay_timeline",
		Description: "Get the merged event timeline of a recording: segments ordered by reveal time.",
		InputSchema: inputSchema(map[string]any{
			"recording_id": map[string]any{"type": "string", "description": "Recording ID"},
		}, []string{"recording_id"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*timelineReq)
		sess, err := s.loadSession(ctx, r.RecordingID)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"recording_id": r.RecordingID,
			"duration_ms":  sess.tl.DurationMs(),
			"timestamped":  sess.tl.Timestamped(),
			"events":       sess.tl.Events(),
		}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r timelineReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- frame ---

type frameReq struct {
	RecordingID string  `json:"recording_id"`
	CursorMs    float64 `json:"cursor_ms"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
}

func (s *Service) registerFrameTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "inkplay_frame",
		Description: "Render the recording at a playback cursor and return the frame as a base64 PNG.",
		InputSchema: inputSchema(map[string]any{
			"recording_id": map[string]any{"type": "string", "description": "Recording ID"},
			"cursor_ms":    map[string]any{"type": "number", "description": "Playback cursor in milliseconds"},
			"width":        map[string]any{"type": "integer", "description": "Frame width in pixels (default 800)"},
			"height":       map[string]any{"type": "integer", "description": "Frame height in pixels (default 600)"},
		}, []string{"recording_id"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*frameReq)
		sess, err := s.loadSession(ctx, r.RecordingID)
		if err != nil {
			return nil, err
		}

		cursor := r.CursorMs
		if cursor < 0 {
			cursor = 0
		}
		if d := sess.tl.DurationMs(); cursor > d {
			cursor = d
		}
		width, height := r.Width, r.Height
		if width <= 0 {
			width = defaultFrameWidth
		}
		if height <= 0 {
			height = defaultFrameHeight
		}
		if width > maxFrameDim {
			width = maxFrameDim
		}
		if height > maxFrameDim {
			height = maxFrameDim
		}

		data, err := replay.EncodePNG(sess.renderer.RenderAt(cursor, width, height))
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"recording_id": r.RecordingID,
			"cursor_ms":    cursor,
			"width":        width,
			"height":       height,
			"png_base64":   base64.StdEncoding.EncodeToString(data),
		}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r frameReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
