package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ironsheep/ui-locate-mcp/internal/cache"
	"github.com/ironsheep/ui-locate-mcp/internal/imaging"
	"github.com/ironsheep/ui-locate-mcp/internal/layout"
	"github.com/ironsheep/ui-locate-mcp/internal/locate"
	"github.com/ironsheep/ui-locate-mcp/internal/match"
	"github.com/ironsheep/ui-locate-mcp/internal/perception"
)

// errInvalidArgs marks arguments rejected before any work is done.
var errInvalidArgs = errors.New("invalid arguments")

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "ui_locate").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// imageResult is implemented by tool results that carry a rendered image.
// The image goes out as its own MCP content block.
type imageResult interface {
	imageContent() (data, mimeType string)
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Argument errors return code -32602, execution errors -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.logger.Warn("tool failed", zap.String("tool", params.Name), zap.Error(err))
		if errors.Is(err, errInvalidArgs) || errors.Is(err, locate.ErrEmptyQuery) {
			return errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
		}
		return errorResponse(req.ID, codeToolFailed, "Tool execution failed", err.Error())
	}

	text, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return errorResponse(req.ID, codeToolFailed, "Tool execution failed", err.Error())
	}
	content := []map[string]any{{"type": "text", "text": string(text)}}
	if ir, ok := result.(imageResult); ok {
		data, mimeType := ir.imageContent()
		content = append(content, map[string]any{"type": "image", "data": data, "mimeType": mimeType})
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  map[string]any{"content": content},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (any, error) {
	switch name {
	case ToolLocate:
		return s.handleLocate(ctx, args)
	case ToolHierarchy:
		return s.handleHierarchy(ctx, args)
	case ToolAnnotate:
		return s.handleAnnotate(ctx, args)
	case ToolImageInfo:
		return s.handleImageInfo(args)
	case ToolCacheEvict:
		return s.handleCacheEvict(ctx, args)
	default:
		return nil, fmt.Errorf("%w: unknown tool: %s", errInvalidArgs, name)
	}
}

type pathArgs struct {
	Path string `json:"path"`
}

// decodeArgs unmarshals args into dst and reads the screenshot it names.
func (s *Server) decodeArgs(args json.RawMessage, dst any, path func() string) ([]byte, error) {
	if len(args) > 0 {
		if err := json.Unmarshal(args, dst); err != nil {
			return nil, fmt.Errorf("%w: %w", errInvalidArgs, err)
		}
	}
	p := path()
	if p == "" {
		return nil, fmt.Errorf("%w: path is required", errInvalidArgs)
	}
	return imaging.ReadFile(p, s.opts.MaxFileSize)
}

// === Locate ===

type locateArgs struct {
	Path  string `json:"path"`
	Query string `json:"query"`
}

type locateResult struct {
	ImageHash string          `json:"image_hash"`
	Cached    bool            `json:"cached"`
	Found     bool            `json:"found"`
	Element   *layout.Element `json:"element,omitempty"`
	Detail    string          `json:"detail,omitempty"`
	TimedOut  bool            `json:"timed_out,omitempty"`

	Query              *perception.NormalizedQuery `json:"query,omitempty"`
	Relaxed            bool                        `json:"relaxed"`
	FilteredSectionIDs []string                    `json:"filtered_section_ids"`
	CandidateCount     int                         `json:"candidate_count"`
	Rounds             []int                       `json:"rounds"`
}

func (s *Server) handleLocate(ctx context.Context, args json.RawMessage) (any, error) {
	var a locateArgs
	image, err := s.decodeArgs(args, &a, func() string { return a.Path })
	if err != nil {
		return nil, err
	}

	out, timedOut, err := s.locate(ctx, image, a.Query)
	if err != nil {
		return nil, err
	}
	r := newLocateResult(out)
	r.TimedOut = timedOut
	return r, nil
}

// locate runs the service and treats a pipeline timeout with a partial
// outcome as a no-match result rather than a failure.
func (s *Server) locate(ctx context.Context, image []byte, query string) (out *locate.Outcome, timedOut bool, err error) {
	out, err = s.locator.Locate(ctx, image, query)
	if err != nil {
		if errors.Is(err, match.ErrStageTimeout) && out != nil && out.Result != nil {
			s.logger.Warn("locate timed out", zap.String("image_hash", out.ImageHash), zap.Error(err))
			return out, true, nil
		}
		return nil, false, err
	}
	return out, false, nil
}

func newLocateResult(out *locate.Outcome) *locateResult {
	res := out.Result
	r := &locateResult{
		ImageHash:          out.ImageHash,
		Cached:             out.Cached,
		Found:              res.Found,
		Detail:             res.Detail,
		Query:              out.Query,
		Relaxed:            res.Relaxed,
		FilteredSectionIDs: res.FilteredSectionIDs,
		CandidateCount:     len(res.CandidateIDs),
		Rounds:             res.Rounds,
	}
	if res.Match != nil {
		e := *res.Match
		e.ImageCrop = nil
		r.Element = &e
	}
	return r
}

// === Hierarchy ===

type hierarchyResult struct {
	ImageHash string            `json:"image_hash"`
	Cached    bool              `json:"cached"`
	Elements  int               `json:"element_count"`
	Hierarchy *layout.Hierarchy `json:"hierarchy"`
}

func (s *Server) handleHierarchy(ctx context.Context, args json.RawMessage) (any, error) {
	var a pathArgs
	image, err := s.decodeArgs(args, &a, func() string { return a.Path })
	if err != nil {
		return nil, err
	}

	art, err := s.locator.Artifacts(ctx, image)
	if err != nil {
		return nil, err
	}

	h := withoutCrops(art.Hierarchy)
	return &hierarchyResult{
		ImageHash: art.ImageHash,
		Cached:    art.Cached,
		Elements:  len(h.Elements()),
		Hierarchy: h,
	}, nil
}

// withoutCrops returns a copy of h with the encoded crops removed.
func withoutCrops(h *layout.Hierarchy) *layout.Hierarchy {
	c := h.Clone()
	for _, sec := range c.Sections {
		sec.ImageCrop = nil
		for _, e := range sec.Children {
			e.ImageCrop = nil
		}
	}
	return c
}

// === Annotate ===

type annotateArgs struct {
	Path           string `json:"path"`
	Query          string `json:"query"`
	HighlightColor string `json:"highlight_color"`
}

type annotateResult struct {
	ImageHash   string `json:"image_hash"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Sections    int    `json:"section_count"`
	Found       *bool  `json:"found,omitempty"`
	HighlightID string `json:"highlight_id,omitempty"`
	Detail      string `json:"detail,omitempty"`

	image []byte
}

func (r *annotateResult) imageContent() (string, string) {
	return base64.StdEncoding.EncodeToString(r.image), "image/png"
}

func (s *Server) handleAnnotate(ctx context.Context, args json.RawMessage) (any, error) {
	var a annotateArgs
	data, err := s.decodeArgs(args, &a, func() string { return a.Path })
	if err != nil {
		return nil, err
	}
	img, err := imaging.Decode(data)
	if err != nil {
		return nil, err
	}

	res := &annotateResult{}
	opts := imaging.AnnotateOptions{HighlightColor: a.HighlightColor}
	if a.Query != "" {
		out, _, err := s.locate(ctx, data, a.Query)
		if err != nil {
			return nil, err
		}
		found := out.Result.Found
		res.Found = &found
		res.Detail = out.Result.Detail
		if out.Result.Match != nil {
			opts.HighlightID = out.Result.Match.ID
			res.HighlightID = opts.HighlightID
		}
	}

	// After a locate this is a cache hit.
	art, err := s.locator.Artifacts(ctx, data)
	if err != nil {
		return nil, err
	}

	rendered, err := imaging.Annotate(img, art.Hierarchy, opts)
	if err != nil {
		return nil, err
	}

	res.ImageHash = art.ImageHash
	res.Width = art.Hierarchy.Width
	res.Height = art.Hierarchy.Height
	res.Sections = len(art.Hierarchy.Sections)
	res.image = rendered
	return res, nil
}

// === Image info and cache ===

type imageInfoResult struct {
	ImageHash string `json:"image_hash"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Format    string `json:"format"`
	SizeBytes int    `json:"size_bytes"`
}

func (s *Server) handleImageInfo(args json.RawMessage) (any, error) {
	var a pathArgs
	data, err := s.decodeArgs(args, &a, func() string { return a.Path })
	if err != nil {
		return nil, err
	}
	info, err := imaging.DecodeInfo(data)
	if err != nil {
		return nil, err
	}
	return &imageInfoResult{
		ImageHash: cache.Hash(data),
		Width:     info.Width,
		Height:    info.Height,
		Format:    info.Format,
		SizeBytes: len(data),
	}, nil
}

type cacheEvictResult struct {
	ImageHash string `json:"image_hash"`
	Evicted   bool   `json:"evicted"`
}

func (s *Server) handleCacheEvict(ctx context.Context, args json.RawMessage) (any, error) {
	var a pathArgs
	data, err := s.decodeArgs(args, &a, func() string { return a.Path })
	if err != nil {
		return nil, err
	}
	hash, err := s.locator.Evict(ctx, data)
	if err != nil {
		return nil, err
	}
	return &cacheEvictResult{ImageHash: hash, Evicted: true}, nil
}
