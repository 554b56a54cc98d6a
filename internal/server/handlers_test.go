package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/ui-locate-mcp/internal/cache"
	"github.com/ironsheep/ui-locate-mcp/internal/geometry"
	"github.com/ironsheep/ui-locate-mcp/internal/layout"
	"github.com/ironsheep/ui-locate-mcp/internal/locate"
	"github.com/ironsheep/ui-locate-mcp/internal/match"
	"github.com/ironsheep/ui-locate-mcp/internal/perception"
)

// fakeLocator answers from canned values and records what it was asked.
type fakeLocator struct {
	outcome   *locate.Outcome
	locateErr error
	artErr    error
	evictErr  error

	queries       []string
	artifactCalls int
	evicted       []string
}

func (f *fakeLocator) Locate(_ context.Context, img []byte, query string) (*locate.Outcome, error) {
	f.queries = append(f.queries, query)
	if query == "" {
		return nil, locate.ErrEmptyQuery
	}
	if f.outcome != nil {
		out := *f.outcome
		out.ImageHash = cache.Hash(img)
		return &out, f.locateErr
	}
	return nil, f.locateErr
}

func (f *fakeLocator) Artifacts(_ context.Context, img []byte) (*locate.Artifacts, error) {
	f.artifactCalls++
	if f.artErr != nil {
		return nil, f.artErr
	}
	return &locate.Artifacts{ImageHash: cache.Hash(img), Cached: f.artifactCalls > 1, Hierarchy: testHierarchy()}, nil
}

func (f *fakeLocator) Evict(_ context.Context, img []byte) (string, error) {
	hash := cache.Hash(img)
	f.evicted = append(f.evicted, hash)
	return hash, f.evictErr
}

func testHierarchy() *layout.Hierarchy {
	e1 := &layout.Element{
		ID: "e1", Box: geometry.Box{X1: 10, Y1: 20, X2: 40, Y2: 40},
		SectionID: "s1", ImageCrop: []byte("crop-e1"), Label: "button",
	}
	e2 := &layout.Element{
		ID: "e2", Box: geometry.Box{X1: 60, Y1: 20, X2: 90, Y2: 40},
		SectionID: "s1", ImageCrop: []byte("crop-e2"), Label: "text",
	}
	return &layout.Hierarchy{
		Width:  100,
		Height: 50,
		Sections: []*layout.Section{{
			ID:        "s1",
			Box:       geometry.Box{X1: 0, Y1: 0, X2: 100, Y2: 50},
			ImageCrop: []byte("crop-s1"),
			Children:  []*layout.Element{e1, e2},
		}},
	}
}

func foundOutcome() *locate.Outcome {
	e := testHierarchy().Sections[0].Children[0]
	e.Semantics = &layout.Semantics{Type: "button", Text: "Save"}
	return &locate.Outcome{
		Query: &perception.NormalizedQuery{Type: "button", Text: "Save"},
		Result: &match.Result{
			Found:              true,
			Match:              e,
			FilteredSectionIDs: []string{"s1"},
			CandidateIDs:       []string{"e1", "e2"},
			Rounds:             []int{1},
		},
	}
}

// createTestImageFile creates a test image file and returns its path
func createTestImageFile(t *testing.T, width, height int, c color.Color) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}

	path := filepath.Join(t.TempDir(), "screen.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

// callTool runs tools/call and returns the response.
func callTool(t *testing.T, s *Server, name string, args map[string]any) *MCPResponse {
	t.Helper()
	params, err := json.Marshal(map[string]any{"name": name, "arguments": args})
	if err != nil {
		t.Fatalf("failed to marshal params: %v", err)
	}
	resp := s.handleRequest(context.Background(), &MCPRequest{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: params})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	return resp
}

// content returns the content blocks of a successful response.
func content(t *testing.T, resp *MCPResponse) []map[string]any {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %+v", resp.Error)
	}
	result, ok := resp.Result.(map[string]any)
	if !ok {
		t.Fatal("Result should be a map")
	}
	blocks, ok := result["content"].([]map[string]any)
	if !ok || len(blocks) == 0 {
		t.Fatalf("content missing: %+v", result)
	}
	return blocks
}

// decodeText unmarshals the JSON text block of a successful response.
func decodeText(t *testing.T, resp *MCPResponse, dst any) {
	t.Helper()
	blocks := content(t, resp)
	if blocks[0]["type"] != "text" {
		t.Fatalf("first block type: got %v", blocks[0]["type"])
	}
	if err := json.Unmarshal([]byte(blocks[0]["text"].(string)), dst); err != nil {
		t.Fatalf("failed to decode tool result: %v", err)
	}
}

func TestHandleToolsCall_Locate(t *testing.T) {
	loc := &fakeLocator{outcome: foundOutcome()}
	s := New(loc, Options{}, nil)
	path := createTestImageFile(t, 100, 50, color.White)

	resp := callTool(t, s, ToolLocate, map[string]any{"path": path, "query": "the Save button"})

	var got locateResult
	decodeText(t, resp, &got)

	if !got.Found || got.Element == nil {
		t.Fatalf("expected a found element, got %+v", got)
	}
	if got.Element.ID != "e1" {
		t.Errorf("element id: got %s, want e1", got.Element.ID)
	}
	if got.Element.ImageCrop != nil {
		t.Error("element crop should be stripped")
	}
	if got.Element.Semantics == nil || got.Element.Semantics.Text != "Save" {
		t.Errorf("semantics: got %+v", got.Element.Semantics)
	}
	if got.CandidateCount != 2 || got.TimedOut {
		t.Errorf("candidate_count=%d timed_out=%v", got.CandidateCount, got.TimedOut)
	}
	if got.ImageHash == "" {
		t.Error("image_hash should be set")
	}
	if len(loc.queries) != 1 || loc.queries[0] != "the Save button" {
		t.Errorf("queries: got %v", loc.queries)
	}
	// The fake outcome's element must not lose its crop.
	if loc.outcome.Result.Match.ImageCrop == nil {
		t.Error("stripping the crop modified the service result")
	}
}

func TestHandleToolsCall_LocateTimeout(t *testing.T) {
	out := &locate.Outcome{Result: &match.Result{Detail: "timed out during matching"}}
	loc := &fakeLocator{outcome: out, locateErr: fmt.Errorf("%w: matching: %w", match.ErrStageTimeout, context.DeadlineExceeded)}
	s := New(loc, Options{}, nil)
	path := createTestImageFile(t, 100, 50, color.White)

	var got locateResult
	decodeText(t, callTool(t, s, ToolLocate, map[string]any{"path": path, "query": "save"}), &got)

	if got.Found || !got.TimedOut {
		t.Errorf("found=%v timed_out=%v, want false and true", got.Found, got.TimedOut)
	}
	if got.Detail != "timed out during matching" {
		t.Errorf("detail: got %q", got.Detail)
	}
}

func TestHandleToolsCall_Errors(t *testing.T) {
	path := createTestImageFile(t, 100, 50, color.White)

	tests := []struct {
		name     string
		loc      *fakeLocator
		tool     string
		args     map[string]any
		wantCode int
	}{
		{"unknown tool", &fakeLocator{}, "ui_teleport", map[string]any{"path": path}, codeInvalidParams},
		{"missing path", &fakeLocator{}, ToolHierarchy, map[string]any{}, codeInvalidParams},
		{"wrong argument type", &fakeLocator{}, ToolHierarchy, map[string]any{"path": 7}, codeInvalidParams},
		{"empty query", &fakeLocator{}, ToolLocate, map[string]any{"path": path, "query": ""}, codeInvalidParams},
		{"missing file", &fakeLocator{}, ToolImageInfo, map[string]any{"path": filepath.Join(t.TempDir(), "nope.png")}, codeToolFailed},
		{"detector failure", &fakeLocator{locateErr: locate.ErrDetect}, ToolLocate, map[string]any{"path": path, "query": "save"}, codeToolFailed},
		{"hierarchy failure", &fakeLocator{artErr: errors.New("boom")}, ToolHierarchy, map[string]any{"path": path}, codeToolFailed},
		{"evict failure", &fakeLocator{evictErr: errors.New("redis down")}, ToolCacheEvict, map[string]any{"path": path}, codeToolFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := callTool(t, New(tt.loc, Options{}, nil), tt.tool, tt.args)
			if resp.Error == nil {
				t.Fatalf("expected error, got %+v", resp.Result)
			}
			if resp.Error.Code != tt.wantCode {
				t.Errorf("code: got %d, want %d (%v)", resp.Error.Code, tt.wantCode, resp.Error.Data)
			}
		})
	}
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := New(&fakeLocator{}, Options{}, nil)
	resp := s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: json.RawMessage(`"not an object"`),
	})
	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Errorf("expected invalid params, got %+v", resp)
	}
}

func TestHandleToolsCall_FileTooLarge(t *testing.T) {
	path := createTestImageFile(t, 100, 50, color.White)
	s := New(&fakeLocator{}, Options{MaxFileSize: 16}, nil)

	resp := callTool(t, s, ToolImageInfo, map[string]any{"path": path})
	if resp.Error == nil || resp.Error.Code != codeToolFailed {
		t.Fatalf("expected tool failure, got %+v", resp)
	}
}

func TestHandleToolsCall_Hierarchy(t *testing.T) {
	loc := &fakeLocator{}
	s := New(loc, Options{}, nil)
	path := createTestImageFile(t, 100, 50, color.White)

	resp := callTool(t, s, ToolHierarchy, map[string]any{"path": path})
	text := content(t, resp)[0]["text"].(string)
	if strings.Contains(text, "image_crop") {
		t.Error("hierarchy output should not carry crops")
	}

	var got hierarchyResult
	decodeText(t, resp, &got)
	if got.Elements != 2 || len(got.Hierarchy.Sections) != 1 {
		t.Errorf("elements=%d sections=%d", got.Elements, len(got.Hierarchy.Sections))
	}
	if got.Hierarchy.Width != 100 || got.Hierarchy.Height != 50 {
		t.Errorf("size: got %dx%d", got.Hierarchy.Width, got.Hierarchy.Height)
	}
}

func TestWithoutCrops_LeavesSourceIntact(t *testing.T) {
	h := testHierarchy()
	stripped := withoutCrops(h)

	if stripped.Sections[0].ImageCrop != nil || stripped.Sections[0].Children[0].ImageCrop != nil {
		t.Error("crops should be removed from the copy")
	}
	if h.Sections[0].ImageCrop == nil || h.Sections[0].Children[0].ImageCrop == nil {
		t.Error("source hierarchy lost its crops")
	}
}

func TestHandleToolsCall_Annotate(t *testing.T) {
	path := createTestImageFile(t, 100, 50, color.White)

	tests := []struct {
		name          string
		args          map[string]any
		wantHighlight string
		wantQueries   int
	}{
		{"without query", map[string]any{"path": path}, "", 0},
		{"with query", map[string]any{"path": path, "query": "save"}, "e1", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc := &fakeLocator{outcome: foundOutcome()}
			resp := callTool(t, New(loc, Options{}, nil), ToolAnnotate, tt.args)

			blocks := content(t, resp)
			if len(blocks) != 2 {
				t.Fatalf("expected text and image blocks, got %d", len(blocks))
			}
			if blocks[1]["type"] != "image" || blocks[1]["mimeType"] != "image/png" {
				t.Errorf("image block: got type=%v mime=%v", blocks[1]["type"], blocks[1]["mimeType"])
			}
			data, err := base64.StdEncoding.DecodeString(blocks[1]["data"].(string))
			if err != nil {
				t.Fatalf("failed to decode base64: %v", err)
			}
			img, err := png.Decode(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("failed to decode PNG: %v", err)
			}
			if b := img.Bounds(); b.Dx() != 100 || b.Dy() != 50 {
				t.Errorf("annotated size: got %dx%d", b.Dx(), b.Dy())
			}

			var got annotateResult
			decodeText(t, resp, &got)
			if got.HighlightID != tt.wantHighlight {
				t.Errorf("highlight_id: got %q, want %q", got.HighlightID, tt.wantHighlight)
			}
			if got.Sections != 1 {
				t.Errorf("section_count: got %d, want 1", got.Sections)
			}
			if len(loc.queries) != tt.wantQueries {
				t.Errorf("locate calls: got %d, want %d", len(loc.queries), tt.wantQueries)
			}
		})
	}
}

func TestHandleToolsCall_AnnotateHighlightColor(t *testing.T) {
	path := createTestImageFile(t, 100, 50, color.White)
	loc := &fakeLocator{outcome: foundOutcome()}

	resp := callTool(t, New(loc, Options{}, nil), ToolAnnotate,
		map[string]any{"path": path, "query": "save", "highlight_color": "#0000FF"})

	data, err := base64.StdEncoding.DecodeString(content(t, resp)[1]["data"].(string))
	if err != nil {
		t.Fatalf("failed to decode base64: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to decode PNG: %v", err)
	}

	// Top-left corner of e1 carries the highlight stroke.
	r, g, b, _ := img.At(10, 20).RGBA()
	if r>>8 != 0 || g>>8 != 0 || b>>8 != 255 {
		t.Errorf("highlight pixel: got (%d,%d,%d), want (0,0,255)", r>>8, g>>8, b>>8)
	}
}

func TestHandleToolsCall_ImageInfo(t *testing.T) {
	path := createTestImageFile(t, 120, 80, color.RGBA{255, 0, 0, 255})
	s := New(&fakeLocator{}, Options{}, nil)

	var got imageInfoResult
	decodeText(t, callTool(t, s, ToolImageInfo, map[string]any{"path": path}), &got)

	if got.Width != 120 || got.Height != 80 {
		t.Errorf("size: got %dx%d, want 120x80", got.Width, got.Height)
	}
	if got.Format != "png" {
		t.Errorf("format: got %q, want png", got.Format)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read image: %v", err)
	}
	if got.ImageHash != cache.Hash(data) || got.SizeBytes != len(data) {
		t.Errorf("hash=%s size=%d", got.ImageHash, got.SizeBytes)
	}
}

func TestHandleToolsCall_CacheEvict(t *testing.T) {
	path := createTestImageFile(t, 100, 50, color.White)
	loc := &fakeLocator{}
	s := New(loc, Options{}, nil)

	var got cacheEvictResult
	decodeText(t, callTool(t, s, ToolCacheEvict, map[string]any{"path": path}), &got)

	if !got.Evicted {
		t.Error("evicted should be true")
	}
	if len(loc.evicted) != 1 || loc.evicted[0] != got.ImageHash {
		t.Errorf("evicted: got %v, want [%s]", loc.evicted, got.ImageHash)
	}
}
