package ocr

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/draw"
	"image/png"
	"testing"

	"github.com/ironsheep/ui-locate-mcp/internal/geometry"
)

func whitePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return buf.Bytes()
}

// fakeRecognizer records what it was given and returns fixed words.
type fakeRecognizer struct {
	words []word
	err   error
	calls int
	size  image.Point
}

func (f *fakeRecognizer) recognize(data []byte, _ Config) ([]word, error) {
	f.calls++
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		f.size = image.Point{X: cfg.Width, Y: cfg.Height}
	}
	return f.words, f.err
}

func newTestDetector(cfg Config, f *fakeRecognizer) *Detector {
	d := NewDetector(cfg, nil)
	d.recognize = f.recognize
	return d
}

func TestDetect_ScalesBoxesBack(t *testing.T) {
	f := &fakeRecognizer{words: []word{
		{text: "Save", box: image.Rect(20, 40, 101, 61), confidence: 0.91, label: LabelWord},
		{text: "Save changes", box: image.Rect(20, 40, 261, 61), confidence: 0.88, label: LabelLine},
	}}
	d := newTestDetector(Config{Language: "eng", MinConfidence: 0.5, Scale: 2}, f)

	res, err := d.Detect(context.Background(), whitePNG(t, 200, 100))
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	if f.size != (image.Point{X: 400, Y: 200}) {
		t.Errorf("recognizer saw %v, want 400x200", f.size)
	}
	if res.Width != 200 || res.Height != 100 {
		t.Errorf("size: got %dx%d, want 200x100", res.Width, res.Height)
	}
	if len(res.Detections) != 2 {
		t.Fatalf("expected 2 detections, got %d", len(res.Detections))
	}

	// Min edges floor, max edges ceil.
	if want := (geometry.Box{X1: 10, Y1: 20, X2: 51, Y2: 31}); res.Detections[0].Box != want {
		t.Errorf("word box: got %v, want %v", res.Detections[0].Box, want)
	}
	if res.Detections[0].Label != LabelWord || res.Detections[0].Score != 0.91 {
		t.Errorf("word: got %+v", res.Detections[0])
	}
	if want := (geometry.Box{X1: 10, Y1: 20, X2: 131, Y2: 31}); res.Detections[1].Box != want {
		t.Errorf("line box: got %v, want %v", res.Detections[1].Box, want)
	}
}

func TestDetect_NoScale(t *testing.T) {
	f := &fakeRecognizer{words: []word{
		{text: "OK", box: image.Rect(5, 5, 25, 15), confidence: 0.9, label: LabelWord},
	}}
	d := newTestDetector(Config{Scale: 1}, f)

	res, err := d.Detect(context.Background(), whitePNG(t, 50, 30))
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if f.size != (image.Point{X: 50, Y: 30}) {
		t.Errorf("recognizer saw %v, want original 50x30", f.size)
	}
	if want := (geometry.Box{X1: 5, Y1: 5, X2: 25, Y2: 15}); res.Detections[0].Box != want {
		t.Errorf("box: got %v, want %v", res.Detections[0].Box, want)
	}
}

func TestDetect_RecognizerError(t *testing.T) {
	boom := errors.New("tesseract exploded")
	d := newTestDetector(DefaultConfig(), &fakeRecognizer{err: boom})

	_, err := d.Detect(context.Background(), whitePNG(t, 20, 20))
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped recognizer error, got %v", err)
	}
}

func TestDetect_InvalidImage(t *testing.T) {
	f := &fakeRecognizer{}
	d := newTestDetector(DefaultConfig(), f)

	if _, err := d.Detect(context.Background(), []byte("nope")); err == nil {
		t.Error("expected error for invalid image")
	}
	if f.calls != 0 {
		t.Errorf("recognizer should not run on invalid input, ran %d times", f.calls)
	}
}

func TestDetect_CancelledContext(t *testing.T) {
	f := &fakeRecognizer{}
	d := newTestDetector(DefaultConfig(), f)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.Detect(ctx, whitePNG(t, 20, 20)); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if f.calls != 0 {
		t.Errorf("recognizer should not run after cancel, ran %d times", f.calls)
	}
}

func TestToDetections_Filters(t *testing.T) {
	words := []word{
		{text: "  ", box: image.Rect(0, 0, 10, 10), confidence: 0.99, label: LabelWord},
		{text: "low", box: image.Rect(0, 0, 10, 10), confidence: 0.2, label: LabelWord},
		{text: "edge", box: image.Rect(90, 90, 130, 130), confidence: 0.8, label: LabelWord},
		{text: "outside", box: image.Rect(150, 150, 160, 160), confidence: 0.8, label: LabelWord},
		{text: "ok", box: image.Rect(10, 10, 30, 20), confidence: 0.7777, label: LabelWord},
	}

	dets := toDetections(words, 1, 100, 100, 0.5)
	if len(dets) != 2 {
		t.Fatalf("expected 2 detections, got %d: %+v", len(dets), dets)
	}
	if want := (geometry.Box{X1: 90, Y1: 90, X2: 100, Y2: 100}); dets[0].Box != want {
		t.Errorf("clipped box: got %v, want %v", dets[0].Box, want)
	}
	if dets[1].Score != 0.778 {
		t.Errorf("score rounding: got %v, want 0.778", dets[1].Score)
	}
}

func TestNewDetector_Defaults(t *testing.T) {
	d := NewDetector(Config{}, nil)
	if d.cfg.Language != "eng" {
		t.Errorf("default language: got %q, want eng", d.cfg.Language)
	}
	if d.logger == nil || d.recognize == nil {
		t.Error("logger and recognizer must be set")
	}
}
