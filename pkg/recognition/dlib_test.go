package recognition

import (
	"errors"
	"image"
	"testing"

	"github.com/Kagami/go-face"
)

func TestDlibEngine_NotActivated(t *testing.T) {
	e := NewDlibEngine(DefaultOptions("models"))

	if e.Activated() {
		t.Fatal("new engine should not be activated")
	}
	if _, err := e.DetectFace([]byte("img")); !errors.Is(err, ErrNotActivated) {
		t.Errorf("DetectFace() error = %v, want ErrNotActivated", err)
	}
	if _, err := e.NewTracker(); !errors.Is(err, ErrNotActivated) {
		t.Errorf("NewTracker() error = %v, want ErrNotActivated", err)
	}
	if _, err := e.LoadTracker(nil); !errors.Is(err, ErrNotActivated) {
		t.Errorf("LoadTracker() error = %v, want ErrNotActivated", err)
	}
}

func TestDlibEngine_ActivateFailure(t *testing.T) {
	e := NewDlibEngine(DefaultOptions("/nonexistent"))
	e.factory = func(string) (FaceEngine, error) {
		return nil, errors.New("model file missing")
	}

	if err := e.Activate("key"); err == nil {
		t.Fatal("Activate() expected error")
	}
	if e.Activated() {
		t.Error("engine should not be activated after failure")
	}
}

func TestDlibEngine_ActivateOnce(t *testing.T) {
	loads := 0
	e := NewDlibEngine(DefaultOptions("models"))
	e.factory = func(string) (FaceEngine, error) {
		loads++
		return &MockFaceEngine{}, nil
	}

	for i := 0; i < 3; i++ {
		if err := e.Activate(""); err != nil {
			t.Fatalf("Activate() error = %v", err)
		}
	}
	if loads != 1 {
		t.Errorf("models loaded %d times, want 1", loads)
	}
}

func TestDlibEngine_DetectFace(t *testing.T) {
	tests := []struct {
		name    string
		faces   []face.Face
		want    Rect
		wantErr error
	}{
		{
			name:    "no faces",
			wantErr: ErrNoFaceDetected,
		},
		{
			name:  "single face",
			faces: []face.Face{testFace(10, 20, 100, desc(0))},
			want:  Rect{Left: 10, Top: 20, Right: 110, Bottom: 120},
		},
		{
			name: "largest wins",
			faces: []face.Face{
				testFace(0, 0, 50, desc(0)),
				testFace(200, 100, 150, desc(1)),
				testFace(400, 0, 80, desc(2)),
			},
			want: Rect{Left: 200, Top: 100, Right: 350, Bottom: 250},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			faces := tt.faces
			e := newTestEngine(t, &MockFaceEngine{
				RecognizeFunc: func([]byte) ([]face.Face, error) { return faces, nil },
			}, DefaultOptions("models"))

			got, err := e.DetectFace([]byte("img"))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("DetectFace() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DetectFace() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("DetectFace() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDlibEngine_DetectFaceEngineError(t *testing.T) {
	e := newTestEngine(t, &MockFaceEngine{
		RecognizeFunc: func([]byte) ([]face.Face, error) {
			return nil, errors.New("decode failed")
		},
	}, DefaultOptions("models"))

	if _, err := e.DetectFace([]byte("img")); err == nil {
		t.Error("DetectFace() expected error")
	}
}

func TestDlibEngine_ExtractTemplate(t *testing.T) {
	faces := []face.Face{
		testFace(0, 0, 100, desc(0.1)),
		testFace(300, 0, 100, desc(0.7)),
	}
	e := newTestEngine(t, &MockFaceEngine{
		RecognizeFunc: func([]byte) ([]face.Face, error) { return faces, nil },
	}, DefaultOptions("models"))

	tmpl, err := e.ExtractTemplate([]byte("img"), Rect{Left: 290, Top: 10, Right: 390, Bottom: 90})
	if err != nil {
		t.Fatalf("ExtractTemplate() error = %v", err)
	}
	if len(tmpl) != TemplateSize {
		t.Fatalf("template size = %d, want %d", len(tmpl), TemplateSize)
	}
	d, err := tmpl.Descriptor()
	if err != nil {
		t.Fatalf("Descriptor() error = %v", err)
	}
	if d[0] != 0.7 {
		t.Errorf("template picked descriptor %v, want the overlapping face", d[0])
	}

	_, err = e.ExtractTemplate([]byte("img"), Rect{Left: 1000, Top: 1000, Right: 1100, Bottom: 1100})
	if !errors.Is(err, ErrNoFaceDetected) {
		t.Errorf("ExtractTemplate() outside any face error = %v, want ErrNoFaceDetected", err)
	}
}

func TestDlibEngine_Close(t *testing.T) {
	closed := false
	e := newTestEngine(t, &MockFaceEngine{CloseFunc: func() { closed = true }}, DefaultOptions("models"))

	if err := e.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !closed {
		t.Error("Close() did not release the recognizer")
	}
	if e.Activated() {
		t.Error("engine should not report activated after Close")
	}
	if err := e.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestRect(t *testing.T) {
	r := RectFromImage(image.Rect(110, 120, 10, 20))
	if r != (Rect{Left: 10, Top: 20, Right: 110, Bottom: 120}) {
		t.Fatalf("RectFromImage() = %+v", r)
	}
	if r.Width() != 100 || r.Height() != 100 {
		t.Errorf("size = %dx%d, want 100x100", r.Width(), r.Height())
	}
	if c := r.Center(); c != image.Pt(60, 70) {
		t.Errorf("Center() = %v, want (60,70)", c)
	}

	points := []struct {
		p    image.Point
		want bool
	}{
		{image.Pt(10, 20), true},
		{image.Pt(110, 120), true},
		{image.Pt(110, 20), true},
		{image.Pt(60, 70), true},
		{image.Pt(9, 70), false},
		{image.Pt(60, 121), false},
	}
	for _, tt := range points {
		if got := r.Contains(tt.p); got != tt.want {
			t.Errorf("Contains(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}

	if !(Rect{}).Empty() {
		t.Error("zero Rect should be empty")
	}
}

func TestTemplate(t *testing.T) {
	var d Descriptor
	for i := range d {
		d[i] = float32(i) / 128
	}

	got, err := EncodeTemplate(d).Descriptor()
	if err != nil {
		t.Fatalf("Descriptor() error = %v", err)
	}
	if got != d {
		t.Error("descriptor changed through template encoding")
	}

	if _, err := Template(make([]byte, 10)).Descriptor(); !errors.Is(err, ErrInvalidTemplate) {
		t.Errorf("short template error = %v, want ErrInvalidTemplate", err)
	}
}
