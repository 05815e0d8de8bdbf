package recognition

import (
	"image"
	"sync"
	"testing"

	"github.com/Kagami/go-face"
)

type MockFaceEngine struct {
	RecognizeFunc func(data []byte) ([]face.Face, error)
	CloseFunc     func()
}

func (m *MockFaceEngine) Recognize(data []byte) ([]face.Face, error) {
	if m.RecognizeFunc != nil {
		return m.RecognizeFunc(data)
	}
	return nil, nil
}

func (m *MockFaceEngine) Close() {
	if m.CloseFunc != nil {
		m.CloseFunc()
	}
}

// sequence returns a mock that yields one entry of frames per Recognize call
// and no faces once they are exhausted.
func sequence(frames ...[]face.Face) *MockFaceEngine {
	var mu sync.Mutex
	i := 0
	return &MockFaceEngine{
		RecognizeFunc: func([]byte) ([]face.Face, error) {
			mu.Lock()
			defer mu.Unlock()
			if i >= len(frames) {
				return nil, nil
			}
			f := frames[i]
			i++
			return f, nil
		},
	}
}

func desc(first float32) Descriptor {
	var d Descriptor
	d[0] = first
	return d
}

func testFace(x, y, size int, d Descriptor) face.Face {
	return face.Face{
		Rectangle:  image.Rect(x, y, x+size, y+size),
		Descriptor: d,
	}
}

func newTestEngine(t *testing.T, mock *MockFaceEngine, opts Options) *DlibEngine {
	t.Helper()
	e := NewDlibEngine(opts)
	e.factory = func(string) (FaceEngine, error) { return mock, nil }
	if err := e.Activate(""); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	return e
}
