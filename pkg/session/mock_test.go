package session

import (
	"context"
	"sync"

	"github.com/MrCodeEU/facetrack/pkg/camera"
	"github.com/MrCodeEU/facetrack/pkg/recognition"
)

// callLog records teardown calls across mocks.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type MockEngine struct {
	NotActivated   bool
	NewTrackerFunc func() (recognition.Tracker, error)
	log            *callLog
}

func (m *MockEngine) Activate(string) error { return nil }
func (m *MockEngine) Activated() bool      { return !m.NotActivated }

func (m *MockEngine) DetectFace([]byte) (recognition.Rect, error) {
	return recognition.Rect{}, recognition.ErrNoFaceDetected
}

func (m *MockEngine) ExtractTemplate([]byte, recognition.Rect) (recognition.Template, error) {
	return nil, recognition.ErrNoFaceDetected
}

func (m *MockEngine) NewTracker() (recognition.Tracker, error) {
	if m.NewTrackerFunc != nil {
		return m.NewTrackerFunc()
	}
	return &MockTracker{}, nil
}

func (m *MockEngine) LoadTracker([]byte) (recognition.Tracker, error) {
	return nil, recognition.ErrMemoryFormat
}

func (m *MockEngine) Close() error {
	m.log.add("engine.close")
	return nil
}

type MockTracker struct {
	SetParametersFunc   func(params string) (int, error)
	FeedFrameFunc       func(frame []byte) ([]int64, error)
	FaceFunc            func(id int64) (recognition.Rect, error)
	FacialAttributeFunc func(id int64, name string) (string, error)
	SaveFunc            func() ([]byte, error)

	mu    sync.Mutex
	names map[int64]string
}

func (m *MockTracker) SetParameters(params string) (int, error) {
	if m.SetParametersFunc != nil {
		return m.SetParametersFunc(params)
	}
	return -1, nil
}

func (m *MockTracker) FeedFrame(frame []byte) ([]int64, error) {
	if m.FeedFrameFunc != nil {
		return m.FeedFrameFunc(frame)
	}
	return nil, nil
}

func (m *MockTracker) Face(id int64) (recognition.Rect, error) {
	if m.FaceFunc != nil {
		return m.FaceFunc(id)
	}
	return recognition.Rect{}, recognition.ErrUnknownID
}

func (m *MockTracker) FacialAttribute(id int64, name string) (string, error) {
	if m.FacialAttributeFunc != nil {
		return m.FacialAttributeFunc(id, name)
	}
	return "", recognition.ErrAttributeNotFound
}

func (m *MockTracker) Name(id int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.names[id]
	if !ok {
		return "", recognition.ErrUnknownID
	}
	return name, nil
}

func (m *MockTracker) SetName(id int64, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.names == nil {
		m.names = make(map[int64]string)
	}
	m.names[id] = name
	return nil
}

func (m *MockTracker) PurgeID(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.names, id)
	return nil
}

func (m *MockTracker) IDs() []int64 { return nil }

func (m *MockTracker) MatchFaces(recognition.Template, float32) ([]recognition.IDSimilarity, error) {
	return nil, nil
}

func (m *MockTracker) CreateID(recognition.Template) (int64, error) { return 0, nil }

func (m *MockTracker) AddFaceTemplate(int64, recognition.Template) error { return nil }

func (m *MockTracker) Save() ([]byte, error) {
	if m.SaveFunc != nil {
		return m.SaveFunc()
	}
	return []byte("memory"), nil
}

func (m *MockTracker) Close() error { return nil }

type MockStore struct {
	tracker *MockTracker
	names   map[int64]string
	log     *callLog

	SaveFunc func(path string) error
}

func (m *MockStore) Tracker() recognition.Tracker { return m.tracker }

func (m *MockStore) Name(id int64) string { return m.names[id] }

func (m *MockStore) SetName(id int64, name string) error {
	if m.names == nil {
		m.names = make(map[int64]string)
	}
	m.names[id] = name
	return nil
}

func (m *MockStore) Purge(id int64) error {
	delete(m.names, id)
	return nil
}

func (m *MockStore) Save(path string) error {
	m.log.add("store.save")
	if m.SaveFunc != nil {
		return m.SaveFunc(path)
	}
	return nil
}

func (m *MockStore) Close() error {
	m.log.add("store.close")
	return nil
}

type MockDevice struct {
	GrabFunc func(ctx context.Context) (*camera.Frame, error)
	log      *callLog
}

func (m *MockDevice) Grab(ctx context.Context) (*camera.Frame, error) {
	if m.GrabFunc != nil {
		return m.GrabFunc(ctx)
	}
	return nil, camera.ErrNoFrame
}

func (m *MockDevice) Info() camera.DeviceInfo {
	return camera.DeviceInfo{Path: "/dev/video0", Name: "Mock Camera"}
}

func (m *MockDevice) Close() error {
	m.log.add("camera.close")
	return nil
}

type MockSource struct {
	ListFunc    func() ([]camera.DeviceInfo, error)
	FormatsFunc func(device string) ([]camera.VideoFormat, error)
	OpenFunc    func(device string, format *camera.VideoFormat) (camera.Device, error)
}

func (m *MockSource) List() ([]camera.DeviceInfo, error) {
	if m.ListFunc != nil {
		return m.ListFunc()
	}
	return nil, nil
}

func (m *MockSource) Formats(device string) ([]camera.VideoFormat, error) {
	if m.FormatsFunc != nil {
		return m.FormatsFunc(device)
	}
	return nil, nil
}

func (m *MockSource) Open(device string, format *camera.VideoFormat) (camera.Device, error) {
	if m.OpenFunc != nil {
		return m.OpenFunc(device, format)
	}
	return &MockDevice{}, nil
}
