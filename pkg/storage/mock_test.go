package storage

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/MrCodeEU/facetrack/pkg/recognition"
)

// MockEngine produces MockTrackers. LoadTracker accepts what MockTracker.Save
// wrote.
type MockEngine struct {
	LoadTrackerFunc func(data []byte) (recognition.Tracker, error)
	NewTrackerFunc  func() (recognition.Tracker, error)
}

func (m *MockEngine) Activate(string) error { return nil }
func (m *MockEngine) Activated() bool      { return true }

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
	return newMockTracker(), nil
}

func (m *MockEngine) LoadTracker(data []byte) (recognition.Tracker, error) {
	if m.LoadTrackerFunc != nil {
		return m.LoadTrackerFunc(data)
	}
	t := newMockTracker()
	if err := json.Unmarshal(data, &t.names); err != nil {
		return nil, fmt.Errorf("%w: %v", recognition.ErrMemoryFormat, err)
	}
	for id := range t.names {
		if id >= t.next {
			t.next = id + 1
		}
	}
	return t, nil
}

func (m *MockEngine) Close() error { return nil }

// MockTracker keeps names in a map and serializes them as JSON.
type MockTracker struct {
	names  map[int64]string
	next   int64
	closed bool

	SaveFunc  func() ([]byte, error)
	PurgeFunc func(id int64) error
}

func newMockTracker() *MockTracker {
	return &MockTracker{names: make(map[int64]string), next: 1}
}

func (m *MockTracker) SetParameters(string) (int, error)     { return -1, nil }
func (m *MockTracker) FeedFrame([]byte) ([]int64, error)     { return nil, nil }
func (m *MockTracker) Face(int64) (recognition.Rect, error) { return recognition.Rect{}, recognition.ErrUnknownID }

func (m *MockTracker) FacialAttribute(int64, string) (string, error) {
	return "", recognition.ErrAttributeNotFound
}

func (m *MockTracker) Name(id int64) (string, error) {
	name, ok := m.names[id]
	if !ok {
		return "", recognition.ErrUnknownID
	}
	return name, nil
}

func (m *MockTracker) SetName(id int64, name string) error {
	if _, ok := m.names[id]; !ok {
		return recognition.ErrUnknownID
	}
	m.names[id] = name
	return nil
}

func (m *MockTracker) PurgeID(id int64) error {
	if m.PurgeFunc != nil {
		return m.PurgeFunc(id)
	}
	if _, ok := m.names[id]; !ok {
		return recognition.ErrUnknownID
	}
	delete(m.names, id)
	return nil
}

func (m *MockTracker) IDs() []int64 {
	ids := make([]int64, 0, len(m.names))
	for id := range m.names {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (m *MockTracker) MatchFaces(recognition.Template, float32) ([]recognition.IDSimilarity, error) {
	return nil, nil
}

func (m *MockTracker) CreateID(recognition.Template) (int64, error) {
	id := m.next
	m.next++
	m.names[id] = ""
	return id, nil
}

func (m *MockTracker) AddFaceTemplate(id int64, _ recognition.Template) error {
	if _, ok := m.names[id]; !ok {
		return recognition.ErrUnknownID
	}
	return nil
}

func (m *MockTracker) Save() ([]byte, error) {
	if m.SaveFunc != nil {
		return m.SaveFunc()
	}
	return json.Marshal(m.names)
}

func (m *MockTracker) Close() error {
	m.closed = true
	return nil
}
