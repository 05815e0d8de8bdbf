package recognition

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"

	"github.com/MrCodeEU/facetrack/pkg/liveness"
	"github.com/MrCodeEU/facetrack/pkg/logging"
)

// Tracker parameter keys honoured by the dlib tracker. Unknown keys are
// accepted and kept so a parameter string written for another engine still
// applies cleanly.
const (
	ParamDetectLiveness      = "DetectLiveness"
	ParamLivenessFramesCount = "LivenessFramesCount"
)

type dlibTracker struct {
	engine *DlibEngine

	mu             sync.Mutex
	mem            *memory
	visible        map[int64]Rect
	frame          uint64
	scorer         *liveness.Scorer
	detectLiveness bool
	tolerance      float64
	params         map[string]string
	closed         bool
}

func newDlibTracker(e *DlibEngine, mem *memory) *dlibTracker {
	t := &dlibTracker{
		engine:    e,
		mem:       mem,
		visible:   make(map[int64]Rect),
		tolerance: e.tolerance(),
		params:    make(map[string]string),
	}
	if e.opts.Liveness.Frames > 0 {
		t.scorer = liveness.NewScorer(e.opts.Liveness)
		t.detectLiveness = true
	}
	return t
}

func (t *dlibTracker) SetParameters(params string) (int, error) {
	values, pos, err := ParseValues(params)
	if err != nil {
		return pos, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return -1, ErrTrackerClosed
	}

	for k, v := range values {
		t.params[k] = v
	}

	if v, ok := values[ParamDetectLiveness]; ok {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return -1, fmt.Errorf("%w: %s=%q", ErrInvalidParameters, ParamDetectLiveness, v)
		}
		if on && t.scorer == nil {
			t.scorer = liveness.NewScorer(liveness.DefaultConfig())
		}
		t.detectLiveness = on
	}

	if v, ok := values[ParamLivenessFramesCount]; ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return -1, fmt.Errorf("%w: %s=%q", ErrInvalidParameters, ParamLivenessFramesCount, v)
		}
		if t.scorer != nil {
			t.scorer.SetFrames(n)
		}
	}

	return -1, nil
}

func (t *dlibTracker) FeedFrame(frame []byte) ([]int64, error) {
	faces, err := t.engine.recognize(frame)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrTrackerClosed
	}

	t.frame++
	t.visible = make(map[int64]Rect, len(faces))

	// Larger faces are closer to the camera and claim their identity first.
	sort.SliceStable(faces, func(i, j int) bool {
		a, b := faces[i].Rectangle, faces[j].Rectangle
		return a.Dx()*a.Dy() > b.Dx()*b.Dy()
	})

	ids := make([]int64, 0, len(faces))
	used := make(map[int64]bool, len(faces))
	for _, f := range faces {
		id, dist, ok := t.mem.nearest(f.Descriptor, used)
		switch {
		case ok && dist <= t.tolerance:
			if dist > t.tolerance/2 {
				t.mem.addTemplate(id, f.Descriptor)
			}
		default:
			id = t.mem.create(f.Descriptor)
			logging.Component("tracker").WithField("id", id).Debug("New identity")
		}

		used[id] = true
		box := RectFromImage(f.Rectangle)
		t.visible[id] = box
		ids = append(ids, id)

		if t.scorer != nil {
			t.scorer.Observe(id, liveness.Observation{
				Frame:      t.frame,
				Box:        f.Rectangle,
				Descriptor: append([]float32(nil), f.Descriptor[:]...),
			})
		}
	}

	return ids, nil
}

func (t *dlibTracker) Face(id int64) (Rect, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	box, ok := t.visible[id]
	if !ok {
		return Rect{}, fmt.Errorf("%w: %d not visible", ErrUnknownID, id)
	}
	return box, nil
}

func (t *dlibTracker) FacialAttribute(id int64, name string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.visible[id]; !ok {
		return "", fmt.Errorf("%w: %d not visible", ErrUnknownID, id)
	}
	if t.scorer == nil || !t.detectLiveness {
		return "", fmt.Errorf("%w: %s", ErrAttributeNotFound, name)
	}

	res := t.scorer.Score(id)
	switch name {
	case AttributeLiveness:
		return FormatValue(AttributeLiveness, strconv.FormatFloat(res.Score, 'f', 4, 64)), nil
	case AttributeLivenessError:
		if res.Error == "" {
			return "", fmt.Errorf("%w: %s", ErrAttributeNotFound, name)
		}
		return FormatValue(AttributeLivenessError, res.Error), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrAttributeNotFound, name)
	}
}

func (t *dlibTracker) Name(id int64) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ident, ok := t.mem.identities[id]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownID, id)
	}
	return ident.Name, nil
}

func (t *dlibTracker) SetName(id int64, name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	ident, ok := t.mem.identities[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownID, id)
	}
	ident.Name = name
	return nil
}

func (t *dlibTracker) PurgeID(id int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.mem.identities[id]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownID, id)
	}
	delete(t.mem.identities, id)
	delete(t.visible, id)
	if t.scorer != nil {
		t.scorer.Forget(id)
	}
	return nil
}

func (t *dlibTracker) IDs() []int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mem.ids()
}

// MatchFaces returns the identities whose similarity to tmpl is at least
// threshold, best first. Similarity is 1 minus the smallest descriptor
// distance, clamped to [0, 1].
func (t *dlibTracker) MatchFaces(tmpl Template, threshold float32) ([]IDSimilarity, error) {
	d, err := tmpl.Descriptor()
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var matches []IDSimilarity
	for _, id := range t.mem.ids() {
		dist := minDistance(t.mem.identities[id].Templates, d)
		if dist < 0 {
			continue
		}
		sim := Similarity(dist)
		if sim >= threshold {
			matches = append(matches, IDSimilarity{ID: id, Similarity: sim})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	return matches, nil
}

func (t *dlibTracker) CreateID(tmpl Template) (int64, error) {
	d, err := tmpl.Descriptor()
	if err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return 0, ErrTrackerClosed
	}
	return t.mem.create(d), nil
}

func (t *dlibTracker) AddFaceTemplate(id int64, tmpl Template) error {
	d, err := tmpl.Descriptor()
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.mem.identities[id]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownID, id)
	}
	t.mem.addTemplate(id, d)
	return nil
}

func (t *dlibTracker) Save() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mem.encode()
}

func (t *dlibTracker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	t.visible = make(map[int64]Rect)
	if t.scorer != nil {
		t.scorer.Reset()
	}
	return nil
}

// Distance returns the Euclidean distance between two descriptors.
func Distance(a, b Descriptor) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i] - b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Similarity maps a descriptor distance to a similarity in [0, 1].
func Similarity(distance float64) float32 {
	return float32(math.Max(0, math.Min(1, 1-distance)))
}
