package recognition

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	memoryMagic   = "FTRK"
	memoryVersion = 1

	// maxTemplatesPerID bounds how many descriptors an identity accumulates.
	maxTemplatesPerID = 16
)

type identity struct {
	Name      string
	Templates []Descriptor
}

// memory is the identity part of a tracker: everything Save persists.
type memory struct {
	nextID     int64
	identities map[int64]*identity
}

func newMemory() *memory {
	return &memory{nextID: 1, identities: make(map[int64]*identity)}
}

type memoryRecord struct {
	NextID     int64            `msgpack:"next_id"`
	Identities []identityRecord `msgpack:"identities"`
}

type identityRecord struct {
	ID        int64       `msgpack:"id"`
	Name      string      `msgpack:"name,omitempty"`
	Templates [][]float32 `msgpack:"templates"`
}

func (m *memory) ids() []int64 {
	ids := make([]int64, 0, len(m.identities))
	for id := range m.identities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (m *memory) create(d Descriptor) int64 {
	id := m.nextID
	m.nextID++
	m.identities[id] = &identity{Templates: []Descriptor{d}}
	return id
}

func (m *memory) addTemplate(id int64, d Descriptor) {
	ident := m.identities[id]
	ident.Templates = append(ident.Templates, d)
	if len(ident.Templates) > maxTemplatesPerID {
		// Keep the first template as the anchor and drop the oldest of the rest.
		ident.Templates = append(ident.Templates[:1], ident.Templates[2:]...)
	}
}

// nearest returns the id whose closest template is nearest to d, skipping
// ids in exclude. ok is false when memory is empty.
func (m *memory) nearest(d Descriptor, exclude map[int64]bool) (id int64, dist float64, ok bool) {
	dist = -1
	for _, cand := range m.ids() {
		if exclude[cand] {
			continue
		}
		cd := minDistance(m.identities[cand].Templates, d)
		if cd < 0 {
			continue
		}
		if !ok || cd < dist {
			id, dist, ok = cand, cd, true
		}
	}
	return id, dist, ok
}

func (m *memory) encode() ([]byte, error) {
	rec := memoryRecord{NextID: m.nextID}
	for _, id := range m.ids() {
		ident := m.identities[id]
		ir := identityRecord{ID: id, Name: ident.Name}
		for _, t := range ident.Templates {
			ir.Templates = append(ir.Templates, t[:])
		}
		rec.Identities = append(rec.Identities, ir)
	}

	body, err := msgpack.Marshal(&rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tracker memory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(memoryMagic)
	buf.WriteByte(memoryVersion)
	buf.Write(body)
	return buf.Bytes(), nil
}

func decodeMemory(data []byte) (*memory, error) {
	header := len(memoryMagic) + 1
	if len(data) < header || string(data[:len(memoryMagic)]) != memoryMagic {
		return nil, fmt.Errorf("%w: bad header", ErrMemoryFormat)
	}
	if v := data[len(memoryMagic)]; v != memoryVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrMemoryFormat, v)
	}

	var rec memoryRecord
	if err := msgpack.Unmarshal(data[header:], &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMemoryFormat, err)
	}

	m := newMemory()
	for _, ir := range rec.Identities {
		if ir.ID <= 0 {
			return nil, fmt.Errorf("%w: invalid id %d", ErrMemoryFormat, ir.ID)
		}
		ident := &identity{Name: ir.Name}
		for _, t := range ir.Templates {
			var d Descriptor
			if len(t) != len(d) {
				return nil, fmt.Errorf("%w: id %d has a %d-value template", ErrMemoryFormat, ir.ID, len(t))
			}
			copy(d[:], t)
			ident.Templates = append(ident.Templates, d)
		}
		m.identities[ir.ID] = ident
		if ir.ID >= m.nextID {
			m.nextID = ir.ID + 1
		}
	}
	if rec.NextID > m.nextID {
		m.nextID = rec.NextID
	}
	return m, nil
}

func minDistance(templates []Descriptor, d Descriptor) float64 {
	best := -1.0
	for _, t := range templates {
		if dist := Distance(t, d); best < 0 || dist < best {
			best = dist
		}
	}
	return best
}
