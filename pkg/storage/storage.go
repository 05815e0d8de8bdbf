// Package storage owns the identity store: the mapping of tracked identity ids
// to display names, backed by the recognition engine's tracker memory. The
// memory is persisted as one file, optionally encrypted at rest with NaCl
// secretbox and always replaced atomically.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/MrCodeEU/facetrack/pkg/logging"
	"github.com/MrCodeEU/facetrack/pkg/recognition"
	"github.com/google/renameio"
)

// ErrStorageAccess is returned when storage cannot be accessed.
var ErrStorageAccess = errors.New("failed to access storage")

// ErrNoTemplates is returned by Enroll without any template.
var ErrNoTemplates = errors.New("no face templates")

// IdentityStore maps identity ids to names on top of a tracker.
type IdentityStore struct {
	tracker recognition.Tracker
	sealer  *Sealer

	closeOnce sync.Once
	closeErr  error
}

// Load restores the tracker memory at path. Any problem with the file
// (missing, unreadable, undecryptable or rejected by the engine) yields a
// store backed by a fresh tracker. Only a failure to create that fresh
// tracker is returned. A nil sealer reads and writes plaintext.
func Load(engine recognition.Engine, path string, sealer *Sealer) (*IdentityStore, error) {
	log := logging.Component("storage").WithField("path", path)

	tracker, err := loadTracker(engine, path, sealer)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Info("No tracker memory yet, starting empty")
		} else {
			log.WithError(err).Warn("Tracker memory unusable, starting empty")
		}

		tracker, err = engine.NewTracker()
		if err != nil {
			return nil, fmt.Errorf("failed to create tracker: %w", err)
		}
	} else {
		log.WithField("identities", len(tracker.IDs())).Info("Loaded tracker memory")
	}

	return &IdentityStore{tracker: tracker, sealer: sealer}, nil
}

func loadTracker(engine recognition.Engine, path string, sealer *Sealer) (recognition.Tracker, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if sealer != nil {
		data, err = sealer.Open(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt tracker memory: %w", err)
		}
	}

	return engine.LoadTracker(data)
}

// Tracker returns the tracker backing the store.
func (s *IdentityStore) Tracker() recognition.Tracker {
	return s.tracker
}

// Save writes the tracker memory to path, replacing any previous file
// atomically.
func (s *IdentityStore) Save(path string) error {
	data, err := s.tracker.Save()
	if err != nil {
		return fmt.Errorf("failed to serialize tracker memory: %w", err)
	}

	if s.sealer != nil {
		data, err = s.sealer.Seal(data)
		if err != nil {
			return fmt.Errorf("failed to encrypt tracker memory: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageAccess, err)
	}
	if err := renameio.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageAccess, err)
	}

	logging.Component("storage").WithFields(logging.Fields{
		"path":       path,
		"identities": len(s.tracker.IDs()),
	}).Debug("Saved tracker memory")
	return nil
}

// Name returns the name of id, or "" when the id is unknown or unnamed.
func (s *IdentityStore) Name(id int64) string {
	name, err := s.tracker.Name(id)
	if err != nil {
		return ""
	}
	return name
}

// SetName names id. An empty name forgets the identity entirely.
func (s *IdentityStore) SetName(id int64, name string) error {
	if name == "" {
		return s.Purge(id)
	}
	if err := s.tracker.SetName(id, name); err != nil {
		return fmt.Errorf("failed to name identity %d: %w", id, err)
	}
	logging.Component("storage").WithFields(logging.Fields{"id": id, "name": name}).Info("Identity named")
	return nil
}

// Purge forgets id. Purging an unknown id is not an error.
func (s *IdentityStore) Purge(id int64) error {
	if err := s.tracker.PurgeID(id); err != nil {
		if errors.Is(err, recognition.ErrUnknownID) {
			return nil
		}
		return fmt.Errorf("failed to purge identity %d: %w", id, err)
	}
	logging.Component("storage").WithField("id", id).Info("Identity purged")
	return nil
}

// IDs returns the known identity ids.
func (s *IdentityStore) IDs() []int64 {
	return s.tracker.IDs()
}

// Enroll creates a named identity from one or more templates of the same
// person and returns its id.
func (s *IdentityStore) Enroll(name string, templates ...recognition.Template) (int64, error) {
	if len(templates) == 0 {
		return 0, ErrNoTemplates
	}

	id, err := s.tracker.CreateID(templates[0])
	if err != nil {
		return 0, fmt.Errorf("failed to create identity: %w", err)
	}
	for _, t := range templates[1:] {
		if err := s.tracker.AddFaceTemplate(id, t); err != nil {
			return 0, fmt.Errorf("failed to add template to %d: %w", id, err)
		}
	}
	if name != "" {
		if err := s.tracker.SetName(id, name); err != nil {
			return 0, fmt.Errorf("failed to name identity %d: %w", id, err)
		}
	}
	return id, nil
}

// Close releases the tracker. It does not save.
func (s *IdentityStore) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.tracker.Close()
	})
	return s.closeErr
}
