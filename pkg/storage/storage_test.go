package storage

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/MrCodeEU/facetrack/pkg/recognition"
)

func testTemplate() recognition.Template {
	return make(recognition.Template, recognition.TemplateSize)
}

func TestLoad_MissingFile(t *testing.T) {
	store, err := Load(&MockEngine{}, filepath.Join(t.TempDir(), "tracker_memory.dat"), nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if ids := store.IDs(); len(ids) != 0 {
		t.Errorf("expected empty store, got %v", ids)
	}
}

func TestLoad_CorruptFileFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker_memory.dat")
	if err := os.WriteFile(path, []byte("not a tracker"), 0600); err != nil {
		t.Fatal(err)
	}

	store, err := Load(&MockEngine{}, path, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if ids := store.IDs(); len(ids) != 0 {
		t.Errorf("expected empty store, got %v", ids)
	}
}

func TestLoad_NewTrackerFailure(t *testing.T) {
	engine := &MockEngine{
		NewTrackerFunc: func() (recognition.Tracker, error) { return nil, recognition.ErrNotActivated },
	}

	_, err := Load(engine, filepath.Join(t.TempDir(), "missing.dat"), nil)
	if !errors.Is(err, recognition.ErrNotActivated) {
		t.Errorf("Load error = %v, want ErrNotActivated", err)
	}
}

func TestIdentityStore_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tracker_memory.dat")

	store, _ := Load(&MockEngine{}, path, nil)
	alice, err := store.Enroll("Alice", testTemplate())
	if err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}
	bob, _ := store.Enroll("Bob", testTemplate(), testTemplate())

	if err := store.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("memory file not written: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("memory file mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := Load(&MockEngine{}, path, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if name := loaded.Name(alice); name != "Alice" {
		t.Errorf("Name(%d) = %q, want Alice", alice, name)
	}
	if name := loaded.Name(bob); name != "Bob" {
		t.Errorf("Name(%d) = %q, want Bob", bob, name)
	}
}

func TestIdentityStore_SaveOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker_memory.dat")
	if err := os.WriteFile(path, bytes.Repeat([]byte("x"), 4096), 0600); err != nil {
		t.Fatal(err)
	}

	store, _ := Load(&MockEngine{}, path, nil)
	if err := store.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "{}" {
		t.Errorf("file content = %q, want the new memory only", data)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected only the memory file, found %d entries", len(entries))
	}
}

func TestIdentityStore_SaveError(t *testing.T) {
	store, _ := Load(&MockEngine{}, filepath.Join(t.TempDir(), "m.dat"), nil)
	store.Tracker().(*MockTracker).SaveFunc = func() ([]byte, error) {
		return nil, errors.New("engine busy")
	}

	if err := store.Save(filepath.Join(t.TempDir(), "m.dat")); err == nil {
		t.Error("expected Save error")
	}
}

func TestIdentityStore_Name(t *testing.T) {
	store, _ := Load(&MockEngine{}, filepath.Join(t.TempDir(), "m.dat"), nil)
	id, _ := store.Enroll("", testTemplate())

	if name := store.Name(id); name != "" {
		t.Errorf("unnamed identity Name = %q", name)
	}
	if name := store.Name(999); name != "" {
		t.Errorf("unknown identity Name = %q", name)
	}

	if err := store.SetName(id, "Carol"); err != nil {
		t.Fatalf("SetName failed: %v", err)
	}
	if name := store.Name(id); name != "Carol" {
		t.Errorf("Name = %q, want Carol", name)
	}
}

func TestIdentityStore_SetEmptyNamePurges(t *testing.T) {
	store, _ := Load(&MockEngine{}, filepath.Join(t.TempDir(), "m.dat"), nil)
	id, _ := store.Enroll("Dave", testTemplate())

	if err := store.SetName(id, ""); err != nil {
		t.Fatalf("SetName failed: %v", err)
	}
	if ids := store.IDs(); len(ids) != 0 {
		t.Errorf("identity should be purged, got %v", ids)
	}
}

func TestIdentityStore_PurgeIdempotent(t *testing.T) {
	store, _ := Load(&MockEngine{}, filepath.Join(t.TempDir(), "m.dat"), nil)
	id, _ := store.Enroll("Eve", testTemplate())

	for i := 0; i < 3; i++ {
		if err := store.Purge(id); err != nil {
			t.Fatalf("Purge #%d failed: %v", i+1, err)
		}
	}
	if err := store.Purge(12345); err != nil {
		t.Errorf("Purge of unknown id failed: %v", err)
	}
}

func TestIdentityStore_PurgeEngineError(t *testing.T) {
	store, _ := Load(&MockEngine{}, filepath.Join(t.TempDir(), "m.dat"), nil)
	store.Tracker().(*MockTracker).PurgeFunc = func(int64) error {
		return errors.New("engine failure")
	}

	if err := store.Purge(1); err == nil {
		t.Error("expected engine error to surface")
	}
}

func TestIdentityStore_EnrollWithoutTemplates(t *testing.T) {
	store, _ := Load(&MockEngine{}, filepath.Join(t.TempDir(), "m.dat"), nil)

	if _, err := store.Enroll("Frank"); !errors.Is(err, ErrNoTemplates) {
		t.Errorf("Enroll error = %v, want ErrNoTemplates", err)
	}
}

func TestIdentityStore_Encrypted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker_memory.enc")
	sealer := NewSealerWithKey([KeySize]byte{1, 2, 3})

	store, _ := Load(&MockEngine{}, path, sealer)
	id, _ := store.Enroll("Grace", testTemplate())
	if err := store.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	raw, _ := os.ReadFile(path)
	if bytes.Contains(raw, []byte("Grace")) {
		t.Error("memory file contains plaintext name")
	}

	loaded, _ := Load(&MockEngine{}, path, sealer)
	if name := loaded.Name(id); name != "Grace" {
		t.Errorf("Name = %q, want Grace", name)
	}

	other := NewSealerWithKey([KeySize]byte{9})
	fallback, err := Load(&MockEngine{}, path, other)
	if err != nil {
		t.Fatalf("Load with wrong key failed: %v", err)
	}
	if ids := fallback.IDs(); len(ids) != 0 {
		t.Errorf("wrong key should fall back to empty store, got %v", ids)
	}
}

func TestIdentityStore_Close(t *testing.T) {
	store, _ := Load(&MockEngine{}, filepath.Join(t.TempDir(), "m.dat"), nil)

	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if !store.Tracker().(*MockTracker).closed {
		t.Error("tracker was not closed")
	}
}

func TestSealer(t *testing.T) {
	s, err := NewSealer()
	if err != nil {
		t.Fatalf("NewSealer failed: %v", err)
	}

	plaintext := []byte("tracker memory")
	ciphertext, err := s.Seal(plaintext)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if bytes.Equal(ciphertext, plaintext) {
		t.Error("ciphertext equals plaintext")
	}

	decrypted, err := s.Open(ciphertext)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Errorf("Open = %q, want %q", decrypted, plaintext)
	}
}

func TestSealer_InvalidData(t *testing.T) {
	s := NewSealerWithKey([KeySize]byte{})

	if _, err := s.Open([]byte("short")); !errors.Is(err, ErrEncryption) {
		t.Errorf("short data error = %v, want ErrEncryption", err)
	}

	invalid := make([]byte, NonceSize+32)
	if _, err := s.Open(invalid); !errors.Is(err, ErrEncryption) {
		t.Errorf("invalid data error = %v, want ErrEncryption", err)
	}
}

func BenchmarkSealer(b *testing.B) {
	s := NewSealerWithKey([KeySize]byte{7})
	data := bytes.Repeat([]byte{0xAB}, 64*1024)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sealed, _ := s.Seal(data)
		_, _ = s.Open(sealed)
	}
}
