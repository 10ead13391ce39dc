package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/md-rashed-zaman/reservd/internal/model"
)

const (
	slotsFile = "slots.json"
	holdsFile = "holds.json"
)

// FileStore keeps slots and holds as two JSON files, rewritten whole on
// every save. Matches the single-writer model: the engine serializes all
// writes, so no file locking is needed.
type FileStore struct {
	dir string
}

// OpenFileStore creates the data directory and seeds empty documents on
// first use.
func OpenFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, unavailable("mkdir", err)
	}
	s := &FileStore{dir: dir}
	if err := s.seed(slotsFile, []byte("[]")); err != nil {
		return nil, err
	}
	if err := s.seed(holdsFile, []byte(`{"holds":{},"confirmed":{}}`)); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) seed(name string, initial []byte) error {
	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.WriteFile(path, initial, 0o600); err != nil {
		return unavailable("seed "+name, err)
	}
	return nil
}

func (s *FileStore) LoadSlots(_ context.Context) ([]model.Slot, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, slotsFile))
	if err != nil {
		return nil, unavailable("read slots", err)
	}
	var slots []model.Slot
	if err := json.Unmarshal(data, &slots); err != nil {
		return nil, unavailable("parse slots", err)
	}
	return slots, nil
}

func (s *FileStore) SaveSlots(_ context.Context, slots []model.Slot) error {
	if slots == nil {
		slots = []model.Slot{}
	}
	data, err := json.MarshalIndent(slots, "", "  ")
	if err != nil {
		return unavailable("encode slots", err)
	}
	return s.writeAtomic(slotsFile, data)
}

func (s *FileStore) LoadHolds(_ context.Context) (model.HoldDocument, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, holdsFile))
	if err != nil {
		return model.HoldDocument{}, unavailable("read holds", err)
	}
	var doc model.HoldDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return model.HoldDocument{}, unavailable("parse holds", err)
	}
	doc.Normalize()
	return doc, nil
}

func (s *FileStore) SaveHolds(_ context.Context, doc model.HoldDocument) error {
	doc.Normalize()
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return unavailable("encode holds", err)
	}
	return s.writeAtomic(holdsFile, data)
}

func (s *FileStore) Ping(_ context.Context) error {
	if _, err := os.Stat(s.dir); err != nil {
		return unavailable("stat data dir", err)
	}
	return nil
}

// writeAtomic writes via a temp file + rename so a crash mid-write never
// leaves a truncated snapshot behind.
func (s *FileStore) writeAtomic(name string, data []byte) error {
	path := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return unavailable("write "+name, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return unavailable("write "+name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return unavailable("write "+name, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return unavailable("write "+name, err)
	}
	return nil
}
