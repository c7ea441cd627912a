package session

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pion/logging"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/crypto/blake2b"
)

const recordVersion = 1

// record is the persisted form of a State.
type record struct {
	Version       uint8     `msgpack:"v"`
	PacketNumber  uint8     `msgpack:"p"`
	MessageNumber uint8     `msgpack:"m"`
	SavedAt       time.Time `msgpack:"t"`
}

// envelope pairs the encoded record with its BLAKE2b-256 digest.
type envelope struct {
	Record []byte `msgpack:"r"`
	Digest []byte `msgpack:"d"`
}

// FileStoreConfig configures a FileStore.
type FileStoreConfig struct {
	// Path is the state file. Required.
	Path string

	// LoggerFactory for debug output. Nil disables logging.
	LoggerFactory logging.LoggerFactory

	// Now overrides the save timestamp source. Defaults to time.Now.
	Now func() time.Time
}

// FileStore persists state to a single file. Each Save writes a temporary
// file in the same directory and renames it over Path, so a crash leaves
// either the old or the new record.
type FileStore struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
	log  logging.LeveledLogger
}

// NewFileStore creates a FileStore. The file is not touched until Load or Save.
func NewFileStore(config FileStoreConfig) (*FileStore, error) {
	if config.Path == "" {
		return nil, errors.New("session: file store path required")
	}
	fsStore := &FileStore{
		path: config.Path,
		now:  config.Now,
	}
	if fsStore.now == nil {
		fsStore.now = time.Now
	}
	if config.LoggerFactory != nil {
		fsStore.log = config.LoggerFactory.NewLogger("session-store")
	}
	return fsStore, nil
}

// Path returns the state file path.
func (f *FileStore) Path() string { return f.path }

// Load implements Store.
func (f *FileStore) Load() (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return State{}, ErrNotFound
	}
	if err != nil {
		return State{}, fmt.Errorf("session: reading %s: %w", f.path, err)
	}

	var env envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	sum := blake2b.Sum256(env.Record)
	if !bytes.Equal(sum[:], env.Digest) {
		return State{}, fmt.Errorf("%w: digest mismatch", ErrCorrupt)
	}

	var rec record
	if err := msgpack.Unmarshal(env.Record, &rec); err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if rec.Version != recordVersion {
		return State{}, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, rec.Version)
	}

	s, err := NewState(int(rec.PacketNumber), int(rec.MessageNumber))
	if err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if f.log != nil {
		f.log.Debugf("loaded %v saved at %v", s, rec.SavedAt)
	}
	return s, nil
}

// Save implements Store.
func (f *FileStore) Save(s State) error {
	if err := s.Validate(); err != nil {
		return err
	}

	payload, err := msgpack.Marshal(&record{
		Version:       recordVersion,
		PacketNumber:  s.PacketNumber,
		MessageNumber: s.MessageNumber,
		SavedAt:       f.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("session: encoding record: %w", err)
	}
	sum := blake2b.Sum256(payload)
	data, err := msgpack.Marshal(&envelope{Record: payload, Digest: sum[:]})
	if err != nil {
		return fmt.Errorf("session: encoding envelope: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := writeFileAtomic(f.path, data); err != nil {
		return err
	}
	if f.log != nil {
		f.log.Tracef("saved %v", s)
	}
	return nil
}

// Reset removes the state file. A missing file is not an error.
func (f *FileStore) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("session: removing %s: %w", f.path, err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("session: creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("session: creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("session: writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("session: syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("session: closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("session: replacing %s: %w", path, err)
	}
	return nil
}
