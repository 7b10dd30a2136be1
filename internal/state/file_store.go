package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// NewFileStore 以 path 为状态文件位置构建磁盘存储，整个进程复用一份实例。
func NewFileStore(path string) (Store, error) {
	if path == "" {
		return nil, errors.New("state path required")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve state path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	return &fileStore{path: abs}, nil
}

// fileStore 通过互斥锁串行化读写；状态文件只有一个，无需分条目加锁。
type fileStore struct {
	mu   sync.Mutex
	path string
}

func (s *fileStore) Load() (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}
	if st.ColorMap == nil {
		st.ColorMap = map[string][3]uint32{}
	}
	return &st, nil
}

func (s *fileStore) Save(st *State) error {
	if st == nil {
		return errors.New("nil state")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	dir := filepath.Dir(s.path)
	tempFile, err := os.CreateTemp(dir, ".state-*")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()

	_, err = tempFile.Write(raw)
	if err == nil {
		err = tempFile.Sync()
	}
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return err
	}

	if err := os.Rename(tempName, s.path); err != nil {
		os.Remove(tempName)
		return err
	}
	return nil
}
