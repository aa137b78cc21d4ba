// Package session はクライアント側の認証セッションを管理する。
// クレデンシャルの永続化（Store）と、ログイン状態の遷移（Manager）を提供する。
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// credentialKey はセッションファイル内でクレデンシャルを保持するキー。
const credentialKey = "rpg_auth_token"

// Store は現在のクレデンシャルを保持する。有効期限は保存しない。
type Store interface {
	Save(credential string) error
	Load() (credential string, ok bool, err error)
	Clear() error
}

// MemoryStore はプロセス内にのみクレデンシャルを保持するStore。
type MemoryStore struct {
	mu         sync.Mutex
	credential string
}

// NewMemoryStore はMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Save(credential string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credential = credential
	return nil
}

func (s *MemoryStore) Load() (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credential, s.credential != "", nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credential = ""
	return nil
}

// FileStore はYAMLファイルにクレデンシャルを保持するStore。
// ファイルは所有者のみ読み書きできる権限（0600）で作成する。
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore はpathに保存するFileStoreを生成する。
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultFilePath はユーザー設定ディレクトリ配下のセッションファイルのパスを返す。
// Linuxでは $XDG_CONFIG_HOME/rpgtable/session.yaml（未設定時は ~/.config）になる。
func DefaultFilePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve config directory: %w", err)
	}
	return filepath.Join(dir, "rpgtable", "session.yaml"), nil
}

// Path はセッションファイルのパスを返す。
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Save(credential string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := yaml.Marshal(map[string]string{credentialKey: credential})
	if err != nil {
		return fmt.Errorf("failed to encode session file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	// 書き込み途中のファイルを読まれないよう一時ファイル経由で置き換える
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create session file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set session file mode: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

func (s *FileStore) Load() (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read session file: %w", err)
	}

	var values map[string]string
	if err := yaml.Unmarshal(data, &values); err != nil {
		return "", false, fmt.Errorf("failed to parse session file: %w", err)
	}
	credential := values[credentialKey]
	return credential, credential != "", nil
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}
