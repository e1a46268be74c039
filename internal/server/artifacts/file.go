package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/vpnkeeper/internal/common"
	"github.com/dmitrijs2005/vpnkeeper/internal/filex"
)

// FileStore keeps QR images under a local directory. References are paths
// relative to the root.
type FileStore struct {
	root string
}

func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

func (s *FileStore) path(ref string) (string, error) {
	if !filepath.IsLocal(ref) {
		return "", fmt.Errorf("%w: %q escapes store root", common.ErrInvalidArgument, ref)
	}
	return filepath.Join(s.root, filepath.FromSlash(ref)), nil
}

func (s *FileStore) Put(ctx context.Context, key string, png []byte) (string, error) {
	p, err := s.path(key)
	if err != nil {
		return "", err
	}
	if _, err := filex.EnsureDir(filepath.Dir(p)); err != nil {
		return "", err
	}
	if err := os.WriteFile(p, png, 0o640); err != nil {
		return "", err
	}
	return key, nil
}

func (s *FileStore) Get(ctx context.Context, ref string) ([]byte, error) {
	p, err := s.path(ref)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, common.ErrorNotFound
		}
		return nil, err
	}
	return b, nil
}
