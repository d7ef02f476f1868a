package loaders

import (
	"fmt"
	"os"
	"path/filepath"
)

// BinaryLoader hands back the raw bytes of a file. Configuration files go
// through it so the watcher can skip events for empty, half-written files.
type BinaryLoader struct{}

func (bl *BinaryLoader) Load(path string) (*Resource, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(buf) == 0 {
		return nil, fmt.Errorf("%s is empty", filepath.Base(path))
	}
	return &Resource{
		Name:     filepath.Base(path),
		FullPath: path,
		DataSize: uint64(len(buf)),
		Data:     buf,
	}, nil
}

func (bl *BinaryLoader) Unload(*Resource) error { return nil }
