package manifest

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Key identifies one remote object as <partition>/<filename>, where the
// partition is the camera the video came from. The partition doubles as the
// local subdirectory the file is saved under.
type Key struct {
	Partition string
	Filename  string
}

// ParseKey splits a raw item key into its partition and filename components.
// Exactly two non-empty components are required; anything else is rejected
// before any filesystem or network action happens.
func ParseKey(raw string) (Key, error) {
	parts := strings.Split(raw, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Key{}, fmt.Errorf("malformed item key %q: want <partition>/<filename>", raw)
	}
	return Key{Partition: parts[0], Filename: parts[1]}, nil
}

func (k Key) String() string {
	return k.Partition + "/" + k.Filename
}

// LocalPath returns the target path for this key under baseDir.
func (k Key) LocalPath(baseDir string) string {
	return filepath.Join(baseDir, k.Partition, k.Filename)
}

// LocalDir returns the partition directory for this key under baseDir.
func (k Key) LocalDir(baseDir string) string {
	return filepath.Join(baseDir, k.Partition)
}
