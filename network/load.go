package network

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrUnloadable is returned when a path does not resolve to a network in a known format.
var ErrUnloadable = errors.New("path does not resolve to a loadable network")

// Open imports a network from path and validates it.
// Directories are read as PyPSA CSV folders; .yaml and .yml files as YAML documents.
func Open(path string) (*Network, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnloadable, err)
	}

	var n *Network
	switch {
	case info.IsDir():
		n, err = ImportCSVFolder(path)
	case isYAML(path):
		n, err = LoadYAML(path)
	default:
		return nil, fmt.Errorf("%w: %s (expected a CSV folder or a .yaml file)", ErrUnloadable, path)
	}
	if err != nil {
		return nil, err
	}
	if err := n.Validate(); err != nil {
		return nil, fmt.Errorf("invalid network %s: %w", path, err)
	}
	logrus.Debugf("Loaded network %s", n.Summary())
	return n, nil
}

// Save writes n in the format implied by path (see Open).
func (n *Network) Save(path string) error {
	if isYAML(path) {
		return n.WriteYAML(path)
	}
	return n.ExportCSVFolder(path)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func nameFromPath(path string) string {
	base := filepath.Base(filepath.Clean(path))
	return strings.TrimSuffix(base, filepath.Ext(base))
}
