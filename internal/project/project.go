// Package project derives stable namespace keys from project root paths.
// Every store file for a project lives under its namespace, so two distinct
// roots can never share memory.
package project

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// InvalidRootError reports a root path that cannot serve as an isolation
// scope: it does not exist, does not resolve, or is not a directory.
type InvalidRootError struct {
	Root string
	Err  error
}

func (e *InvalidRootError) Error() string {
	return fmt.Sprintf("invalid project root %q: %v", e.Root, e.Err)
}

func (e *InvalidRootError) Unwrap() error { return e.Err }

// Info is a validated project root and its derived namespace key.
type Info struct {
	// Root is the normalized absolute path, symlinks resolved.
	Root string
	// Namespace is the hex SHA-256 digest of Root. It doubles as the
	// directory name for the project's store files.
	Namespace string
}

// Resolve normalizes root and derives its namespace key. Normalization is
// filepath.Abs followed by symlink resolution; paths compare byte-exact after
// that, with no case folding. The root must exist and be a directory.
func Resolve(root string) (Info, error) {
	if root == "" {
		return Info{}, &InvalidRootError{Root: root, Err: errors.New("empty path")}
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return Info{}, &InvalidRootError{Root: root, Err: err}
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return Info{}, &InvalidRootError{Root: root, Err: err}
	}
	fi, err := os.Stat(resolved)
	if err != nil {
		return Info{}, &InvalidRootError{Root: root, Err: err}
	}
	if !fi.IsDir() {
		return Info{}, &InvalidRootError{Root: root, Err: errors.New("not a directory")}
	}

	sum := sha256.Sum256([]byte(resolved))
	return Info{
		Root:      resolved,
		Namespace: hex.EncodeToString(sum[:]),
	}, nil
}
