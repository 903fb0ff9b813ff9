package docstore

import (
	"fmt"
	"strings"
)

// Join builds a slash-separated path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// SplitDocPath splits a document path into its collection path and id.
func SplitDocPath(path string) (collection, id string, err error) {
	segs, err := segments(path)
	if err != nil {
		return "", "", err
	}
	if len(segs)%2 != 0 {
		return "", "", fmt.Errorf("not a document path: %q", path)
	}
	return strings.Join(segs[:len(segs)-1], "/"), segs[len(segs)-1], nil
}

// ValidateCollection checks that path names a collection (odd segment count).
func ValidateCollection(path string) error {
	segs, err := segments(path)
	if err != nil {
		return err
	}
	if len(segs)%2 != 1 {
		return fmt.Errorf("not a collection path: %q", path)
	}
	return nil
}

func segments(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("empty path")
	}
	segs := strings.Split(path, "/")
	for _, s := range segs {
		if s == "" {
			return nil, fmt.Errorf("empty segment in path %q", path)
		}
	}
	return segs, nil
}
