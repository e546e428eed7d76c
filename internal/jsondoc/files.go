package jsondoc

import (
	"fmt"
	"os"
	"strings"

	"litreview/internal/util"
)

// File is one parsed JSON-in-text assessment file.
type File struct {
	Path   string
	Stem   string
	Object *Object
}

// Skip records a file that was left out and why.
type Skip struct {
	Path   string
	Reason string
}

// ReadDir parses every *.txt file in dir, in name order, as a JSON object.
// Empty, unreadable and invalid files are returned as skips instead of errors.
func ReadDir(dir string) ([]File, []Skip, error) {
	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		return nil, nil, fmt.Errorf("read %s: %w: not a directory", dir, util.ErrInvalidInput)
	}
	paths, err := util.GlobSorted(dir, "*.txt")
	if err != nil {
		return nil, nil, err
	}
	var (
		files []File
		skips []Skip
	)
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			skips = append(skips, Skip{Path: p, Reason: err.Error()})
			continue
		}
		if strings.TrimSpace(string(b)) == "" {
			skips = append(skips, Skip{Path: p, Reason: "empty file"})
			continue
		}
		obj, err := ParseObject(b)
		if err != nil {
			skips = append(skips, Skip{Path: p, Reason: err.Error()})
			continue
		}
		files = append(files, File{Path: p, Stem: util.Stem(p), Object: obj})
	}
	return files, skips, nil
}
