// Package fulltext extracts PDF text for full-text screening rounds.
package fulltext

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"litreview/internal/screener"
	"litreview/internal/util"
)

// DefaultMaxChars bounds the text sent with one record.
const DefaultMaxChars = 60000

// Extract returns the sanitized plain text of the PDF at path, cut to
// maxChars runes. A PDF without extractable text yields util.ErrNoExtractableText.
func Extract(path string, maxChars int) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, reader); err != nil {
		return "", fmt.Errorf("read extracted text: %w", err)
	}
	text := util.CollapseWhitespace(util.SanitizeText(buf.String()))
	if text == "" {
		return "", fmt.Errorf("%s: %w", filepath.Base(path), util.ErrNoExtractableText)
	}
	return util.Truncate(text, maxChars), nil
}

// ListPDFs returns the PDFs directly inside dir, sorted by name.
func ListPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read pdf dir: %w", err)
	}
	paths := make([]string, 0)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(e.Name()), ".pdf") {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// Attacher fills Record.FullText from a directory of PDFs named by record
// number, e.g. 12.pdf for No. 12.
type Attacher struct {
	Dir      string
	MaxChars int
	Log      *zap.Logger
	Extract  func(path string, maxChars int) (string, error)
}

func NewAttacher(dir string, maxChars int, log *zap.Logger) *Attacher {
	if log == nil {
		log = zap.NewNop()
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Attacher{Dir: dir, MaxChars: maxChars, Log: log, Extract: Extract}
}

// AttachResult counts how many records received text.
type AttachResult struct {
	Attached []string `json:"attached"`
	Missing  []string `json:"missing,omitempty"`
	Failed   []string `json:"failed,omitempty"`
}

// Attach sets FullText on every record whose PDF exists and yields text.
// Records without a usable PDF keep their abstract.
func (a *Attacher) Attach(records []screener.Record) (AttachResult, error) {
	var res AttachResult
	pdfs, err := ListPDFs(a.Dir)
	if err != nil {
		return res, err
	}
	byStem := make(map[string]string, len(pdfs))
	for _, p := range pdfs {
		byStem[util.Stem(p)] = p
	}
	for i := range records {
		key := strings.TrimSpace(records[i].No)
		path, ok := byStem[key]
		if key == "" || !ok {
			res.Missing = append(res.Missing, key)
			continue
		}
		text, err := a.Extract(path, a.MaxChars)
		if err != nil {
			a.Log.Warn("full text unavailable", zap.String("file", filepath.Base(path)), zap.Error(err))
			res.Failed = append(res.Failed, key)
			continue
		}
		records[i].FullText = text
		res.Attached = append(res.Attached, key)
	}
	a.Log.Info("full text attached",
		zap.Int("attached", len(res.Attached)), zap.Int("missing", len(res.Missing)), zap.Int("failed", len(res.Failed)))
	return res, nil
}
