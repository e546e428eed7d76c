package fulltext

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"litreview/internal/screener"
	"litreview/internal/util"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o644))
}

func TestListPDFs(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "2.pdf"))
	touch(t, filepath.Join(dir, "10.PDF"))
	touch(t, filepath.Join(dir, "notes.txt"))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.pdf"), 0o755))

	paths, err := ListPDFs(dir)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "10.PDF"), filepath.Join(dir, "2.pdf")}, paths)

	_, err = ListPDFs(filepath.Join(dir, "missing"))
	require.Error(t, err)
}

func TestExtractRejectsInvalidPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(path, []byte("not a pdf"), 0o644))
	_, err := Extract(path, 100)
	require.Error(t, err)
}

func TestAttach(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "1.pdf"))
	touch(t, filepath.Join(dir, "3.pdf"))

	a := NewAttacher(dir, 10, nil)
	a.Extract = func(path string, maxChars int) (string, error) {
		if util.Stem(path) == "3" {
			return "", util.ErrNoExtractableText
		}
		require.Equal(t, 10, maxChars)
		return "body of " + util.Stem(path), nil
	}
	records := []screener.Record{
		{No: "1", Title: "A", Abstract: "a"},
		{No: "2", Title: "B", Abstract: "b"},
		{No: "3", Title: "C", Abstract: "c"},
	}
	res, err := a.Attach(records)
	require.NoError(t, err)
	require.Equal(t, []string{"1"}, res.Attached)
	require.Equal(t, []string{"2"}, res.Missing)
	require.Equal(t, []string{"3"}, res.Failed)
	require.Equal(t, "body of 1", records[0].FullText)
	require.Empty(t, records[1].FullText)
	require.Equal(t, "Title: A\n\nFull text: body of 1", screener.BuildPrompt(records[0]))
}

func TestAttachMissingDir(t *testing.T) {
	_, err := NewAttacher(filepath.Join(t.TempDir(), "none"), 0, nil).Attach(nil)
	require.Error(t, err)
	require.False(t, errors.Is(err, util.ErrNoExtractableText))
}

func TestSystemPromptMentionsFullText(t *testing.T) {
	require.Contains(t, SystemPrompt, "Article Title and Full Text")
	require.NotContains(t, SystemPrompt, "based solely on the title and abstract")
}
