package util

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGlobSortedOrdersByName(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"R1_analysis_batch_010.csv", "R1_analysis_batch_002.csv", "R2_analysis_batch_001.csv"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	got, err := GlobSorted(dir, "R1_analysis_batch_*.csv")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || filepath.Base(got[0]) != "R1_analysis_batch_002.csv" {
		t.Fatalf("unexpected matches: %v", got)
	}
}

func TestStem(t *testing.T) {
	if got := Stem("/tmp/qa/17.txt"); got != "17" {
		t.Fatalf("unexpected stem %q", got)
	}
}

func TestWriteTextAtomicReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.txt")
	if err := WriteTextAtomic(path, "first"); err != nil {
		t.Fatal(err)
	}
	if err := WriteTextAtomic(path, "second"); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "second" {
		t.Fatalf("unexpected content %q", string(b))
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %d entries", len(entries))
	}
}
