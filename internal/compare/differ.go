// Package compare diffs the run logs of two experiments to expose
// configuration or host drift between them.
package compare

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"tracebench/internal/metadata"
	"tracebench/internal/version"
)

// ErrDrift is returned by callers that treat differing run logs as a failure.
var ErrDrift = errors.New("run logs differ")

// Differ prints line-oriented differences between two run logs.
type Differ struct {
	out io.Writer
}

// NewDiffer creates a differ writing to out.
func NewDiffer(out io.Writer) *Differ {
	return &Differ{out: out}
}

// Files compares the logs at pathA and pathB. It reports whether they are
// identical, ignoring trailing newlines.
func (d *Differ) Files(pathA, pathB string) (bool, error) {
	a, err := os.ReadFile(pathA)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", pathA, err)
	}
	b, err := os.ReadFile(pathB)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", pathB, err)
	}

	fmt.Fprintf(d.out, "--- %s\n+++ %s\n", pathA, pathB)
	same := d.Text(string(a), string(b))
	if !same {
		d.noteToolVersions(pathA, pathB)
	}
	return same, nil
}

// noteToolVersions points out when the two runs were recorded by different
// tracebench releases. Logs that do not parse are skipped silently.
func (d *Differ) noteToolVersions(pathA, pathB string) {
	va, okA := toolVersion(pathA)
	vb, okB := toolVersion(pathB)
	if !okA || !okB {
		return
	}
	order, err := version.CompareVersions(va, vb)
	if err != nil || order == 0 {
		return
	}
	relation := "older"
	if order > 0 {
		relation = "newer"
	}
	fmt.Fprintf(d.out, "note: %s was recorded by tracebench %s, %s than %s in %s\n", pathA, va, relation, vb, pathB)
}

func toolVersion(path string) (string, bool) {
	s, err := metadata.ReadSnapshot(path)
	if err != nil {
		return "", false
	}
	v, ok := strings.CutPrefix(s.Tool, "tracebench ")
	return v, ok && v != ""
}

// Text prints the changed lines between a and b and reports whether they match.
func (d *Differ) Text(a, b string) bool {
	a = strings.TrimRight(a, "\n")
	b = strings.TrimRight(b, "\n")
	if a == b {
		fmt.Fprintln(d.out, "No differences found")
		return true
	}

	dmp := diffmatchpatch.New()
	chars1, chars2, lines := dmp.DiffLinesToChars(a+"\n", b+"\n")
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(chars1, chars2, false), lines)

	for _, diff := range diffs {
		var prefix string
		switch diff.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		default:
			continue
		}
		for _, line := range strings.Split(strings.TrimSuffix(diff.Text, "\n"), "\n") {
			fmt.Fprintf(d.out, "%s %s\n", prefix, line)
		}
	}
	return false
}
