package contents

import (
	"bufio"
	"io"
	"sort"
	"strings"
	"unicode"
)

// Entry is one parsed line of a Contents index: a file path and the list of
// package identifiers providing it. Identifiers may be qualified with an
// archive area (e.g. "admin/foo") or bare.
type Entry struct {
	Path     string
	Packages []string
}

// ParseLine splits a Contents line into its file path and package list.
// The package column is the last whitespace-separated field; the path is
// everything before it, so paths containing spaces survive intact.
//
// It reports ok=false for lines that carry no data: blank lines, lines with
// no separator, lines with an empty package column, and the FILE/LOCATION
// header that terminates the free-text preamble of older Contents files.
func ParseLine(line string) (Entry, bool) {
	line = strings.TrimSpace(line)
	sep := strings.LastIndexFunc(line, unicode.IsSpace)
	if sep < 0 {
		return Entry{}, false
	}

	path := strings.TrimSpace(line[:sep])
	field := strings.TrimSpace(line[sep+1:])
	if path == "" || field == "" {
		return Entry{}, false
	}
	if path == "FILE" && field == "LOCATION" {
		return Entry{}, false
	}

	var pkgs []string
	for _, p := range strings.Split(field, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			pkgs = append(pkgs, p)
		}
	}
	if len(pkgs) == 0 {
		return Entry{}, false
	}

	return Entry{Path: path, Packages: pkgs}, true
}

// PackageCount pairs a package identifier with the number of file paths it
// provides.
type PackageCount struct {
	Package string
	Files   int
}

// Tally accumulates per-package file counts while streaming a Contents index.
// It remembers the order in which packages first appeared so that ranking
// ties break deterministically.
type Tally struct {
	counts map[string]int
	first  map[string]int // package -> first-seen sequence number
}

func NewTally() *Tally {
	return &Tally{
		counts: make(map[string]int),
		first:  make(map[string]int),
	}
}

// Add counts one entry. Each package listed on the line is credited with one
// file path; a package repeated within a single line still counts once.
func (t *Tally) Add(e Entry) {
	for i, pkg := range e.Packages {
		counted := false
		for _, prev := range e.Packages[:i] {
			if prev == pkg {
				counted = true
				break
			}
		}
		if counted {
			continue
		}
		if _, seen := t.first[pkg]; !seen {
			t.first[pkg] = len(t.first)
		}
		t.counts[pkg]++
	}
}

// Len returns the number of distinct packages tallied so far.
func (t *Tally) Len() int {
	return len(t.counts)
}

// Top returns up to n packages ranked by file count, highest first.
// Packages with equal counts keep their first-seen order.
// A negative n returns the full ranking.
func (t *Tally) Top(n int) []PackageCount {
	ranked := make([]PackageCount, 0, len(t.counts))
	for pkg, count := range t.counts {
		ranked = append(ranked, PackageCount{Package: pkg, Files: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Files != ranked[j].Files {
			return ranked[i].Files > ranked[j].Files
		}
		return t.first[ranked[i].Package] < t.first[ranked[j].Package]
	})
	if n >= 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// Aggregate streams a decompressed Contents index from r and returns the top
// n packages by file count. Malformed lines are skipped. An empty stream
// yields an empty result, not an error; the only error reported is a read
// failure on r.
func Aggregate(r io.Reader, n int) ([]PackageCount, error) {
	tally := NewTally()

	scanner := bufio.NewScanner(r)
	// Increase buffer for long lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		if e, ok := ParseLine(scanner.Text()); ok {
			tally.Add(e)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return tally.Top(n), nil
}
