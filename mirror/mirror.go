// Package mirror retrieves index files from a Debian package mirror.
//
// It knows the standard archive layout (dists/<suite>/<component>/...),
// decompresses index streams transparently, and can authenticate downloads
// against the suite's signed InRelease file.
//
// Reference: https://wiki.debian.org/DebianRepository/Format
package mirror

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"net/http"

	"github.com/dustin/go-humanize"
)

// DefaultURL is the mirror used when none is configured.
const DefaultURL = "http://ftp.uk.debian.org/debian"

// ErrNotFound reports that the mirror has no file at the requested path,
// typically because the architecture is not served for the suite.
var ErrNotFound = errors.New("not found on mirror")

// Repo identifies a location inside a Debian mirror.
// The zero value targets DefaultURL, suite "stable", component "main",
// gzip-compressed indices.
type Repo struct {
	URL         string
	Suite       string
	Component   string
	Compression Compression
	// Progress, when set, receives download progress lines (one mirror
	// round trip at a time, so plain writes are fine).
	Progress io.Writer
}

func (r Repo) baseURL() string {
	u := r.URL
	if u == "" {
		u = DefaultURL
	}
	for len(u) > 0 && u[len(u)-1] == '/' {
		u = u[:len(u)-1]
	}
	return u + "/"
}

func (r Repo) suite() string {
	if r.Suite == "" {
		return "stable"
	}
	return r.Suite
}

func (r Repo) component() string {
	if r.Component == "" {
		return "main"
	}
	return r.Component
}

func (r Repo) compression() Compression {
	if r.Compression == "" {
		return CompressionGZIP
	}
	return r.Compression
}

// contentsEntry is the path of the Contents index relative to the suite
// directory, as listed in the Release checksum sections.
func (r Repo) contentsEntry(arch string) string {
	return fmt.Sprintf("%s/Contents-%s%s", r.component(), arch, r.compression().Extension())
}

// Contents fetches the Contents index for arch and returns it as a
// decompressed stream. The caller must drain and Close the download;
// Verify may then be used to authenticate it against a Release file.
//
// A missing index reports ErrNotFound. There are no retries and no
// fallback to other compressions.
func (r Repo) Contents(arch string) (*Download, error) {
	url := r.baseURL() + fmt.Sprintf("dists/%s/%s", r.suite(), r.contentsEntry(arch))

	resp, err := http.Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, fmt.Errorf("%s: %w", url, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetching %s: status %d", url, resp.StatusCode)
	}

	if r.Progress != nil {
		fmt.Fprintf(r.Progress, "Fetching %s...\n", url)
	}

	cr := &countingReader{
		r:     resp.Body,
		sum:   sha256.New(),
		total: resp.ContentLength,
		out:   r.Progress,
	}
	dec, err := r.compression().NewReader(cr)
	if err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("decompressing %s: %w", url, err)
	}

	return &Download{
		Reader: dec,
		body:   resp.Body,
		count:  cr,
		entry:  r.contentsEntry(arch),
	}, nil
}

// Architectures lists the architectures the mirror serves for the suite,
// read from the Release file.
func (r Repo) Architectures() ([]string, error) {
	rel, err := r.ReleaseFile()
	if err != nil {
		return nil, err
	}
	return rel.Architectures, nil
}

// Download is a decompressed index stream. It keeps the size and SHA256 of
// the compressed bytes as they pass through, so the download can be checked
// against a Release file once fully consumed.
type Download struct {
	io.Reader
	body  io.Closer
	count *countingReader
	entry string
}

// Close releases the underlying HTTP body.
func (d *Download) Close() error {
	if d.count.out != nil {
		fmt.Fprintf(d.count.out, "Downloaded %s\n", humanize.Bytes(uint64(d.count.n)))
	}
	return d.body.Close()
}

// Verify checks the compressed byte count and SHA256 of the download against
// the Release checksum list. The stream must have been read to EOF first.
func (d *Download) Verify(rel *Release) error {
	want, ok := rel.File(d.entry)
	if !ok {
		return fmt.Errorf("%s: no SHA256 entry in Release", d.entry)
	}
	if want.Size != d.count.n {
		return fmt.Errorf("%s: size mismatch: got %d, Release says %d", d.entry, d.count.n, want.Size)
	}
	got := hex.EncodeToString(d.count.sum.Sum(nil))
	if got != want.SHA256 {
		return fmt.Errorf("%s: SHA256 mismatch: got %s, Release says %s", d.entry, got, want.SHA256)
	}
	return nil
}

// progressStep is how many bytes pass between progress reports.
const progressStep = 4 << 20

// countingReader wraps an io.Reader, counting and hashing the bytes read.
// When out is set it also reports download progress.
type countingReader struct {
	r     io.Reader
	sum   hash.Hash
	n     int64
	total int64 // Content-Length, negative when unknown
	out   io.Writer
	last  int64
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.sum.Write(p[:n])
		cr.n += int64(n)
		if cr.out != nil && cr.n-cr.last >= progressStep {
			cr.last = cr.n
			if cr.total > 0 {
				fmt.Fprintf(cr.out, "  %s of %s\r", humanize.Bytes(uint64(cr.n)), humanize.Bytes(uint64(cr.total)))
			} else {
				fmt.Fprintf(cr.out, "  %s\r", humanize.Bytes(uint64(cr.n)))
			}
		}
	}
	return n, err
}
