package mirror

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/clearsign"
)

// ReleaseField represents a standard field in a Debian Release file.
type ReleaseField string

const (
	RelOrigin        ReleaseField = "Origin"
	RelLabel         ReleaseField = "Label"
	RelSuite         ReleaseField = "Suite"
	RelVersion       ReleaseField = "Version"
	RelCodename      ReleaseField = "Codename"
	RelDate          ReleaseField = "Date"
	RelArchitectures ReleaseField = "Architectures"
	RelComponents    ReleaseField = "Components"
	RelDescription   ReleaseField = "Description"
	RelSHA256        ReleaseField = "SHA256"
)

// FileEntry is one row of the Release SHA256 checksum list.
type FileEntry struct {
	Size   int64
	SHA256 string
}

// Release holds the parsed metadata of a suite Release file.
//
// Reference: https://wiki.debian.org/DebianRepository/Format#A.22Release.22_files
type Release struct {
	Origin        string
	Label         string
	Suite         string
	Version       string
	Codename      string
	Date          string
	Architectures []string
	Components    []string
	Description   string

	files map[string]FileEntry
}

// File looks up the checksum entry for a path relative to the suite
// directory (e.g. "main/Contents-amd64.gz").
func (rel *Release) File(path string) (FileEntry, bool) {
	e, ok := rel.files[path]
	return e, ok
}

// parseRelease parses the content of a Release file.
// Checksum sections other than SHA256 (MD5Sum, SHA1) are ignored.
func parseRelease(content string) (*Release, error) {
	rel := &Release{files: make(map[string]FileEntry)}

	inSHA256 := false
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, " ") {
			if !inSHA256 {
				continue
			}
			// " <hash> <size> <path>"
			fields := strings.Fields(line)
			if len(fields) != 3 {
				continue
			}
			size, err := strconv.ParseInt(fields[1], 10, 64)
			if err != nil {
				continue
			}
			rel.files[fields[2]] = FileEntry{Size: size, SHA256: fields[0]}
			continue
		}

		inSHA256 = false
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])

		switch ReleaseField(key) {
		case RelOrigin:
			rel.Origin = val
		case RelLabel:
			rel.Label = val
		case RelSuite:
			rel.Suite = val
		case RelVersion:
			rel.Version = val
		case RelCodename:
			rel.Codename = val
		case RelDate:
			rel.Date = val
		case RelArchitectures:
			rel.Architectures = strings.Fields(val)
		case RelComponents:
			rel.Components = strings.Fields(val)
		case RelDescription:
			rel.Description = val
		case RelSHA256:
			inSHA256 = true
		}
	}

	if len(rel.Architectures) == 0 && len(rel.files) == 0 {
		return nil, fmt.Errorf("not a Release file")
	}
	return rel, nil
}

// ReleaseFile fetches and parses the suite's unsigned Release file.
func (r Repo) ReleaseFile() (*Release, error) {
	url := r.baseURL() + fmt.Sprintf("dists/%s/Release", r.suite())
	data, err := fetchAll(url)
	if err != nil {
		return nil, err
	}
	rel, err := parseRelease(string(data))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", url, err)
	}
	return rel, nil
}

// VerifiedRelease fetches the suite's InRelease file, checks its clearsign
// signature against the ASCII-armored keyring, and parses the signed body.
// Any signature problem is fatal: the Release content is never returned
// unverified.
func (r Repo) VerifiedRelease(keyring string) (*Release, error) {
	url := r.baseURL() + fmt.Sprintf("dists/%s/InRelease", r.suite())
	data, err := fetchAll(url)
	if err != nil {
		return nil, err
	}

	block, _ := clearsign.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%s: no clearsigned message found", url)
	}

	ring, err := openpgp.ReadArmoredKeyRing(strings.NewReader(keyring))
	if err != nil {
		return nil, fmt.Errorf("reading keyring: %w", err)
	}
	if _, err := openpgp.CheckDetachedSignature(ring, bytes.NewReader(block.Bytes), block.ArmoredSignature.Body, nil); err != nil {
		return nil, fmt.Errorf("verifying %s: %w", url, err)
	}

	rel, err := parseRelease(string(block.Plaintext))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", url, err)
	}
	return rel, nil
}

// fetchAll retrieves a small metadata file in full.
func fetchAll(url string) ([]byte, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", url, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	return data, nil
}
