// Package debfile inspects local .deb archives.
//
// A .deb is an ar archive with three members: debian-binary, a control
// tarball and a data tarball. This package extracts the control metadata and
// counts the files the package ships, without unpacking anything to disk.
//
// Reference: https://manpages.debian.org/deb.5
package debfile

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/blakesmith/ar"
	"github.com/ulikunitz/xz"
)

// ControlField represents a standard field in a Debian control file.
type ControlField string

const (
	FieldPackage      ControlField = "Package"
	FieldVersion      ControlField = "Version"
	FieldArchitecture ControlField = "Architecture"
)

// Info describes a local package file.
type Info struct {
	Name         string
	Version      string
	Architecture string
	// Files is the number of regular files in the package payload.
	Files int
}

// Read parses a .deb stream and returns its metadata and payload file count.
func Read(r io.Reader) (*Info, error) {
	arR := ar.NewReader(r)
	info := &Info{}

	var haveControl, haveData bool
	for {
		header, err := arR.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading archive: %w", err)
		}

		// Some ar writers terminate member names with a slash.
		name := strings.TrimSuffix(strings.TrimSpace(header.Name), "/")
		switch {
		case strings.HasPrefix(name, "control.tar"):
			control, err := extractControl(arR, name)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", name, err)
			}
			info.Name, info.Version, info.Architecture = parseControlFields(control)
			haveControl = true
		case strings.HasPrefix(name, "data.tar"):
			n, err := countFiles(arR, name)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", name, err)
			}
			info.Files = n
			haveData = true
		}
	}

	if !haveControl {
		return nil, fmt.Errorf("not a debian package: control member missing")
	}
	if !haveData {
		return nil, fmt.Errorf("not a debian package: data member missing")
	}
	return info, nil
}

// memberReader wraps an archive member with the decompressor matching its
// file name suffix.
func memberReader(r io.Reader, name string) (io.Reader, error) {
	switch {
	case strings.HasSuffix(name, ".gz"):
		return gzip.NewReader(r)
	case strings.HasSuffix(name, ".xz"):
		return xz.NewReader(r)
	case strings.HasSuffix(name, ".tar"):
		return r, nil
	}
	return nil, fmt.Errorf("unsupported compression: %s", name)
}

// extractControl locates the 'control' file inside the control tarball and
// returns its content.
func extractControl(r io.Reader, name string) (string, error) {
	dec, err := memberReader(r, name)
	if err != nil {
		return "", err
	}
	tr := tar.NewReader(dec)
	for {
		th, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		if filepath.Base(th.Name) == "control" {
			var buf bytes.Buffer
			if _, err := io.Copy(&buf, tr); err != nil {
				return "", err
			}
			return buf.String(), nil
		}
	}
	return "", fmt.Errorf("control file not found")
}

// countFiles counts the regular files in the data tarball.
func countFiles(r io.Reader, name string) (int, error) {
	dec, err := memberReader(r, name)
	if err != nil {
		return 0, err
	}
	tr := tar.NewReader(dec)
	n := 0
	for {
		th, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
		if th.Typeflag == tar.TypeReg {
			n++
		}
	}
	return n, nil
}

// parseControlFields parses the raw text of a Debian control file to extract
// the Package name, Version, and Architecture fields.
func parseControlFields(control string) (string, string, string) {
	var p, v, a string
	for _, line := range strings.Split(control, "\n") {
		if strings.HasPrefix(line, string(FieldPackage)+": ") {
			p = strings.TrimSpace(strings.TrimPrefix(line, string(FieldPackage)+": "))
		} else if strings.HasPrefix(line, string(FieldVersion)+": ") {
			v = strings.TrimSpace(strings.TrimPrefix(line, string(FieldVersion)+": "))
		} else if strings.HasPrefix(line, string(FieldArchitecture)+": ") {
			a = strings.TrimSpace(strings.TrimPrefix(line, string(FieldArchitecture)+": "))
		}
	}
	return p, v, a
}
