package debfile

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"io"
	"testing"
	"time"

	"github.com/blakesmith/ar"
	"github.com/ulikunitz/xz"
)

func addToAr(t *testing.T, w *ar.Writer, name string, body []byte) {
	t.Helper()
	header := &ar.Header{
		Name:    name,
		Size:    int64(len(body)),
		Mode:    0644,
		ModTime: time.Now(),
	}
	if err := w.WriteHeader(header); err != nil {
		t.Fatalf("writing ar header for %s: %v", name, err)
	}
	if _, err := w.Write(body); err != nil {
		t.Fatalf("writing ar body for %s: %v", name, err)
	}
}

// tarball builds a tar stream with the given regular files plus one
// directory and one symlink, which must not be counted.
func tarball(t *testing.T, files []string) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	tw.WriteHeader(&tar.Header{Name: "./usr/", Typeflag: tar.TypeDir, Mode: 0755})
	for _, name := range files {
		content := []byte("payload")
		tw.WriteHeader(&tar.Header{Name: name, Typeflag: tar.TypeReg, Mode: 0644, Size: int64(len(content))})
		tw.Write(content)
	}
	tw.WriteHeader(&tar.Header{Name: "./usr/bin/alias", Typeflag: tar.TypeSymlink, Linkname: "./usr/bin/tool", Mode: 0777})
	tw.Close()
	return buf.Bytes()
}

func gzipped(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	gw.Write(data)
	gw.Close()
	return buf.Bytes()
}

func controlTarGz(t *testing.T, control string) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	tw.WriteHeader(&tar.Header{Name: "./control", Typeflag: tar.TypeReg, Mode: 0644, Size: int64(len(control))})
	tw.Write([]byte(control))
	tw.Close()
	return gzipped(t, buf.Bytes())
}

// mockDeb assembles a minimal .deb with the given control text and data
// tarball member.
func mockDeb(t *testing.T, control string, dataName string, data []byte) io.Reader {
	t.Helper()
	var buf bytes.Buffer
	w := ar.NewWriter(&buf)
	if err := w.WriteGlobalHeader(); err != nil {
		t.Fatal(err)
	}
	addToAr(t, w, "debian-binary", []byte("2.0\n"))
	addToAr(t, w, "control.tar.gz", controlTarGz(t, control))
	addToAr(t, w, dataName, data)
	return &buf
}

func TestRead(t *testing.T) {
	control := "Package: hello\nVersion: 2.10-3\nArchitecture: amd64\n"
	data := gzipped(t, tarball(t, []string{"./usr/bin/hello", "./usr/share/doc/hello/README", "./usr/share/man/hello.1"}))

	info, err := Read(mockDeb(t, control, "data.tar.gz", data))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if info.Name != "hello" || info.Version != "2.10-3" || info.Architecture != "amd64" {
		t.Errorf("metadata mismatch: %+v", info)
	}
	if info.Files != 3 {
		t.Errorf("expected 3 files, got %d", info.Files)
	}
}

func TestRead_XZData(t *testing.T) {
	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	xw.Write(tarball(t, []string{"./usr/bin/tool"}))
	xw.Close()

	info, err := Read(mockDeb(t, "Package: tool\nVersion: 1.0\nArchitecture: all\n", "data.tar.xz", buf.Bytes()))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if info.Files != 1 {
		t.Errorf("expected 1 file, got %d", info.Files)
	}
}

func TestRead_MissingData(t *testing.T) {
	var buf bytes.Buffer
	w := ar.NewWriter(&buf)
	w.WriteGlobalHeader()
	addToAr(t, w, "debian-binary", []byte("2.0\n"))
	addToAr(t, w, "control.tar.gz", controlTarGz(t, "Package: broken\n"))

	if _, err := Read(&buf); err == nil {
		t.Error("expected error for missing data member, got nil")
	}
}

func TestRead_NotAnArchive(t *testing.T) {
	if _, err := Read(bytes.NewReader([]byte("definitely not ar"))); err == nil {
		t.Error("expected error for invalid archive, got nil")
	}
}
