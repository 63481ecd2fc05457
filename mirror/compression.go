package mirror

import (
	"compress/gzip"
	"fmt"
	"io"

	"github.com/ulikunitz/xz"
)

// Compression identifies how an index file on the mirror is compressed.
// The zero value means "unconfigured"; Repo falls back to gzip for it.
// CompressionNone explicitly selects the uncompressed index.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGZIP Compression = "gz"
	CompressionXZ   Compression = "xz"
)

// ParseCompression maps a configuration value to a Compression.
// The empty string parses to the zero value (unconfigured); anything else
// must name a supported compression.
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "":
		return "", nil
	case "gz", ".gz":
		return CompressionGZIP, nil
	case "xz", ".xz":
		return CompressionXZ, nil
	case "none":
		return CompressionNone, nil
	default:
		return "", fmt.Errorf("unknown compression %q", s)
	}
}

func (c Compression) String() string {
	return string(c)
}

// Extension returns the file name suffix for the compression, "" for none.
func (c Compression) Extension() string {
	switch c {
	case CompressionGZIP:
		return ".gz"
	case CompressionXZ:
		return ".xz"
	default:
		return ""
	}
}

// NewReader wraps r with the matching decompressor.
func (c Compression) NewReader(r io.Reader) (io.Reader, error) {
	switch c {
	case CompressionGZIP:
		return gzip.NewReader(r)
	case CompressionXZ:
		return xz.NewReader(r)
	case CompressionNone:
		return r, nil
	default:
		return nil, fmt.Errorf("unknown compression %q", c)
	}
}
