package importer

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"
)

// openExport opens an export file for reading, transparently decompressing
// gzip-wrapped exports. The caller closes the returned reader.
func openExport(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("decompressing %s: %w", path, err)
	}
	return &gzipFile{gz: gz, f: f}, nil
}

// gzipFile closes both the gzip stream and the underlying file.
type gzipFile struct {
	gz *gzip.Reader
	f  *os.File
}

func (g *gzipFile) Read(p []byte) (int, error) { return g.gz.Read(p) }

func (g *gzipFile) Close() error {
	gzErr := g.gz.Close()
	if err := g.f.Close(); err != nil {
		return err
	}
	return gzErr
}

// isExportFile reports whether a directory entry looks like a ride export.
func isExportFile(name string) bool {
	return strings.HasSuffix(name, ".csv") || strings.HasSuffix(name, ".csv.gz")
}
