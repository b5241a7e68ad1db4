// Package archivetest builds synthetic .unitypackage streams for tests.
package archivetest

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
)

// Entry is one tar entry. A Name ending in "/" is written as a directory.
type Entry struct {
	Name     string
	Body     string
	Typeflag byte // defaults to tar.TypeReg (or tar.TypeDir for trailing "/")
	Linkname string
}

// File is a regular-file entry.
func File(name, body string) Entry {
	return Entry{Name: name, Body: body}
}

// Dir is a directory entry.
func Dir(name string) Entry {
	return Entry{Name: name, Typeflag: tar.TypeDir}
}

// Asset returns the entries a well-formed archive holds for one asset.
// Empty payload, meta or preview strings are omitted.
func Asset(id, pathname, payload, meta, preview string) []Entry {
	entries := []Entry{Dir(id + "/"), File(id+"/pathname", pathname)}
	if payload != "" {
		entries = append(entries, File(id+"/asset", payload))
	}
	if meta != "" {
		entries = append(entries, File(id+"/asset.meta", meta))
	}
	if preview != "" {
		entries = append(entries, File(id+"/preview.png", preview))
	}
	return entries
}

// Build encodes entries, in order, as a gzip-compressed tar stream.
func Build(t testing.TB, entries ...Entry) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(zw)

	for _, e := range entries {
		hdr := &tar.Header{
			Name:     e.Name,
			Mode:     0644,
			Typeflag: e.Typeflag,
			Linkname: e.Linkname,
		}
		switch {
		case hdr.Typeflag == tar.TypeDir:
			hdr.Mode = 0755
		case hdr.Typeflag == 0 && len(e.Name) > 0 && e.Name[len(e.Name)-1] == '/':
			hdr.Typeflag = tar.TypeDir
			hdr.Mode = 0755
		case hdr.Typeflag == 0:
			hdr.Typeflag = tar.TypeReg
		}
		if hdr.Typeflag == tar.TypeReg {
			hdr.Size = int64(len(e.Body))
		}

		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("WriteHeader(%q): %v", e.Name, err)
		}
		if hdr.Size > 0 {
			if _, err := tw.Write([]byte(e.Body)); err != nil {
				t.Fatalf("Write(%q): %v", e.Name, err)
			}
		}
	}

	if err := tw.Close(); err != nil {
		t.Fatalf("tar Close: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip Close: %v", err)
	}
	return buf.Bytes()
}

// WriteFile builds an archive and writes it to dir/name, returning the path.
func WriteFile(t testing.TB, dir, name string, entries ...Entry) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, Build(t, entries...), 0644); err != nil {
		t.Fatalf("WriteFile(%q): %v", path, err)
	}
	return path
}

// Concat flattens entry groups into one slice.
func Concat(groups ...[]Entry) []Entry {
	var out []Entry
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
