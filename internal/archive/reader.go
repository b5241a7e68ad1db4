package archive

import (
	"archive/tar"
	"bufio"
	"context"
	stderrors "errors"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/gzip"

	"github.com/hpungsan/upkg/internal/errors"
)

// Warning reasons.
const (
	ReasonBadIdentifier = "entry path does not start with an asset identifier"
	ReasonUnknownKind   = "unknown data kind"
	ReasonNotRegular    = "entry is not a regular file"
	ReasonReadFailed    = "cannot read entry"
	ReasonInvalidText   = "entry is not valid UTF-8 text"
)

// ReadFile opens an archive on disk and reads it with Read.
// Open failures are reported as OPEN_FAILED.
func ReadFile(ctx context.Context, path string) (*Contents, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewOpenFailed(path, err)
	}
	defer f.Close()

	return Read(ctx, bufio.NewReaderSize(f, 64<<10))
}

// Read decompresses a gzip tar stream and groups its entries by identifier.
//
// The stream is consumed in order and fully drained before returning; no
// ordering among the entries of one asset is assumed. Problems confined to a
// single entry are recorded in Contents.Warnings and the entry is skipped.
// A bad gzip header, a tar structure error, or cancellation aborts the read.
func Read(ctx context.Context, r io.Reader) (*Contents, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, errors.NewDecompressFailed(err)
	}
	defer zr.Close()

	contents := newContents()
	tr := tar.NewReader(zr)
	for {
		if ctx.Err() != nil {
			return nil, errors.NewCancelled("archive read")
		}

		hdr, err := tr.Next()
		if stderrors.Is(err, io.EOF) {
			break
		}
		// An insecure name is still a readable entry; classification skips it.
		if err != nil && !stderrors.Is(err, tar.ErrInsecurePath) {
			return nil, errors.NewArchiveCorrupt(err)
		}

		contents.Entries++
		contents.addEntry(hdr, tr)
	}

	return contents, nil
}

// addEntry classifies one tar entry and stores its content on the owning asset.
func (c *Contents) addEntry(hdr *tar.Header, r io.Reader) {
	parts := splitEntryName(hdr.Name)
	if !isPlainName(parts[0]) {
		c.warn(hdr.Name, "", ReasonBadIdentifier, nil)
		return
	}
	id := parts[0]

	// "<id>" or "<id>/" marks the asset's directory and carries no data.
	if len(parts) < 2 || !isPlainName(parts[1]) || hdr.Typeflag == tar.TypeDir {
		return
	}

	kind := Kind(parts[1])
	if !kind.Known() {
		c.warn(hdr.Name, id, ReasonUnknownKind, nil)
		return
	}
	if !hdr.FileInfo().Mode().IsRegular() {
		c.warn(hdr.Name, id, ReasonNotRegular, nil)
		return
	}

	data, err := io.ReadAll(r)
	if err != nil {
		c.warn(hdr.Name, id, ReasonReadFailed, err)
		return
	}

	switch kind {
	case KindAsset:
		c.asset(id).Payload = data
	case KindPreview:
		c.asset(id).Preview = data
	case KindMeta:
		if !utf8.Valid(data) {
			c.warn(hdr.Name, id, ReasonInvalidText, nil)
			return
		}
		meta := string(data)
		c.asset(id).Meta = &meta
	case KindPathname:
		if !utf8.Valid(data) {
			c.warn(hdr.Name, id, ReasonInvalidText, nil)
			return
		}
		pathname := firstLine(string(data))
		c.asset(id).Pathname = &pathname
	}
}

// firstLine returns s up to the first newline, without a trailing carriage
// return. Some exporters append a "\n00" marker line after the path.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSuffix(s, "\r")
}
