package export

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
)

const (
	ExportEntryName    = "export.bin"
	SignatureEntryName = "export.sig"
)

// Zip packs the batch into the archive format devices download.
func (b *Batch) Zip() ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	for _, e := range []struct {
		name string
		data []byte
	}{
		{ExportEntryName, b.Export},
		{SignatureEntryName, b.Signature},
	} {
		f, err := w.CreateHeader(&zip.FileHeader{Name: e.name, Method: zip.Deflate})
		if err != nil {
			return nil, fmt.Errorf("zip %s: %w", e.name, err)
		}
		if _, err := f.Write(e.data); err != nil {
			return nil, fmt.Errorf("zip %s: %w", e.name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("zip close: %w", err)
	}
	return buf.Bytes(), nil
}

// Unzip returns the export.bin and export.sig entries of an archive.
func Unzip(data []byte) (bin, sig []byte, err error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, fmt.Errorf("open zip: %w", err)
	}

	for _, f := range r.File {
		var dst *[]byte
		switch f.Name {
		case ExportEntryName:
			dst = &bin
		case SignatureEntryName:
			dst = &sig
		default:
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		*dst, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
	}

	if bin == nil || sig == nil {
		return nil, nil, fmt.Errorf("archive must contain %s and %s", ExportEntryName, SignatureEntryName)
	}
	return bin, sig, nil
}
