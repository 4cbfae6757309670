package kb

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/klauspost/compress/zip"

	"cqa-workers/internal/common/errors"
	"cqa-workers/internal/common/logger"
)

// ReadArchive returns the contents of the table file inside a zip archive. The file is matched
// by base name so archives that nest it in a folder are accepted.
func ReadArchive(archive []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, errors.NewFormatError(fmt.Sprintf("archive is not a zip file: %v", err))
	}

	for _, f := range zr.File {
		if f.FileInfo().IsDir() || path.Base(f.Name) != TableFileName {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, errors.NewFormatError(fmt.Sprintf("open %s: %v", f.Name, err))
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, errors.NewFormatError(fmt.Sprintf("read %s: %v", f.Name, err))
		}
		return data, nil
	}

	return nil, errors.NewFormatError(TableFileName + " not found in archive")
}

// WriteArchive packs table into a zip archive under TableFileName.
func WriteArchive(table []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     TableFileName,
		Method:   zip.Deflate,
		Modified: time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", TableFileName, err)
	}
	if _, err := w.Write(table); err != nil {
		return nil, fmt.Errorf("write %s: %w", TableFileName, err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}

	return buf.Bytes(), nil
}

// Decode reads the records of a downloaded archive.
func Decode(archive []byte, log logger.Logger) ([]*Record, error) {
	table, err := ReadArchive(archive)
	if err != nil {
		return nil, err
	}
	return DecodeTable(table, log)
}

// Encode builds an upload archive from records.
func Encode(records []*Record, log logger.Logger) ([]byte, error) {
	return WriteArchive(EncodeTable(records, log))
}
