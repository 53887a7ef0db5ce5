package r2client

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// maxCatalogSize caps a decompressed catalog. The real database is a few MB;
// anything near this limit is a corrupt or hostile object.
const maxCatalogSize = 512 << 20

// CompressFile writes a zstd copy of the catalog at srcPath to dstPath.
func CompressFile(srcPath, dstPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("compress: %w", err)
	}
	defer func() { _ = src.Close() }()

	return writeAtomically(dstPath, func(w io.Writer) error {
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			return fmt.Errorf("compress: %w", err)
		}
		if _, err := io.Copy(enc, src); err != nil {
			_ = enc.Close()
			return fmt.Errorf("compress %s: %w", srcPath, err)
		}
		return enc.Close()
	})
}

// DecompressStream writes the zstd stream r to dstPath. dstPath only appears
// once the whole stream has decoded, so a failed download never leaves a
// truncated database for the importer.
func DecompressStream(r io.Reader, dstPath string) error {
	dec, err := zstd.NewReader(r, zstd.WithDecoderMaxMemory(maxCatalogSize))
	if err != nil {
		return fmt.Errorf("decompress: %w", err)
	}
	defer dec.Close()

	return writeAtomically(dstPath, func(w io.Writer) error {
		if _, err := io.Copy(w, dec); err != nil {
			return fmt.Errorf("decompress: %w", err)
		}
		return nil
	})
}

// writeAtomically runs fill against path+".part" and renames it to path on
// success. On any failure the partial file is removed.
func writeAtomically(path string, fill func(io.Writer) error) (err error) {
	part := path + ".part"
	f, err := os.Create(part)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(part)
		}
	}()

	if err = fill(f); err != nil {
		return err
	}
	if err = f.Sync(); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(part, path)
}
