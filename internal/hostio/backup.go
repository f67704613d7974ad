package hostio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/opencontainers/go-digest"

	"example.com/logopack/internal/common"
)

const compressedExt = ".zst"

// BackupName returns the backup file name used for src.
func BackupName(src string, compress bool) string {
	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	if compress {
		return base + "_backup" + compressedExt
	}
	return base + "_backup" + filepath.Ext(src)
}

// Backup copies src into dir, zstd compressed when compress is set. The
// returned digest is that of the uncompressed source.
func Backup(src, dir string, compress bool) (string, digest.Digest, error) {
	if dir == "" {
		dir = filepath.Dir(src)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", err
	}
	in, err := os.Open(src)
	if err != nil {
		return "", "", err
	}
	defer in.Close()

	dst := filepath.Join(dir, BackupName(src, compress))
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return "", "", err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	d := digest.Canonical.Digester()
	r := io.TeeReader(in, d.Hash())
	if compress {
		enc, err := zstd.NewWriter(tmp, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			tmp.Close()
			return "", "", err
		}
		if _, err := io.Copy(enc, r); err != nil {
			enc.Close()
			tmp.Close()
			return "", "", fmt.Errorf("compress %s: %w", src, err)
		}
		if err := enc.Close(); err != nil {
			tmp.Close()
			return "", "", err
		}
	} else if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", "", err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", "", err
	}
	if err := tmp.Close(); err != nil {
		return "", "", err
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return "", "", err
	}
	common.Logf("backup of %s written to %s", src, dst)
	return dst, d.Digest(), nil
}

// ReadBackup returns the original bytes held in a backup file.
func ReadBackup(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if !strings.EqualFold(filepath.Ext(path), compressedExt) {
		return io.ReadAll(f)
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	data, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", path, err)
	}
	return data, nil
}

// Restore writes the contents of backup to dst. A non-empty want digest is
// checked before anything is written.
func Restore(backup, dst string, want digest.Digest) error {
	data, err := ReadBackup(backup)
	if err != nil {
		return err
	}
	if want != "" {
		if err := common.VerifyBytes(data, want); err != nil {
			return fmt.Errorf("backup %s: %w", backup, err)
		}
	}
	return common.WriteFileAtomic(dst, data, 0o644)
}
