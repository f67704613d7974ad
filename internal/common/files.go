package common

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"
)

var ErrDigestMismatch = errors.New("content digest mismatch")

// DigestBytes returns the canonical sha256 digest of b.
func DigestBytes(b []byte) digest.Digest {
	return digest.FromBytes(b)
}

// DigestOfFile streams path through the canonical digester.
func DigestOfFile(path string) (digest.Digest, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	d := digest.Canonical.Digester()
	n, err := io.Copy(d.Hash(), f)
	if err != nil {
		return "", 0, err
	}
	return d.Digest(), n, nil
}

// VerifyBytes checks b against want.
func VerifyBytes(b []byte, want digest.Digest) error {
	if err := want.Validate(); err != nil {
		return fmt.Errorf("invalid digest %q: %w", want, err)
	}
	v := want.Verifier()
	if _, err := v.Write(b); err != nil {
		return err
	}
	if !v.Verified() {
		return fmt.Errorf("%w: want %s, got %s", ErrDigestMismatch, want, digest.FromBytes(b))
	}
	return nil
}

// WriteFileAtomic writes data to a temporary file in the target directory,
// syncs it and renames it over path.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
