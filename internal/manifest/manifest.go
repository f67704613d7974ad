// Package manifest records the digests of the artifacts produced by a run.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/opencontainers/go-digest"

	"example.com/logopack/internal/common"
)

type Item struct {
	Path   string        `json:"path"`
	Size   int64         `json:"size"`
	Digest digest.Digest `json:"digest"`
	Type   string        `json:"type"`
}

type Manifest struct {
	CreatedAt time.Time  `json:"createdAt"`
	Algorithm string     `json:"algorithm"`
	Items     []Item     `json:"items"`
	Signature *Signature `json:"signature,omitempty"`
}

type Signature struct {
	Type          string `json:"type"`
	CertSubject   string `json:"certSubject,omitempty"`
	Issuer        string `json:"issuer,omitempty"`
	SignatureFile string `json:"signatureFile,omitempty"`
}

// Build digests every path in order.
func Build(paths []string) (Manifest, error) {
	m := Manifest{CreatedAt: time.Now().UTC(), Algorithm: string(digest.Canonical)}
	for _, p := range paths {
		d, sz, err := common.DigestOfFile(p)
		if err != nil {
			return m, err
		}
		m.Items = append(m.Items, Item{Path: p, Size: sz, Digest: d, Type: kindOf(p)})
	}
	return m, nil
}

func kindOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".bin", ".rom", ".cap", ".fd":
		return "dump"
	case ".zst":
		return "backup"
	case ".json":
		return "json"
	case ".jsonl":
		return "audit"
	case ".pdf":
		return "pdf"
	case ".png", ".jpg", ".jpeg", ".bmp", ".ico":
		return "image"
	}
	return "other"
}

// Check re-digests every item and returns the first mismatch.
func Check(m Manifest) error {
	for _, it := range m.Items {
		d, _, err := common.DigestOfFile(it.Path)
		if err != nil {
			return err
		}
		if d != it.Digest {
			return fmt.Errorf("%s: %w: want %s, got %s", it.Path, common.ErrDigestMismatch, it.Digest, d)
		}
	}
	return nil
}

func Save(m Manifest, out string) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return common.WriteFileAtomic(out, b, 0o644)
}

func Load(path string) (Manifest, error) {
	var m Manifest
	b, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	err = json.Unmarshal(b, &m)
	return m, err
}
