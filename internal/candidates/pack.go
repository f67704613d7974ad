package candidates

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"

	"example.com/logopack/internal/common"
	"example.com/logopack/internal/imgsniff"
	"example.com/logopack/internal/packer"
)

// ErrSourceMismatch reports an extraction directory recorded for another dump.
var ErrSourceMismatch = errors.New("extraction belongs to a different dump")

// Layout turns st back into containers. Entries carry the stored header
// bytes and declared sizes but no payloads.
func (st Structure) Layout() ([]packer.Container, error) {
	cs := make([]packer.Container, 0, len(st.Containers))
	for _, ci := range st.Containers {
		v, err := packer.ParseVariant(ci.Variant)
		if err != nil {
			return nil, fmt.Errorf("container %d: %w", ci.Number, err)
		}
		header, err := hex.DecodeString(ci.HeaderHex)
		if err != nil {
			return nil, fmt.Errorf("container %d header: %w", ci.Number, err)
		}
		c := packer.Container{Variant: v, Start: ci.Start, Header: header, Length: ci.Length}
		for _, ei := range ci.Entries {
			meta, err := hex.DecodeString(ei.MetadataHex)
			if err != nil {
				return nil, fmt.Errorf("container %d entry %d metadata: %w", ci.Number, ei.Index, err)
			}
			extra, err := hex.DecodeString(ei.ExtraHex)
			if err != nil {
				return nil, fmt.Errorf("container %d entry %d extra: %w", ci.Number, ei.Index, err)
			}
			c.Entries = append(c.Entries, packer.Entry{
				Index:        ei.Index,
				MetaOffset:   ei.MetaOffset,
				Offset:       ei.Offset,
				DeclaredSize: ei.Size,
				Metadata:     meta,
				Extra:        extra,
				Type:         imgsniff.TypeFromExt(ei.Type),
			})
		}
		cs = append(cs, c)
	}
	return cs, nil
}

// Resolve fills every entry of cs with its image from src. Each entry needs
// a file and a replacement must keep the recorded image type.
func Resolve(cs []packer.Container, src packer.CandidateSource) error {
	for ci := range cs {
		for i := range cs[ci].Entries {
			e := &cs[ci].Entries[i]
			cand, ok := src.Lookup(e.Index, e.Offset, e.Type)
			if !ok {
				return fmt.Errorf("%w: container %d entry %d at 0x%08X", packer.ErrCandidateMissing, ci+1, e.Index, e.Offset)
			}
			t := imgsniff.Sniff(cand.Bytes)
			if e.Type != imgsniff.Unknown && t != e.Type {
				return fmt.Errorf("%w: container %d entry %d at 0x%08X is %s, %s is %s",
					packer.ErrCandidateTypeMismatch, ci+1, e.Index, e.Offset, e.Type, cand.Source, t)
			}
			e.Payload = cand.Bytes
			e.Type = t
		}
	}
	return nil
}

// ReadStructure loads dir/structure.json. ok is false when the directory has
// none.
func ReadStructure(dir string) (st Structure, ok bool, err error) {
	st, err = LoadStructure(filepath.Join(dir, StructureFile))
	if errors.Is(err, fs.ErrNotExist) {
		return st, false, nil
	}
	if err != nil {
		return st, false, fmt.Errorf("read %s: %w", StructureFile, err)
	}
	return st, true, nil
}

// CheckSource compares the dump digest recorded in dir with d. A directory
// without structure file, or one that recorded no digest, passes.
func CheckSource(dir string, d digest.Digest) error {
	st, ok, err := ReadStructure(dir)
	if err != nil || !ok || st.SourceDigest == "" {
		return err
	}
	if digest.Digest(st.SourceDigest) != d {
		return fmt.Errorf("%w: %s records %s, input is %s", ErrSourceMismatch, StructureFile, st.SourceDigest, d)
	}
	return nil
}

// FindOriginal locates the dump st was extracted from. It tries the recorded
// source path as given, then relative to dir and its parent. A file only
// counts when its digest matches the recorded one.
func FindOriginal(dir string, st Structure) (string, bool) {
	if st.Source == "" || st.SourceDigest == "" {
		return "", false
	}
	want := digest.Digest(st.SourceDigest)
	tried := make(map[string]bool)
	for _, p := range []string{
		st.Source,
		filepath.Join(dir, st.Source),
		filepath.Join(filepath.Dir(filepath.Clean(dir)), filepath.Base(st.Source)),
	} {
		p = filepath.Clean(p)
		if tried[p] {
			continue
		}
		tried[p] = true
		if info, err := os.Stat(p); err != nil || !info.Mode().IsRegular() || info.Size() != int64(st.Size) {
			continue
		}
		got, _, err := common.DigestOfFile(p)
		if err != nil {
			common.Logf("digest %s: %v", p, err)
			continue
		}
		if got == want {
			return p, true
		}
		common.Logf("%s does not match %s recorded in %s", p, want, StructureFile)
	}
	return "", false
}
