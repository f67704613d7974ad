package candidates

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"example.com/logopack/internal/common"
	"example.com/logopack/internal/imgsniff"
	"example.com/logopack/internal/packer"
)

// StructureFile is written next to the extracted pack directories.
const StructureFile = "structure.json"

// Structure describes the decoded layout of a dump.
type Structure struct {
	Source       string          `json:"source,omitempty"`
	SourceDigest string          `json:"sourceDigest"`
	Size         int             `json:"size"`
	CreatedAt    time.Time       `json:"createdAt"`
	Containers   []ContainerInfo `json:"containers"`
}

type ContainerInfo struct {
	Number    int         `json:"number"`
	Variant   string      `json:"variant"`
	Start     int         `json:"start"`
	Length    int         `json:"length"`
	Dir       string      `json:"dir"`
	HeaderHex string      `json:"headerHex,omitempty"`
	Stop      string      `json:"stop,omitempty"`
	Entries   []EntryInfo `json:"entries"`
}

type EntryInfo struct {
	Index       int    `json:"index"`
	MetaOffset  int    `json:"metaOffset"`
	Offset      int    `json:"offset"`
	Size        int    `json:"size"`
	Type        string `json:"type"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	MetadataHex string `json:"metadataHex"`
	ExtraHex    string `json:"extraHex,omitempty"`
	Fingerprint string `json:"fingerprint"`
	File        string `json:"file"`
}

// Describe builds the Structure of cs without touching the filesystem.
func Describe(source string, host []byte, cs []packer.Container) Structure {
	st := Structure{
		Source:       source,
		SourceDigest: common.DigestBytes(host).String(),
		Size:         len(host),
		CreatedAt:    time.Now().UTC(),
	}
	for i, c := range cs {
		dir := fmt.Sprintf("pack_%d", i+1)
		if p, err := packer.PolicyFor(c.Variant); err == nil {
			dir = p.PackDir(i + 1)
		}
		ci := ContainerInfo{
			Number:    i + 1,
			Variant:   c.Variant.String(),
			Start:     c.Start,
			Length:    c.Length,
			Dir:       dir,
			HeaderHex: hex.EncodeToString(c.Header),
		}
		if c.Stop != nil {
			ci.Stop = c.Stop.Error()
		}
		for _, e := range c.Entries {
			info := imgsniff.Describe(e.Payload)
			ci.Entries = append(ci.Entries, EntryInfo{
				Index:       e.Index,
				MetaOffset:  e.MetaOffset,
				Offset:      e.Offset,
				Size:        e.DeclaredSize,
				Type:        e.Type.String(),
				Width:       info.Width,
				Height:      info.Height,
				MetadataHex: hex.EncodeToString(e.Metadata),
				ExtraHex:    hex.EncodeToString(e.Extra),
				Fingerprint: fmt.Sprintf("%016x", e.Fingerprint()),
				File:        filepath.ToSlash(filepath.Join(dir, FileName(e.Index, e.Offset, e.Type))),
			})
		}
		st.Containers = append(st.Containers, ci)
	}
	return st
}

// Extract writes every payload to outDir/<pack dir>/<FileName> and the
// structure description to outDir/structure.json.
func Extract(outDir, source string, host []byte, cs []packer.Container) (Structure, error) {
	st := Describe(source, host, cs)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return st, err
	}
	for ci, c := range cs {
		info := st.Containers[ci]
		if err := os.MkdirAll(filepath.Join(outDir, info.Dir), 0o755); err != nil {
			return st, err
		}
		for i, e := range c.Entries {
			path := filepath.Join(outDir, filepath.FromSlash(info.Entries[i].File))
			if err := os.WriteFile(path, e.Payload, 0o644); err != nil {
				return st, fmt.Errorf("write entry %d of container %d: %w", e.Index, ci+1, err)
			}
		}
	}
	if err := SaveStructure(st, filepath.Join(outDir, StructureFile)); err != nil {
		return st, err
	}
	return st, nil
}

func SaveStructure(st Structure, path string) error {
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func LoadStructure(path string) (Structure, error) {
	var st Structure
	b, err := os.ReadFile(path)
	if err != nil {
		return st, err
	}
	err = json.Unmarshal(b, &st)
	return st, err
}
