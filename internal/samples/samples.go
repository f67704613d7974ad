// Package samples builds deterministic synthetic BIOS section dumps with
// embedded logo containers for tests and documentation.
package samples

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"golang.org/x/image/bmp"
)

const (
	// File names exposed for generator consumers.
	ASUSFileName = "sample_asus.bin"
	MSIFileName  = "sample_msi.bin"

	asusRelOffset = 0x20
)

// Layout constants are repeated here so the generator stays independent of
// the codec it is used to test.
var (
	asusSignature = [32]byte{
		0x00, 0x00, 0x00, 0x00, 0x20, 0x00, 0x00, 0x00,
		0xFF, 0xFF, 0x00, 0x00, 0xFF, 0xFF, 0x00, 0x00,
	}
	asusFirstExtra = [24]byte{
		0xFF, 0xFF, 0x0A, 0x00, 0xFF, 0xFF, 0x00, 0x40,
		0x00, 0x00, 0x00, 0x00, 0x30, 0x00, 0x09, 0x04,
	}
	asusLaterExtra = [24]byte{
		0x00, 0xFF, 0xFF, 0x0A, 0x00, 0xFF, 0xFF, 0x02,
		0x00, 0x00, 0x00, 0x00, 0x30, 0x00, 0x09, 0x04,
	}
	msiSignature = [4]byte{'$', 'M', 's', 'I'}
)

func gradient(w, h int, seed uint8) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x*7) + seed, G: uint8(y*5) ^ seed, B: seed, A: 0xFF})
		}
	}
	return img
}

// PNG encodes a w x h gradient.
func PNG(w, h int, seed uint8) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, gradient(w, h, seed)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// JPEG encodes a w x h gradient at quality 85.
func JPEG(w, h int, seed uint8) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, gradient(w, h, seed), &jpeg.Options{Quality: 85}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BMP encodes a w x h gradient.
func BMP(w, h int, seed uint8) ([]byte, error) {
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, gradient(w, h, seed)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ASUS lays out prefix, the container signature, one 32-byte record per
// payload with 4-byte aligned payloads, a zero terminator and suffix.
func ASUS(prefix []byte, payloads [][]byte, suffix []byte) []byte {
	out := append([]byte{}, prefix...)
	out = append(out, asusSignature[:]...)
	for i, p := range payloads {
		out = binary.LittleEndian.AppendUint32(out, uint32(len(p)))
		out = binary.LittleEndian.AppendUint32(out, asusRelOffset)
		if i == 0 {
			out = append(out, asusFirstExtra[:]...)
		} else {
			out = append(out, asusLaterExtra[:]...)
		}
		out = append(out, p...)
		out = append(out, make([]byte, (4-len(p)%4)%4)...)
	}
	out = append(out, make([]byte, 8)...)
	return append(out, suffix...)
}

// MSIEntry is one header plus payload of an MSI-style container.
type MSIEntry struct {
	Sector   byte
	Layer    byte
	Number   byte
	Reserved byte
	Payload  []byte
}

// MSI lays out prefix, consecutive 12-byte headers with their payloads and
// suffix.
func MSI(prefix []byte, entries []MSIEntry, suffix []byte) []byte {
	out := append([]byte{}, prefix...)
	for _, e := range entries {
		out = append(out, msiSignature[:]...)
		out = append(out, e.Sector, e.Layer, e.Number, e.Reserved)
		out = binary.LittleEndian.AppendUint32(out, uint32(len(e.Payload)))
		out = append(out, e.Payload...)
	}
	return append(out, suffix...)
}

func erased(n int) []byte {
	return bytes.Repeat([]byte{0xFF}, n)
}

// BuildASUS constructs the ASUS-style sample: a PNG, a JPEG and a BMP logo
// between erased flash regions.
func BuildASUS() ([]byte, error) {
	p, err := PNG(64, 32, 0x10)
	if err != nil {
		return nil, fmt.Errorf("build png: %w", err)
	}
	j, err := JPEG(48, 48, 0x20)
	if err != nil {
		return nil, fmt.Errorf("build jpeg: %w", err)
	}
	b, err := BMP(21, 10, 0x30)
	if err != nil {
		return nil, fmt.Errorf("build bmp: %w", err)
	}
	return ASUS(erased(0x40), [][]byte{p, j, b}, erased(0x30)), nil
}

// BuildMSI constructs the MSI-style sample with three headers.
func BuildMSI() ([]byte, error) {
	p, err := PNG(40, 20, 0x40)
	if err != nil {
		return nil, fmt.Errorf("build png: %w", err)
	}
	j, err := JPEG(32, 16, 0x50)
	if err != nil {
		return nil, fmt.Errorf("build jpeg: %w", err)
	}
	b, err := BMP(16, 8, 0x60)
	if err != nil {
		return nil, fmt.Errorf("build bmp: %w", err)
	}
	entries := []MSIEntry{
		{Sector: 0x24, Layer: 0x01, Number: 0, Payload: p},
		{Sector: 0x24, Layer: 0x02, Number: 1, Payload: j},
		{Sector: 0x24, Layer: 0x03, Number: 2, Payload: b},
	}
	return MSI(erased(0x20), entries, erased(0x10)), nil
}

// WriteFiles materializes the generated dumps under dir.
func WriteFiles(dir string) error {
	asus, err := BuildASUS()
	if err != nil {
		return err
	}
	msi, err := BuildMSI()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := writeFileIfChanged(filepath.Join(dir, ASUSFileName), asus); err != nil {
		return err
	}
	return writeFileIfChanged(filepath.Join(dir, MSIFileName), msi)
}

func writeFileIfChanged(path string, data []byte) error {
	existing, err := os.ReadFile(path)
	if err == nil && bytes.Equal(existing, data) {
		return nil
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
