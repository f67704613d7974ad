package packer

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// fakePNG returns an n-byte buffer that sniffs as PNG and ends with IEND.
func fakePNG(t *testing.T, n int, fill byte) []byte {
	t.Helper()
	const head = 8 + 4 + 4 + 13 + 4
	const tail = 12
	if n < head+tail {
		t.Fatalf("fakePNG: %d bytes is too small", n)
	}
	buf := make([]byte, 0, n)
	buf = append(buf, 0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A)
	buf = binary.BigEndian.AppendUint32(buf, 13)
	buf = append(buf, 'I', 'H', 'D', 'R')
	buf = binary.BigEndian.AppendUint32(buf, 16)
	buf = binary.BigEndian.AppendUint32(buf, 16)
	buf = append(buf, 8, 6, 0, 0, 0)
	buf = append(buf, 0, 0, 0, 0)
	buf = append(buf, bytes.Repeat([]byte{fill}, n-head-tail)...)
	buf = append(buf, 0, 0, 0, 0, 'I', 'E', 'N', 'D', 0xAE, 0x42, 0x60, 0x82)
	return buf
}

// fakeJPEG returns an n-byte buffer that sniffs as JPEG and ends with EOI.
func fakeJPEG(t *testing.T, n int, fill byte) []byte {
	t.Helper()
	if n < 6 {
		t.Fatalf("fakeJPEG: %d bytes is too small", n)
	}
	buf := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	buf = append(buf, bytes.Repeat([]byte{fill}, n-6)...)
	return append(buf, 0xFF, 0xD9)
}

// fakeBMP returns an n-byte buffer whose file header declares n bytes.
func fakeBMP(t *testing.T, n int, fill byte) []byte {
	t.Helper()
	buf := make([]byte, n)
	copy(buf, "BM")
	binary.LittleEndian.PutUint32(buf[2:], uint32(n))
	for i := 6; i < n; i++ {
		buf[i] = fill
	}
	return buf
}

// buildASUS lays out prefix, signature, one record per payload, an 8-byte
// zero terminator and suffix.
func buildASUS(prefix []byte, payloads [][]byte, suffix []byte) []byte {
	buf := append([]byte{}, prefix...)
	buf = append(buf, asusSignature[:]...)
	for i, p := range payloads {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(p)))
		buf = binary.LittleEndian.AppendUint32(buf, asusRelOffset)
		if i == 0 {
			buf = append(buf, asusFirstExtra[:]...)
		} else {
			buf = append(buf, asusLaterExtra[:]...)
		}
		buf = append(buf, p...)
		buf = append(buf, make([]byte, padding(len(p), asusStride))...)
	}
	buf = append(buf, make([]byte, 8)...)
	return append(buf, suffix...)
}

type msiSpec struct {
	sector, layer, number, reserved byte
	payload                         []byte
}

// buildMSI lays out prefix, consecutive MSI headers with payloads and suffix.
func buildMSI(prefix []byte, entries []msiSpec, suffix []byte) []byte {
	buf := append([]byte{}, prefix...)
	for _, e := range entries {
		buf = append(buf, msiSignature[:]...)
		buf = append(buf, e.sector, e.layer, e.number, e.reserved)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(e.payload)))
		buf = append(buf, e.payload...)
	}
	return append(buf, suffix...)
}

func mustScan(t *testing.T, buf []byte, v Variant) []Container {
	t.Helper()
	cs, _, err := Scan(buf, v)
	if err != nil {
		t.Fatalf("Scan(%s): %v", v, err)
	}
	return cs
}
