package imgsniff

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 16), G: uint8(y * 16), B: 0x40, A: 0xFF})
		}
	}
	return img
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage(w, h)))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, testImage(w, h), &jpeg.Options{Quality: 80}))
	return buf.Bytes()
}

func encodeBMP(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, bmp.Encode(&buf, testImage(w, h)))
	return buf.Bytes()
}

func TestClassifyEndOffsets(t *testing.T) {
	pngData := encodePNG(t, 8, 4)
	jpegData := encodeJPEG(t, 8, 8)
	bmpData := encodeBMP(t, 6, 5)
	trailer := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0x00}

	tests := []struct {
		name    string
		payload []byte
		want    Type
	}{
		{name: "png", payload: pngData, want: PNG},
		{name: "jpeg", payload: jpegData, want: JPEG},
		{name: "bmp", payload: bmpData, want: BMP},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host := append([]byte{0x11, 0x22, 0x33}, tt.payload...)
			host = append(host, trailer...)
			typ, end := Classify(host, 3)
			assert.Equal(t, tt.want, typ)
			assert.Equal(t, 3+len(tt.payload), end)
			assert.Equal(t, tt.want, Sniff(tt.payload))
		})
	}
}

func TestClassifyUnknown(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
		off  int
	}{
		{name: "empty", buf: nil, off: 0},
		{name: "offset past end", buf: []byte{1, 2, 3}, off: 5},
		{name: "random bytes", buf: []byte{0x00, 0x01, 0x02, 0x03, 0x04}, off: 0},
		{name: "png without IEND", buf: append(append([]byte{}, pngSignature[:]...), 0, 0, 0, 0), off: 0},
		{name: "unterminated jpeg", buf: []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0x4A, 0x46}, off: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			typ, end := Classify(tt.buf, tt.off)
			assert.Equal(t, Unknown, typ)
			assert.Equal(t, tt.off, end)
		})
	}
}

func TestClassifyBMPSizeGuard(t *testing.T) {
	buf := make([]byte, 256)
	copy(buf, "BM")

	binary.LittleEndian.PutUint32(buf[2:], 4096)
	typ, _ := Classify(buf, 0)
	assert.Equal(t, Unknown, typ, "size past buffer end must not classify as BMP")

	binary.LittleEndian.PutUint32(buf[2:], 50)
	typ, _ = Classify(buf, 0)
	assert.Equal(t, Unknown, typ, "size below minimum must not classify as BMP")

	binary.LittleEndian.PutUint32(buf[2:], MaxBMPSize+1)
	typ, _ = Classify(buf, 0)
	assert.Equal(t, Unknown, typ)

	binary.LittleEndian.PutUint32(buf[2:], 200)
	typ, end := Classify(buf, 0)
	assert.Equal(t, BMP, typ)
	assert.Equal(t, 200, end)
}

func TestPNGHeader(t *testing.T) {
	data := encodePNG(t, 17, 9)
	hdr, ok := PNGHeader(data, 0)
	require.True(t, ok)
	assert.Equal(t, uint32(17), hdr.Width)
	assert.Equal(t, uint32(9), hdr.Height)
	assert.Equal(t, uint8(8), hdr.BitDepth)

	_, ok = PNGHeader(data[:20], 0)
	assert.False(t, ok)
	_, ok = PNGHeader([]byte("not a png at all, really"), 0)
	assert.False(t, ok)
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    Info
	}{
		{name: "png", payload: encodePNG(t, 12, 7), want: Info{Type: PNG, Width: 12, Height: 7}},
		{name: "jpeg", payload: encodeJPEG(t, 16, 8), want: Info{Type: JPEG, Width: 16, Height: 8}},
		{name: "bmp", payload: encodeBMP(t, 10, 3), want: Info{Type: BMP, Width: 10, Height: 3}},
		{name: "unknown", payload: []byte{1, 2, 3, 4}, want: Info{Type: Unknown}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Describe(tt.payload))
		})
	}
}

func TestTypeFromExt(t *testing.T) {
	assert.Equal(t, JPEG, TypeFromExt(".JPEG"))
	assert.Equal(t, JPEG, TypeFromExt("jpg"))
	assert.Equal(t, PNG, TypeFromExt("png"))
	assert.Equal(t, BMP, TypeFromExt(".bmp"))
	assert.Equal(t, Unknown, TypeFromExt(".bin"))
	assert.Equal(t, "jpg", JPEG.Ext())
	assert.Equal(t, "bin", Unknown.Ext())
}
