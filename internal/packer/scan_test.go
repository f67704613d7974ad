package packer

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/logopack/internal/imgsniff"
)

func TestScanASUSLayout(t *testing.T) {
	prefix := bytes.Repeat([]byte{0xAB}, 40)
	p0 := fakePNG(t, 1000, 0x5A)
	p1 := fakeJPEG(t, 2001, 0x11)
	host := buildASUS(prefix, [][]byte{p0, p1}, []byte("trailing data"))

	cs, anomalies, err := Scan(host, VariantASUS)
	require.NoError(t, err)
	assert.Empty(t, anomalies)
	require.Len(t, cs, 1)

	c := cs[0]
	start := len(prefix)
	assert.Equal(t, start, c.Start)
	assert.Equal(t, asusSignature[:], c.Header)
	require.Len(t, c.Entries, 2)
	assert.True(t, errors.Is(c.Stop, ErrScanTerminated), "stop = %v", c.Stop)

	e0, e1 := c.Entries[0], c.Entries[1]
	assert.Equal(t, 0, e0.Index)
	assert.Equal(t, start+32, e0.MetaOffset)
	assert.Equal(t, start+64, e0.Offset)
	assert.Equal(t, 1000, e0.DeclaredSize)
	assert.Equal(t, imgsniff.PNG, e0.Type)
	assert.Equal(t, asusFirstExtra[:], e0.Extra)
	assert.Equal(t, p0, e0.Payload)

	assert.Equal(t, 1, e1.Index)
	assert.Equal(t, start+32+32+1000, e1.MetaOffset)
	assert.Equal(t, e1.MetaOffset+32, e1.Offset)
	assert.Equal(t, 2001, e1.DeclaredSize)
	assert.Equal(t, imgsniff.JPEG, e1.Type)
	assert.Equal(t, asusLaterExtra[:], e1.Extra)

	// 2001 bytes are padded to 2004.
	assert.Equal(t, 32+(32+1000)+(32+2004), c.Length)
	assert.Equal(t, e1.End()+3, c.End())
}

func TestScanASUSTermination(t *testing.T) {
	good := fakePNG(t, 120, 0x01)

	tests := []struct {
		name        string
		mutate      func([]byte) []byte
		wantEntries int
		wantStop    error
		wantAnomaly bool
	}{
		{
			name:        "zero terminator",
			mutate:      func(b []byte) []byte { return b },
			wantEntries: 2,
			wantStop:    ErrScanTerminated,
		},
		{
			name: "sentinel mismatch on second record",
			mutate: func(b []byte) []byte {
				// second record sentinel lives at record+16
				rec := 32 + 32 + 120
				b[rec+16+4] = 0x99
				return b
			},
			wantEntries: 1,
			wantStop:    ErrScanTerminated,
		},
		{
			name: "sentinel window past buffer end",
			mutate: func(b []byte) []byte {
				rec := 32 + 32 + 120
				binary.LittleEndian.PutUint32(b[rec+4:], 1<<20)
				return b
			},
			wantEntries: 1,
			wantStop:    ErrScanTerminated,
		},
		{
			name: "second payload past buffer end",
			mutate: func(b []byte) []byte {
				rec := 32 + 32 + 120
				binary.LittleEndian.PutUint32(b[rec:], 1<<20)
				return b
			},
			wantEntries: 1,
			wantStop:    ErrBoundsExceeded,
			wantAnomaly: true,
		},
		{
			name: "truncated before terminator",
			mutate: func(b []byte) []byte {
				return b[:len(b)-4]
			},
			wantEntries: 2,
			wantStop:    ErrBoundsExceeded,
			wantAnomaly: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			host := tc.mutate(buildASUS(nil, [][]byte{good, good}, nil))
			cs, anomalies, err := Scan(host, VariantASUS)
			require.NoError(t, err)
			require.Len(t, cs, 1)
			assert.Len(t, cs[0].Entries, tc.wantEntries)
			assert.True(t, errors.Is(cs[0].Stop, tc.wantStop), "stop = %v", cs[0].Stop)
			if tc.wantAnomaly {
				require.Len(t, anomalies, 1)
				assert.ErrorIs(t, anomalies[0], tc.wantStop)
				assert.Equal(t, 0, anomalies[0].Offset)
			} else {
				assert.Empty(t, anomalies)
			}
		})
	}
}

func TestScanASUSMultipleContainers(t *testing.T) {
	first := buildASUS([]byte{0x01, 0x02}, [][]byte{fakePNG(t, 200, 0x21)}, []byte{0x03, 0x04, 0x05})
	second := buildASUS(nil, [][]byte{fakeBMP(t, 150, 0x22), fakePNG(t, 101, 0x23)}, []byte{0x06})
	host := append(append([]byte{}, first...), second...)

	cs := mustScan(t, host, VariantASUS)
	require.Len(t, cs, 2)
	assert.Len(t, cs[0].Entries, 1)
	assert.Len(t, cs[1].Entries, 2)
	assert.Equal(t, len(first), cs[1].Start)
	assert.Equal(t, imgsniff.BMP, cs[1].Entries[0].Type)
	assert.Less(t, cs[0].End(), cs[1].Start)
}

func TestScanMSI(t *testing.T) {
	entries := []msiSpec{
		{sector: 0x24, layer: 0x01, number: 0, payload: fakePNG(t, 300, 0x31)},
		{sector: 0x24, layer: 0x02, number: 1, payload: fakeJPEG(t, 77, 0x32)},
		{sector: 0x10, layer: 0x03, number: 2, reserved: 0x7F, payload: fakeBMP(t, 130, 0x33)},
	}
	prefix := []byte("HEADER--")
	host := buildMSI(prefix, entries, []byte("tail"))

	cs, anomalies, err := Scan(host, VariantMSI)
	require.NoError(t, err)
	assert.Empty(t, anomalies)
	require.Len(t, cs, 1)
	c := cs[0]
	assert.Empty(t, c.Header)
	assert.Equal(t, len(prefix), c.Start)
	require.Len(t, c.Entries, 3)

	head := len(prefix)
	for i, e := range c.Entries {
		assert.Equal(t, i, e.Index)
		assert.Equal(t, head, e.MetaOffset)
		assert.Equal(t, head+msiHeaderSize, e.Offset)
		assert.Equal(t, len(entries[i].payload), e.DeclaredSize)
		assert.Equal(t, entries[i].sector, e.Metadata[4])
		assert.Equal(t, entries[i].layer, e.Metadata[5])
		assert.Equal(t, entries[i].reserved, e.Metadata[7])
		head = e.End()
	}
	assert.Equal(t, head, c.End())
	assert.Equal(t, []imgsniff.Type{imgsniff.PNG, imgsniff.JPEG, imgsniff.BMP},
		[]imgsniff.Type{c.Entries[0].Type, c.Entries[1].Type, c.Entries[2].Type})
}

func TestScanMSIStrayAndSeparateRuns(t *testing.T) {
	run1 := buildMSI(nil, []msiSpec{{payload: fakePNG(t, 64, 0x41)}}, nil)
	stray := append([]byte{}, msiSignature[:]...)
	stray = append(stray, 0, 0, 0, 0)
	stray = binary.LittleEndian.AppendUint32(stray, 0xFFFFFF)
	run2 := buildMSI(nil, []msiSpec{{payload: fakePNG(t, 80, 0x42)}, {payload: fakePNG(t, 90, 0x43)}}, nil)

	var host []byte
	host = append(host, run1...)
	host = append(host, []byte("junk junk")...)
	host = append(host, stray...)
	host = append(host, []byte("more")...)
	host = append(host, run2...)

	cs, anomalies, err := Scan(host, VariantMSI)
	require.NoError(t, err)
	require.Len(t, cs, 2)
	assert.Len(t, cs[0].Entries, 1)
	assert.Len(t, cs[1].Entries, 2)
	require.Len(t, anomalies, 1)
	assert.ErrorIs(t, anomalies[0], ErrBoundsExceeded)
	assert.Equal(t, len(run1)+len("junk junk"), anomalies[0].Offset)
}

func TestScanUnknownVariant(t *testing.T) {
	_, _, err := Scan([]byte{1, 2, 3}, Variant(42))
	assert.ErrorIs(t, err, ErrUnknownVariant)
}

func TestSniffVariant(t *testing.T) {
	asus := buildASUS(nil, [][]byte{fakePNG(t, 100, 0x51)}, nil)
	msi := buildMSI(nil, []msiSpec{{payload: fakePNG(t, 100, 0x52)}}, nil)

	assert.Equal(t, []Variant{VariantASUS}, SniffVariant(asus))
	assert.Equal(t, []Variant{VariantMSI}, SniffVariant(msi))
	assert.Empty(t, SniffVariant([]byte("nothing to see here")))
}

func TestParseVariant(t *testing.T) {
	v, err := ParseVariant("ASUS")
	require.NoError(t, err)
	assert.Equal(t, VariantASUS, v)
	v, err = ParseVariant(" msi ")
	require.NoError(t, err)
	assert.Equal(t, VariantMSI, v)
	_, err = ParseVariant("ami")
	assert.ErrorIs(t, err, ErrUnknownVariant)
}
