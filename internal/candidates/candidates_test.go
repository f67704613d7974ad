package candidates

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/logopack/internal/imgsniff"
	"example.com/logopack/internal/packer"
	"example.com/logopack/internal/samples"
)

func TestFileName(t *testing.T) {
	assert.Equal(t, "image_nr0_off0x00000060.png", FileName(0, 0x60, imgsniff.PNG))
	assert.Equal(t, "image_nr12_off0x0001abcd.jpg", FileName(12, 0x1ABCD, imgsniff.JPEG))
	assert.Equal(t, "image_nr3_off0x00000000.bin", FileName(3, 0, imgsniff.Unknown))
}

func TestParseFileName(t *testing.T) {
	tests := []struct {
		in   string
		want Name
		ok   bool
	}{
		{"image_nr0_off0x00000060.png", Name{Index: 0, Offset: 0x60, Ext: ".png"}, true},
		{"IMAGE_NR2_OFF0X1ABCD.JPG", Name{Index: 2, Offset: 0x1ABCD, Ext: ".jpg"}, true},
		{"asus_pack_1/image_nr7_off0x40.bmp", Name{Index: 7, Offset: 0x40, Ext: ".bmp"}, true},
		{"image_nr1_off0x60.png.bak", Name{}, false},
		{"image_nr_off0x60.png", Name{}, false},
		{"logo.png", Name{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseFileName(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, got, tt.in)
		}
	}
	for _, idx := range []int{0, 5, 123} {
		name, ok := ParseFileName(FileName(idx, 0xDEAD0, imgsniff.BMP))
		require.True(t, ok)
		assert.Equal(t, idx, name.Index)
		assert.Equal(t, 0xDEAD0, name.Offset)
	}
}

func TestDirSourcePrefersMatchingExtension(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "asus_pack_1")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(sub, name), []byte(body), 0o644))
	}
	write("image_nr0_off0x00000060.bin", "raw")
	write("image_nr0_off0x00000060.png", "png")
	write("image_nr1_off0x00000100.jpg", "jpeg")
	write("image_nr2_off0x00000200.txt", "ignored")
	write("notes.md", "ignored")

	src, err := OpenDir(root)
	require.NoError(t, err)
	assert.Equal(t, root, src.Root())
	assert.Equal(t, 2, src.Len())

	c, ok := src.Lookup(0, 0x60, imgsniff.PNG)
	require.True(t, ok)
	assert.Equal(t, "png", string(c.Bytes))
	assert.Equal(t, 0, c.Index)

	c, ok = src.Lookup(0, 0x60, imgsniff.Unknown)
	require.True(t, ok)
	assert.Equal(t, "raw", string(c.Bytes), "first path in order wins without a type hint")

	_, ok = src.Lookup(1, 0x60, imgsniff.JPEG)
	assert.False(t, ok, "index and offset must both match")
	_, ok = src.Lookup(2, 0x200, imgsniff.Unknown)
	assert.False(t, ok)

	_, err = OpenDir(filepath.Join(sub, "image_nr0_off0x00000060.png"))
	assert.Error(t, err)
}

func TestExtractRoundTrip(t *testing.T) {
	for _, build := range []struct {
		name    string
		variant packer.Variant
		dir     string
		fn      func() ([]byte, error)
	}{
		{"asus", packer.VariantASUS, "asus_pack_1", samples.BuildASUS},
		{"msi", packer.VariantMSI, "msi_pack_1", samples.BuildMSI},
	} {
		t.Run(build.name, func(t *testing.T) {
			host, err := build.fn()
			require.NoError(t, err)
			cs, anomalies, err := packer.Scan(host, build.variant)
			require.NoError(t, err)
			require.Empty(t, anomalies)
			require.Len(t, cs, 1)

			out := t.TempDir()
			st, err := Extract(out, "dump.bin", host, cs)
			require.NoError(t, err)
			require.Len(t, st.Containers, 1)
			assert.Equal(t, build.dir, st.Containers[0].Dir)
			assert.Equal(t, len(host), st.Size)

			loaded, err := LoadStructure(filepath.Join(out, StructureFile))
			require.NoError(t, err)
			assert.Equal(t, st.SourceDigest, loaded.SourceDigest)
			require.Len(t, loaded.Containers[0].Entries, len(cs[0].Entries))
			first := loaded.Containers[0].Entries[0]
			assert.Equal(t, "png", first.Type)
			assert.NotZero(t, first.Width)

			for i, e := range cs[0].Entries {
				data, err := os.ReadFile(filepath.Join(out, filepath.FromSlash(st.Containers[0].Entries[i].File)))
				require.NoError(t, err)
				assert.Equal(t, e.Payload, data)
			}

			// Unmodified extraction fed back in is a no-op.
			src, err := OpenDir(out)
			require.NoError(t, err)
			res, err := packer.Rebuild(host, cs, packer.DetectAll(cs, src))
			require.NoError(t, err)
			assert.Equal(t, packer.StrategyNone, res.Strategy)
			assert.Equal(t, host, res.Output)
		})
	}
}
