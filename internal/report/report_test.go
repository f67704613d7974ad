package report

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/logopack/internal/common"
	"example.com/logopack/internal/packer"
	"example.com/logopack/internal/samples"
)

func repackSample(t *testing.T) RepackReport {
	t.Helper()
	host, err := samples.BuildASUS()
	require.NoError(t, err)
	cs, _, err := packer.Scan(host, packer.VariantASUS)
	require.NoError(t, err)
	require.Len(t, cs, 1)
	e := cs[0].Entries[0]
	bigger, err := samples.PNG(96, 48, 0x11)
	require.NoError(t, err)
	cls := packer.DetectAll(cs, packer.CandidateMap{
		{Index: e.Index, Offset: e.Offset}: bigger,
	})
	res, err := packer.Rebuild(host, cs, cls)
	require.NoError(t, err)
	rep := Build("board.bin", "board_asus_repacked.bin", packer.VariantASUS, host, cs, cls, res)
	rep.Verified = true
	return rep
}

func TestBuildReport(t *testing.T) {
	rep := repackSample(t)
	assert.Equal(t, "asus", rep.Variant)
	assert.Equal(t, "structural", rep.Strategy)
	assert.Equal(t, 1, rep.Containers)
	assert.Equal(t, 1, rep.Replaced)
	assert.Equal(t, 1, rep.Summary.Modified)
	assert.Equal(t, 2, rep.Summary.Missing)
	require.Len(t, rep.Entries, 3)

	first := rep.Entries[0]
	assert.Equal(t, "modified", first.Status)
	assert.Equal(t, 1, first.Container)
	assert.Equal(t, first.NewSize-first.OldSize, first.Delta)
	assert.Equal(t, rep.Delta, first.Delta)
	assert.NotEmpty(t, rep.Entries[1].Note)
	assert.NotEqual(t, rep.InputDigest, rep.OutputDigest)
	assert.Equal(t, common.FormatBytes(int64(rep.OutputSize)), rep.OutputSizeHuman)

	total := 0
	for _, n := range rep.PlanBytes {
		total += n
	}
	assert.Equal(t, rep.OutputSize, total)
	assert.Equal(t, 3*32, rep.PlanBytes["metadata"])
	assert.Contains(t, rep.PlanLine(), "copy ")
	assert.Contains(t, rep.PlanLine(), "payload ")
}

func TestBuildReportWithoutPlan(t *testing.T) {
	host, err := samples.BuildMSI()
	require.NoError(t, err)
	cs, _, err := packer.Scan(host, packer.VariantMSI)
	require.NoError(t, err)
	cls := packer.DetectAll(cs, packer.CandidateMap{})
	res, err := packer.Rebuild(host, cs, cls)
	require.NoError(t, err)

	rep := Build("board.bin", "", packer.VariantMSI, host, cs, cls, res)
	assert.Equal(t, "none", rep.Strategy)
	assert.Nil(t, rep.PlanBytes)
	assert.Empty(t, rep.PlanLine())
}

func TestJSONRoundTrip(t *testing.T) {
	rep := repackSample(t)
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, SaveJSON(rep, path))
	loaded, err := LoadJSON(path)
	require.NoError(t, err)
	assert.Equal(t, rep.OutputDigest, loaded.OutputDigest)
	assert.Equal(t, rep.Entries, loaded.Entries)
	assert.Equal(t, rep.Summary, loaded.Summary)
}

func TestSavePDF(t *testing.T) {
	rep := repackSample(t)
	dir := t.TempDir()
	for _, qr := range []int{0, 256} {
		path := filepath.Join(dir, "report.pdf")
		require.NoError(t, SavePDF(rep, path, qr))
		b, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(b, []byte("%PDF-")))
	}

	empty := RepackReport{Variant: "msi", Strategy: "none", OutputDigest: common.DigestBytes(nil)}
	require.NoError(t, SavePDF(empty, filepath.Join(dir, "empty.pdf"), 128))

	assert.Error(t, SavePDF(RepackReport{}, filepath.Join(dir, "bad.pdf"), 128))
}

func TestDigestToQR(t *testing.T) {
	b, err := DigestToQR(common.DigestBytes([]byte("x")), 0)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(b))
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())

	_, err = DigestToQR("", 64)
	assert.Error(t, err)
	_, err = DigestToQR("sha256:zz", 64)
	assert.Error(t, err)
}
