package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestValidDocketID(t *testing.T) {
	require.True(t, ValidDocketID("DKT-1001"))
	require.True(t, ValidDocketID("DKT-7"))
	require.False(t, ValidDocketID("dkt-1001"))
	require.False(t, ValidDocketID("DKT-"))
	require.False(t, ValidDocketID("DKT-12a"))
}

func TestSeedDockets(t *testing.T) {
	seed := SeedDockets()
	require.Len(t, seed, 3)
	for _, d := range seed {
		require.True(t, ValidDocketID(d.ID))
		require.Equal(t, DocketPending, d.Status)
		require.False(t, d.PODVerified)
	}
	require.Equal(t, []string{"DKT-1001", "DKT-1002", "DKT-1003"}, SeedDocketIDs())
}

func TestDetectImageType(t *testing.T) {
	ct, ok := DetectImageType(pngHeader)
	require.True(t, ok)
	require.Equal(t, "image/png", ct)

	ct, ok = DetectImageType([]byte("just some text"))
	require.False(t, ok)
	require.Equal(t, "text/plain", ct)
}

func TestImage_DataURI(t *testing.T) {
	img := Image{Data: []byte("abc"), ContentType: "image/jpeg"}
	require.Equal(t, "data:image/jpeg;base64,YWJj", img.DataURI())

	sniffed := Image{Data: pngHeader}
	require.Contains(t, sniffed.DataURI(), "data:image/png;base64,")
}

func TestImage_InfoDropsBytes(t *testing.T) {
	info := Image{ID: "img-1", Name: "pod.png", ContentType: "image/png", Data: pngHeader}.Info()
	require.Equal(t, ImageInfo{ID: "img-1", Name: "pod.png", ContentType: "image/png", Size: len(pngHeader)}, info)
}
