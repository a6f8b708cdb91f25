package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildZip(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, data := range entries {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestUnpackPlainDocument(t *testing.T) {
	b := Blob{Name: "nota.xml", Data: []byte("<NFe/>")}
	docs := Unpack(b)
	require.Len(t, docs, 1)
	assert.Equal(t, b, docs[0])
}

func TestUnpackIgnoresUnknownBlob(t *testing.T) {
	assert.Empty(t, Unpack(Blob{Name: "readme.txt", Data: []byte("hi")}))
}

func TestUnpackNestedContainer(t *testing.T) {
	inner := buildZip(t, map[string][]byte{"nota.xml": []byte("<NFe/>")})
	outer := buildZip(t, map[string][]byte{"inner.zip": inner})

	docs := Unpack(Blob{Name: "outer.zip", Data: outer})
	require.Len(t, docs, 1)
	assert.Equal(t, "nota.xml", docs[0].Name)
	assert.Equal(t, []byte("<NFe/>"), docs[0].Data)
}

func TestUnpackSkipsJunkEntries(t *testing.T) {
	data := buildZip(t, map[string][]byte{
		"__MACOSX/nota.xml":  []byte("<junk/>"),
		".hidden.xml":        []byte("<junk/>"),
		"notas/.DS_Store":    []byte{},
		"notas/nota_001.xml": []byte("<NFe/>"),
	})

	docs := Unpack(Blob{Name: "upload.zip", Data: data})
	require.Len(t, docs, 1)
	assert.Equal(t, "nota_001.xml", docs[0].Name)
}

func TestUnpackCorruptBranchIsIsolated(t *testing.T) {
	data := buildZip(t, map[string][]byte{
		"broken.zip": {}, // zero-byte container entry
		"nota.xml":   []byte("<NFe/>"),
	})

	docs := Unpack(Blob{Name: "upload.zip", Data: data})
	require.Len(t, docs, 1)
	assert.Equal(t, "nota.xml", docs[0].Name)
}

func TestUnpackCorruptContainerYieldsNothing(t *testing.T) {
	assert.Empty(t, Unpack(Blob{Name: "broken.zip", Data: []byte("PK\x03\x04garbage")}))
}

func TestUnpackDepthCap(t *testing.T) {
	// Build a chain nested well past the cap; the document at the bottom
	// must stay unreachable but the walk must terminate.
	payload := buildZip(t, map[string][]byte{"deep.xml": []byte("<NFe/>")})
	for i := 0; i < maxDepth+5; i++ {
		payload = buildZip(t, map[string][]byte{fmt.Sprintf("level_%d.zip", i): payload})
	}

	assert.Empty(t, Unpack(Blob{Name: "outer.zip", Data: payload}))
}

func TestUnpackShallowNestingWithinCap(t *testing.T) {
	payload := buildZip(t, map[string][]byte{"deep.xml": []byte("<NFe/>")})
	for i := 0; i < 5; i++ {
		payload = buildZip(t, map[string][]byte{fmt.Sprintf("level_%d.zip", i): payload})
	}

	docs := Unpack(Blob{Name: "outer.zip", Data: payload})
	require.Len(t, docs, 1)
	assert.Equal(t, "deep.xml", docs[0].Name)
}
