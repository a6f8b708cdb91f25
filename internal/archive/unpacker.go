// Package archive recovers invoice documents from uploaded blobs, walking
// nested ZIP containers without recursing on the call stack.
package archive

import (
	"archive/zip"
	"bytes"
	"io"
	"path"
	"strings"
)

// Blob is an uploaded binary payload with its declared name.
type Blob struct {
	Name string
	Data []byte
}

// maxDepth bounds container nesting so a self-referential archive cannot
// loop forever.
const maxDepth = 32

var zipMagic = []byte("PK\x03\x04")

func isZip(b Blob) bool {
	if strings.HasSuffix(strings.ToLower(b.Name), ".zip") {
		return true
	}
	return bytes.HasPrefix(b.Data, zipMagic)
}

func isDocument(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".xml")
}

// junkEntry reports entries that archiving tools add but no one asked for:
// resource-fork directories and hidden files.
func junkEntry(name string) bool {
	if strings.HasPrefix(name, "__MACOSX/") {
		return true
	}
	return strings.HasPrefix(path.Base(name), ".")
}

type pending struct {
	blob  Blob
	depth int
}

// Unpack walks a blob and returns every document found inside it. A blob
// that is itself a document is returned unchanged. Corrupt or unreadable
// containers and entries contribute nothing; the remaining branches are
// still walked. The caller learns about a fully corrupt input only as
// "zero documents found".
func Unpack(b Blob) []Blob {
	if !isZip(b) {
		if isDocument(b.Name) {
			return []Blob{b}
		}
		return nil
	}

	var docs []Blob
	stack := []pending{{blob: b, depth: 0}}

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		r, err := zip.NewReader(bytes.NewReader(cur.blob.Data), int64(len(cur.blob.Data)))
		if err != nil {
			continue
		}

		for _, f := range r.File {
			if f.FileInfo().IsDir() || junkEntry(f.Name) {
				continue
			}

			switch {
			case isDocument(f.Name):
				data, err := readEntry(f)
				if err != nil {
					continue
				}
				docs = append(docs, Blob{Name: path.Base(f.Name), Data: data})
			case strings.HasSuffix(strings.ToLower(f.Name), ".zip"):
				if cur.depth+1 >= maxDepth {
					continue
				}
				data, err := readEntry(f)
				if err != nil {
					continue
				}
				stack = append(stack, pending{
					blob:  Blob{Name: path.Base(f.Name), Data: data},
					depth: cur.depth + 1,
				})
			}
		}
	}

	return docs
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
