// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kar

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/pierrec/lz4"
)

// readerAtOnly hides the size of the underlying reader.
type readerAtOnly struct {
	r io.ReaderAt
}

func (r readerAtOnly) ReadAt(p []byte, off int64) (int, error) {
	return r.r.ReadAt(p, off)
}

func craftArchive(t *testing.T, header Header, data []byte) []byte {
	headerBytes, err := gobEncode(header)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	buf.Write(magic[:])
	buf.Write(int64ToBinary(int64(len(headerBytes))))
	buf.Write(headerBytes)
	buf.Write(data)
	return buf.Bytes()
}

func compress(t *testing.T, content string) []byte {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestOpenRejectsOversizedHeader(t *testing.T) {
	for _, size := range []int64{1 << 50, 1<<63 - 1, 64} {
		data := append(append([]byte{}, magic[:]...), int64ToBinary(size)...)
		data = append(data, []byte("short")...)

		if _, err := Open(bytes.NewReader(data)); !errors.Is(err, ErrFileFormat) {
			t.Errorf("header size %d: expected format error, got %v", size, err)
		}
		if _, err := Open(readerAtOnly{bytes.NewReader(data)}); !errors.Is(err, ErrFileFormat) {
			t.Errorf("header size %d, unsized source: expected format error, got %v", size, err)
		}
	}
}

func TestOpenRejectsBadIndex(t *testing.T) {
	payload := compress(t, "hello")
	n := int64(len(payload))

	for name, entry := range map[string]IndexEntry{
		"negative offset":     {Name: "a", Offset: -1, Size: 5, CompressedSize: n},
		"negative size":       {Name: "a", Offset: 0, Size: -5, CompressedSize: n},
		"negative compressed": {Name: "a", Offset: 0, Size: 5, CompressedSize: -1},
		"past the end":        {Name: "a", Offset: 1, Size: 5, CompressedSize: n},
		"huge compressed":     {Name: "a", Offset: 0, Size: 5, CompressedSize: 1 << 62},
		"huge offset":         {Name: "a", Offset: 1<<63 - 1, Size: 5, CompressedSize: n},
	} {
		data := craftArchive(t, Header{Index: []IndexEntry{entry}}, payload)
		if _, err := Open(bytes.NewReader(data)); !errors.Is(err, ErrFileFormat) {
			t.Errorf("%s: expected format error, got %v", name, err)
		}
	}

	repeated := craftArchive(t, Header{Index: []IndexEntry{
		{Name: "a", Size: 5, CompressedSize: n},
		{Name: "a", Size: 5, CompressedSize: n},
	}}, payload)
	if _, err := Open(bytes.NewReader(repeated)); !errors.Is(err, ErrFileFormat) {
		t.Errorf("repeated entry: expected format error, got %v", err)
	}
}

func TestReadAllChecksIndexSize(t *testing.T) {
	payload := compress(t, "hello")
	n := int64(len(payload))

	for _, size := range []int64{1 << 40, 3} {
		data := craftArchive(t, Header{Index: []IndexEntry{
			{Name: "a", Size: size, CompressedSize: n},
		}}, payload)

		// unsized sources skip the range checks, ReadAll still has to hold up
		ar, err := Open(readerAtOnly{bytes.NewReader(data)})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := ar.ReadAll("a"); !errors.Is(err, ErrFileFormat) {
			t.Errorf("size %d: expected format error, got %v", size, err)
		}
	}

	data := craftArchive(t, Header{Index: []IndexEntry{
		{Name: "a", Size: 5, CompressedSize: n},
	}}, payload)
	ar, err := Open(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	content, err := ar.ReadAll("a")
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "hello" {
		t.Errorf("unexpected content %q", content)
	}
}
