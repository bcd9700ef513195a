// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kar

import (
	"bytes"
	"io"
	"sort"

	"github.com/pierrec/lz4"
	"github.com/pkg/errors"
	"golang.org/x/exp/mmap"
)

// Open opens the kar archived from r. It will also check
// if the file is actually a kar archive, will return an error
// when file incorrect.
func Open(r io.ReaderAt) (*Archive, error) {
	prefix := make([]byte, MagicLength+HeaderSizeNumberLength)
	if _, err := r.ReadAt(prefix, 0); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, ErrFileFormat
		}
		return nil, err
	}
	if !bytes.Equal(prefix[:MagicLength], magic[:]) {
		return nil, ErrFileFormat
	}

	headerSize, err := binaryToint64(prefix[MagicLength:])
	if err != nil || headerSize <= 0 {
		return nil, ErrFileFormat
	}

	size, sized := sourceSize(r)
	dataOffset := int64(MagicLength+HeaderSizeNumberLength) + headerSize
	if dataOffset < headerSize || (sized && dataOffset > size) {
		return nil, errors.Wrapf(ErrFileFormat, "header size %d", headerSize)
	}

	// bounded by what the source holds, not by the stored size
	headerBytes, err := io.ReadAll(io.NewSectionReader(r, MagicLength+HeaderSizeNumberLength, headerSize))
	if err != nil {
		return nil, err
	}
	if int64(len(headerBytes)) != headerSize {
		return nil, errors.Wrapf(ErrFileFormat, "header size %d", headerSize)
	}

	var header Header
	if err := gobDecode(&header, headerBytes); err != nil {
		return nil, errors.Wrap(ErrFileFormat, err.Error())
	}

	ar := &Archive{
		reader:     r,
		header:     header,
		dataOffset: dataOffset,
		entries:    make(map[string]IndexEntry, len(header.Index)),
	}
	for _, entry := range header.Index {
		if !entry.valid(size-dataOffset, sized) {
			return nil, errors.Wrapf(ErrFileFormat, "index entry %s", entry.Name)
		}
		if _, ok := ar.entries[entry.Name]; ok {
			return nil, errors.Wrapf(ErrFileFormat, "index entry %s repeated", entry.Name)
		}
		ar.entries[entry.Name] = entry
	}
	return ar, nil
}

// sourceSize returns the length of r when it can tell.
func sourceSize(r io.ReaderAt) (int64, bool) {
	switch s := r.(type) {
	case interface{ Size() int64 }:
		return s.Size(), true
	case interface{ Len() int }:
		return int64(s.Len()), true
	}
	return 0, false
}

// valid checks the entry lies within dataLen bytes of entry data.
func (e IndexEntry) valid(dataLen int64, sized bool) bool {
	if e.Offset < 0 || e.Size < 0 || e.CompressedSize < 0 {
		return false
	}
	return !sized || (e.CompressedSize <= dataLen && e.Offset <= dataLen-e.CompressedSize)
}

// OpenFile memory maps the archive at path. The archive has to be
// closed when no longer needed.
func OpenFile(path string) (*Archive, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	ar, err := Open(r)
	if err != nil {
		r.Close()
		return nil, errors.Wrap(err, path)
	}
	ar.closer = r
	return ar, nil
}

// Archive provides concurrent io for a kar file, and can provide
// an io.Reader for each file separately to perform actions on.
type Archive struct {
	reader     io.ReaderAt
	closer     io.Closer
	header     Header
	dataOffset int64
	entries    map[string]IndexEntry
}

// Header returns the archive header including the index.
func (a *Archive) Header() Header {
	return a.header
}

// Names returns sorted names of all files in the archive.
func (a *Archive) Names() []string {
	names := make([]string, 0, len(a.entries))
	for name := range a.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ReadAll returns the entire contents of a file with a given name
func (a *Archive) ReadAll(name string) ([]byte, error) {
	r, err := a.Open(name)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(r, r.Size()+1))
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", name)
	}
	if int64(len(data)) != r.Size() {
		return nil, errors.Wrapf(ErrFileFormat, "%s is %d bytes, index says %d", name, len(data), r.Size())
	}
	return data, nil
}

// Open returns a Reader for a file in the Archive
func (a *Archive) Open(name string) (*Reader, error) {
	entry, ok := a.entries[name]
	if !ok {
		return nil, errors.Wrap(ErrNotFound, name)
	}
	section := io.NewSectionReader(a.reader, a.dataOffset+entry.Offset, entry.CompressedSize)
	return &Reader{
		entry:        entry,
		decompressor: lz4.NewReader(section),
	}, nil
}

// Close releases the mapping of an archive opened with OpenFile.
func (a *Archive) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

// Reader is a reader for a single file in an Archive.
// Abstracts away the location that needs to be known.
type Reader struct {
	entry        IndexEntry
	decompressor io.Reader
}

// Size returns the uncompressed size of the file.
func (r *Reader) Size() int64 {
	return r.entry.Size
}

// Read reads already decompressed data
func (r *Reader) Read(p []byte) (n int, err error) {
	return r.decompressor.Read(p)
}
