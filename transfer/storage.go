// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package transfer

import (
	"io"
	"os"

	"github.com/luxfi/swift/bin"
)

// FileStorage is the content-file collaborator a transfer hands to its hash
// tree (hashtree.Storage) and its channels (channel.Storage): positional
// reads and writes against a single on-disk file, named by the swarm's
// content path. Writes are pwrite-like; the hash tree is the only writer,
// and reads come from a channel's AddData send path or the sidecar store.
type FileStorage struct {
	f         *os.File
	chunkSize uint32
}

// OpenFileStorage opens (creating if absent) the content file at path.
func OpenFileStorage(path string, chunkSize uint32) (*FileStorage, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileStorage{f: f, chunkSize: chunkSize}, nil
}

// Close closes the underlying file.
func (s *FileStorage) Close() error { return s.f.Close() }

// WriteChunk writes data at the byte offset baseOffset*chunkSize, the seam
// hashtree.Tree.finalizeChunk uses to persist a just-verified chunk.
func (s *FileStorage) WriteChunk(baseOffset uint64, chunkSize uint32, data []byte) error {
	_, err := s.f.WriteAt(data, int64(baseOffset)*int64(chunkSize))
	return err
}

// ReadChunk reads back the bytes covered by b, for a channel's AddData send
// path or a sidecarstore.ContentReader. The last chunk of a swarm may be
// shorter than chunkSize; ReadChunk clips to whatever the file actually
// holds rather than erroring on a short read.
func (s *FileStorage) ReadChunk(b bin.Bin) ([]byte, error) {
	off := int64(b.BaseOffset()) * int64(s.chunkSize)
	want := int64(b.BaseLength()) * int64(s.chunkSize)
	buf := make([]byte, want)
	n, err := s.f.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return buf[:n], nil
}

// Truncate grows or shrinks the content file to exactly size bytes, once a
// transfer's total size becomes known.
func (s *FileStorage) Truncate(size int64) error {
	return s.f.Truncate(size)
}
