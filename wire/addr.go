// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package wire implements the binary datagram framing: a 4-byte
// channel-id prefix followed by a sequence of tagged messages, with chunk
// addresses encoded per the scheme negotiated in HANDSHAKE. It follows a
// Marshal/Unmarshal-a-version-plus-a-payload codec pattern, adapted here
// to this fixed binary layout instead of JSON.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/luxfi/swift/bin"
)

// AddressScheme identifies how a chunk-addr is serialized on the wire, as
// negotiated in the HANDSHAKE protocol options.
type AddressScheme byte

const (
	Bin32   AddressScheme = iota // 32-bit bin number
	Bin64                        // 64-bit bin number
	Byte64                       // 64-bit start + 64-bit end, byte offsets
	Chunk32                      // 32-bit start + 32-bit end, chunk indices
	Chunk64                      // 64-bit start + 64-bit end, chunk indices
)

// ErrUnknownScheme is returned for an AddressScheme value outside the five
// recognized schemes.
var ErrUnknownScheme = errors.New("wire: unknown address scheme")

// ErrShortAddr is returned when a chunk-addr can't be fully read from the
// remaining bytes of a message body.
var ErrShortAddr = errors.New("wire: short chunk address")

// addrWidth returns the number of bytes a chunk-addr occupies under scheme.
func addrWidth(scheme AddressScheme) (int, error) {
	switch scheme {
	case Bin32:
		return 4, nil
	case Bin64:
		return 8, nil
	case Byte64:
		return 16, nil
	case Chunk32:
		return 8, nil
	case Chunk64:
		return 16, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnknownScheme, scheme)
	}
}

// EncodeAddr appends b, encoded per scheme, to dst and returns the result.
// chunkSize is only consulted for the byte-offset scheme.
func EncodeAddr(dst []byte, scheme AddressScheme, b bin.Bin, chunkSize uint32) ([]byte, error) {
	switch scheme {
	case Bin32:
		return binary.BigEndian.AppendUint32(dst, uint32(b)), nil
	case Bin64:
		return binary.BigEndian.AppendUint64(dst, uint64(b)), nil
	case Byte64:
		start := b.BaseOffset() * uint64(chunkSize)
		end := start + b.BaseLength()*uint64(chunkSize) - 1
		dst = binary.BigEndian.AppendUint64(dst, start)
		return binary.BigEndian.AppendUint64(dst, end), nil
	case Chunk32:
		start := uint32(b.BaseOffset())
		end := start + uint32(b.BaseLength()) - 1
		dst = binary.BigEndian.AppendUint32(dst, start)
		return binary.BigEndian.AppendUint32(dst, end), nil
	case Chunk64:
		start := b.BaseOffset()
		end := start + b.BaseLength() - 1
		dst = binary.BigEndian.AppendUint64(dst, start)
		return binary.BigEndian.AppendUint64(dst, end), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownScheme, scheme)
	}
}

// DecodeAddr reads a chunk-addr from the front of data per scheme, and
// returns the bin it names plus the number of bytes consumed. A chunk or
// byte range that isn't itself power-of-two aligned is rejected with
// bin.ErrOutOfRange, since the rest of the system only reasons about
// aligned bins; leaves arbitrary ranges to the rare CANCEL/REQUEST
// split path, which operates on whole bins on our side already.
func DecodeAddr(data []byte, scheme AddressScheme, chunkSize uint32) (bin.Bin, int, error) {
	width, err := addrWidth(scheme)
	if err != nil {
		return bin.NONE, 0, err
	}
	if len(data) < width {
		return bin.NONE, 0, ErrShortAddr
	}
	switch scheme {
	case Bin32:
		return bin.Bin(binary.BigEndian.Uint32(data)), width, nil
	case Bin64:
		return bin.Bin(binary.BigEndian.Uint64(data)), width, nil
	case Byte64:
		start := binary.BigEndian.Uint64(data)
		end := binary.BigEndian.Uint64(data[8:])
		if chunkSize == 0 || start%uint64(chunkSize) != 0 {
			return bin.NONE, width, fmt.Errorf("%w: start %d not chunk-aligned", bin.ErrOutOfRange, start)
		}
		b, err := rangeToBin(start/uint64(chunkSize), (end+1)/uint64(chunkSize))
		return b, width, err
	case Chunk32:
		start := uint64(binary.BigEndian.Uint32(data))
		end := uint64(binary.BigEndian.Uint32(data[4:]))
		b, err := rangeToBin(start, end+1)
		return b, width, err
	case Chunk64:
		start := binary.BigEndian.Uint64(data)
		end := binary.BigEndian.Uint64(data[8:])
		b, err := rangeToBin(start, end+1)
		return b, width, err
	default:
		return bin.NONE, 0, fmt.Errorf("%w: %d", ErrUnknownScheme, scheme)
	}
}

// rangeToBin converts a [startChunk, endChunkExclusive) range into the
// single bin it names, failing if the range isn't an aligned power of two.
func rangeToBin(startChunk, endChunkExclusive uint64) (bin.Bin, error) {
	if endChunkExclusive <= startChunk {
		return bin.NONE, fmt.Errorf("%w: empty or reversed chunk range", bin.ErrOutOfRange)
	}
	length := endChunkExclusive - startChunk
	layer := uint(0)
	for uint64(1)<<layer < length {
		layer++
	}
	if uint64(1)<<layer != length {
		return bin.NONE, fmt.Errorf("%w: chunk range length %d not a power of two", bin.ErrOutOfRange, length)
	}
	width := uint64(1) << layer
	if startChunk%width != 0 {
		return bin.NONE, fmt.Errorf("%w: chunk range start %d not aligned to %d", bin.ErrOutOfRange, startChunk, width)
	}
	return bin.New(layer, startChunk/width), nil
}
