// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wire

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/swift/bin"
)

func TestEncodeDecodeRoundTripBin32(t *testing.T) {
	require := require.New(t)
	scheme := Scheme{Addr: Bin32, ChunkSize: 1024}

	dg := Datagram{
		ChannelID: 7,
		Messages: []Message{
			Have{Addr: bin.New(0, 3)},
			Ack{Addr: bin.New(2, 0), OneWayDelayMicros: 12345},
			Data{Addr: bin.New(0, 5), HasTimestamp: true, Timestamp: 99, Payload: []byte("hello world")},
		},
	}

	buf, err := Encode(scheme, dg)
	require.NoError(err)

	got, err := Decode(scheme, buf)
	require.NoError(err)
	require.Equal(dg.ChannelID, got.ChannelID)
	require.Equal(dg.Messages, got.Messages)
}

func TestEncodeDecodeHandshakeWithOptions(t *testing.T) {
	require := require.New(t)
	scheme := Scheme{Addr: Bin32, ChunkSize: 1024}

	dg := Datagram{
		ChannelID: 0,
		Messages: []Message{
			Handshake{
				PeerChannelID: 42,
				Options: []Option{
					{Key: 1, Value: []byte{0x02}},
					{Key: 2, Value: []byte("swarm-id-bytes-here!")},
				},
			},
		},
	}

	buf, err := Encode(scheme, dg)
	require.NoError(err)
	got, err := Decode(scheme, buf)
	require.NoError(err)
	require.Equal(dg.Messages, got.Messages)
}

func TestDecodeChunk32RequiresAlignedPowerOfTwo(t *testing.T) {
	require := require.New(t)
	scheme := Scheme{Addr: Chunk32, ChunkSize: 1024}

	dg := Datagram{ChannelID: 1, Messages: []Message{Have{Addr: bin.New(2, 0)}}}
	buf, err := Encode(scheme, dg)
	require.NoError(err)
	got, err := Decode(scheme, buf)
	require.NoError(err)
	require.Equal(bin.New(2, 0), got.Messages[0].(Have).Addr)
}

func TestDecodeRejectsUnknownTag(t *testing.T) {
	require := require.New(t)
	scheme := Scheme{Addr: Bin32, ChunkSize: 1024}
	buf := []byte{0, 0, 0, 1, 250}
	_, err := Decode(scheme, buf)
	require.ErrorIs(err, ErrMalformed)
}

func TestDecodeRejectsShortDatagram(t *testing.T) {
	require := require.New(t)
	scheme := Scheme{Addr: Bin32, ChunkSize: 1024}
	_, err := Decode(scheme, []byte{0, 0})
	require.ErrorIs(err, ErrMalformed)
}

func TestByte64SchemeRoundTrip(t *testing.T) {
	require := require.New(t)
	scheme := Scheme{Addr: Byte64, ChunkSize: 1024}
	dg := Datagram{ChannelID: 3, Messages: []Message{Request{Addr: bin.New(1, 2)}}}
	buf, err := Encode(scheme, dg)
	require.NoError(err)
	got, err := Decode(scheme, buf)
	require.NoError(err)
	require.Equal(bin.New(1, 2), got.Messages[0].(Request).Addr)
}

func TestPexAndControlMessagesRoundTrip(t *testing.T) {
	require := require.New(t)
	scheme := Scheme{Addr: Bin32, ChunkSize: 1024}
	dg := Datagram{
		ChannelID: 9,
		Messages: []Message{
			PexReq{},
			PexResV4{IP: [4]byte{127, 0, 0, 1}, Port: 20000},
			Choke{},
			Unchoke{},
			Randomize{Bytes: [4]byte{1, 2, 3, 4}},
		},
	}
	buf, err := Encode(scheme, dg)
	require.NoError(err)
	got, err := Decode(scheme, buf)
	require.NoError(err)
	require.Equal(dg.Messages, got.Messages)
}
