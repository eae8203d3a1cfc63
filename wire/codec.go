// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wire

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/luxfi/swift/bin"
)

// ErrMalformed is returned for any datagram or message body that can't be
// parsed per the negotiated scheme: a bad chunk-addr size, an unknown tag,
// a truncated body. Always handled by closing the channel silently, never
// by aborting the transfer.
var ErrMalformed = errors.New("wire: malformed message")

// Datagram is one UDP payload: a destination channel-id (0 for a new,
// initiating handshake) followed by zero or more messages in wire order.
type Datagram struct {
	ChannelID uint32
	Messages  []Message
}

// Scheme bundles the two pieces of negotiated state every chunk-addr codec
// call needs.
type Scheme struct {
	Addr      AddressScheme
	ChunkSize uint32
}

// Encode serializes dg per scheme, in wire order, into a single datagram
// buffer.
func Encode(scheme Scheme, dg Datagram) ([]byte, error) {
	buf := binary.BigEndian.AppendUint32(nil, dg.ChannelID)
	for _, m := range dg.Messages {
		var err error
		buf, err = encodeMessage(buf, scheme, m)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func encodeMessage(buf []byte, scheme Scheme, m Message) ([]byte, error) {
	buf = append(buf, byte(m.Tag()))
	switch v := m.(type) {
	case Handshake:
		buf = binary.BigEndian.AppendUint32(buf, v.PeerChannelID)
		for _, opt := range v.Options {
			buf = append(buf, opt.Key)
			buf = append(buf, byte(len(opt.Value)))
			buf = append(buf, opt.Value...)
		}
		buf = append(buf, byte(TagEnd))
	case Integrity:
		var err error
		buf, err = EncodeAddr(buf, scheme.Addr, v.Addr, scheme.ChunkSize)
		if err != nil {
			return nil, err
		}
		buf = append(buf, v.Hash[:]...)
	case SignedIntegrity:
		var err error
		buf, err = EncodeAddr(buf, scheme.Addr, v.Addr, scheme.ChunkSize)
		if err != nil {
			return nil, err
		}
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(v.Signature)))
		buf = append(buf, v.Signature...)
	case Data:
		var err error
		buf, err = EncodeAddr(buf, scheme.Addr, v.Addr, scheme.ChunkSize)
		if err != nil {
			return nil, err
		}
		if v.HasTimestamp {
			buf = append(buf, 1)
			buf = binary.BigEndian.AppendUint64(buf, v.Timestamp)
		} else {
			buf = append(buf, 0)
		}
		buf = append(buf, v.Payload...)
	case Ack:
		var err error
		buf, err = EncodeAddr(buf, scheme.Addr, v.Addr, scheme.ChunkSize)
		if err != nil {
			return nil, err
		}
		buf = binary.BigEndian.AppendUint64(buf, v.OneWayDelayMicros)
	case Have:
		return EncodeAddr(buf, scheme.Addr, v.Addr, scheme.ChunkSize)
	case Request:
		return EncodeAddr(buf, scheme.Addr, v.Addr, scheme.ChunkSize)
	case Cancel:
		return EncodeAddr(buf, scheme.Addr, v.Addr, scheme.ChunkSize)
	case PexResV4:
		buf = append(buf, v.IP[:]...)
		buf = binary.BigEndian.AppendUint16(buf, v.Port)
	case PexResV6:
		buf = append(buf, v.IP[:]...)
		buf = binary.BigEndian.AppendUint16(buf, v.Port)
	case PexResCert:
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(v.Cert)))
		buf = append(buf, v.Cert...)
	case PexReq, Choke, Unchoke:
		// empty body
	case Randomize:
		buf = append(buf, v.Bytes[:]...)
	default:
		return nil, fmt.Errorf("%w: unencodable message type %T", ErrMalformed, m)
	}
	return buf, nil
}

// Decode parses a whole datagram per scheme. A malformed message anywhere
// in the stream fails the whole datagram: treats this as "close the
// channel without reply", which callers do with the returned ErrMalformed.
func Decode(scheme Scheme, data []byte) (Datagram, error) {
	if len(data) < 4 {
		return Datagram{}, fmt.Errorf("%w: datagram shorter than channel-id prefix", ErrMalformed)
	}
	dg := Datagram{ChannelID: binary.BigEndian.Uint32(data)}
	rest := data[4:]
	for len(rest) > 0 {
		tag := Tag(rest[0])
		rest = rest[1:]
		m, consumed, err := decodeMessage(scheme, tag, rest)
		if err != nil {
			return Datagram{}, err
		}
		dg.Messages = append(dg.Messages, m)
		rest = rest[consumed:]
	}
	return dg, nil
}

func decodeMessage(scheme Scheme, tag Tag, data []byte) (Message, int, error) {
	switch tag {
	case TagHandshake:
		return decodeHandshake(data)
	case TagIntegrity:
		if len(data) < 20 {
			return nil, 0, fmt.Errorf("%w: short INTEGRITY body", ErrMalformed)
		}
		addr, n, err := DecodeAddr(data, scheme.Addr, scheme.ChunkSize)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if len(data) < n+20 {
			return nil, 0, fmt.Errorf("%w: short INTEGRITY hash", ErrMalformed)
		}
		var h [20]byte
		copy(h[:], data[n:n+20])
		return Integrity{Addr: addr, Hash: h}, n + 20, nil
	case TagSignedIntegrity:
		addr, n, err := DecodeAddr(data, scheme.Addr, scheme.ChunkSize)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if len(data) < n+2 {
			return nil, 0, fmt.Errorf("%w: short SIGNED_INTEGRITY length", ErrMalformed)
		}
		sigLen := int(binary.BigEndian.Uint16(data[n:]))
		n += 2
		if len(data) < n+sigLen {
			return nil, 0, fmt.Errorf("%w: short SIGNED_INTEGRITY signature", ErrMalformed)
		}
		sig := append([]byte(nil), data[n:n+sigLen]...)
		return SignedIntegrity{Addr: addr, Signature: sig}, n + sigLen, nil
	case TagData:
		addr, n, err := DecodeAddr(data, scheme.Addr, scheme.ChunkSize)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if len(data) < n+1 {
			return nil, 0, fmt.Errorf("%w: short DATA flag", ErrMalformed)
		}
		hasTS := data[n] != 0
		n++
		var ts uint64
		if hasTS {
			if len(data) < n+8 {
				return nil, 0, fmt.Errorf("%w: short DATA timestamp", ErrMalformed)
			}
			ts = binary.BigEndian.Uint64(data[n:])
			n += 8
		}
		// DATA runs to the end of the datagram: there is no length
		// prefix, since a chunk occupies the remainder of the payload
		// (at most one DATA frame follows any other messages).
		payload := append([]byte(nil), data[n:]...)
		return Data{Addr: addr, Timestamp: ts, HasTimestamp: hasTS, Payload: payload}, len(data), nil
	case TagAck:
		addr, n, err := DecodeAddr(data, scheme.Addr, scheme.ChunkSize)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if len(data) < n+8 {
			return nil, 0, fmt.Errorf("%w: short ACK owd", ErrMalformed)
		}
		owd := binary.BigEndian.Uint64(data[n:])
		return Ack{Addr: addr, OneWayDelayMicros: owd}, n + 8, nil
	case TagHave:
		return decodeAddrOnly(scheme, data, func(a bin.Bin) Message { return Have{Addr: a} })
	case TagRequest:
		return decodeAddrOnly(scheme, data, func(a bin.Bin) Message { return Request{Addr: a} })
	case TagCancel:
		return decodeAddrOnly(scheme, data, func(a bin.Bin) Message { return Cancel{Addr: a} })
	case TagPexResV4:
		if len(data) < 6 {
			return nil, 0, fmt.Errorf("%w: short PEX_RES4", ErrMalformed)
		}
		var ip [4]byte
		copy(ip[:], data[:4])
		port := binary.BigEndian.Uint16(data[4:6])
		return PexResV4{IP: ip, Port: port}, 6, nil
	case TagPexResV6:
		if len(data) < 18 {
			return nil, 0, fmt.Errorf("%w: short PEX_RES6", ErrMalformed)
		}
		var ip [16]byte
		copy(ip[:], data[:16])
		port := binary.BigEndian.Uint16(data[16:18])
		return PexResV6{IP: ip, Port: port}, 18, nil
	case TagPexResCert:
		if len(data) < 2 {
			return nil, 0, fmt.Errorf("%w: short PEX_REScert length", ErrMalformed)
		}
		certLen := int(binary.BigEndian.Uint16(data))
		if len(data) < 2+certLen {
			return nil, 0, fmt.Errorf("%w: short PEX_REScert body", ErrMalformed)
		}
		cert := append([]byte(nil), data[2:2+certLen]...)
		return PexResCert{Cert: cert}, 2 + certLen, nil
	case TagPexReq:
		return PexReq{}, 0, nil
	case TagChoke:
		return Choke{}, 0, nil
	case TagUnchoke:
		return Unchoke{}, 0, nil
	case TagRandomize:
		if len(data) < 4 {
			return nil, 0, fmt.Errorf("%w: short RANDOMIZE", ErrMalformed)
		}
		var b [4]byte
		copy(b[:], data[:4])
		return Randomize{Bytes: b}, 4, nil
	default:
		return nil, 0, fmt.Errorf("%w: unknown tag %d", ErrMalformed, tag)
	}
}

func decodeAddrOnly(scheme Scheme, data []byte, build func(bin.Bin) Message) (Message, int, error) {
	addr, n, err := DecodeAddr(data, scheme.Addr, scheme.ChunkSize)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return build(addr), n, nil
}

func decodeHandshake(data []byte) (Message, int, error) {
	if len(data) < 4 {
		return nil, 0, fmt.Errorf("%w: short HANDSHAKE channel-id", ErrMalformed)
	}
	hs := Handshake{PeerChannelID: binary.BigEndian.Uint32(data)}
	n := 4
	for {
		if n >= len(data) {
			return nil, 0, fmt.Errorf("%w: HANDSHAKE missing END", ErrMalformed)
		}
		if Tag(data[n]) == TagEnd {
			n++
			break
		}
		if n+2 > len(data) {
			return nil, 0, fmt.Errorf("%w: truncated HANDSHAKE option", ErrMalformed)
		}
		key := data[n]
		length := int(data[n+1])
		n += 2
		if n+length > len(data) {
			return nil, 0, fmt.Errorf("%w: truncated HANDSHAKE option value", ErrMalformed)
		}
		value := append([]byte(nil), data[n:n+length]...)
		hs.Options = append(hs.Options, Option{Key: key, Value: value})
		n += length
	}
	return hs, n, nil
}
