// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wire

import "github.com/luxfi/swift/bin"

// Tag identifies a message type within a datagram's payload.
type Tag byte

const (
	TagHandshake        Tag = 0
	TagData             Tag = 1
	TagAck              Tag = 2
	TagHave             Tag = 3
	TagIntegrity        Tag = 4
	TagPexResV4         Tag = 5
	TagPexReq           Tag = 6
	TagSignedIntegrity  Tag = 7
	TagRequest          Tag = 8
	TagCancel           Tag = 9
	TagChoke            Tag = 10
	TagUnchoke          Tag = 11
	TagPexResV6         Tag = 12
	TagPexResCert       Tag = 13
	TagRandomize        Tag = 14
	TagEnd              Tag = 255 // terminates a HANDSHAKE's option TLV stream
)

// String renders a Tag for logging.
func (t Tag) String() string {
	switch t {
	case TagHandshake:
		return "HANDSHAKE"
	case TagData:
		return "DATA"
	case TagAck:
		return "ACK"
	case TagHave:
		return "HAVE"
	case TagIntegrity:
		return "INTEGRITY"
	case TagPexResV4:
		return "PEX_RES4"
	case TagPexReq:
		return "PEX_REQ"
	case TagSignedIntegrity:
		return "SIGNED_INTEGRITY"
	case TagRequest:
		return "REQUEST"
	case TagCancel:
		return "CANCEL"
	case TagChoke:
		return "CHOKE"
	case TagUnchoke:
		return "UNCHOKE"
	case TagPexResV6:
		return "PEX_RES6"
	case TagPexResCert:
		return "PEX_REScert"
	case TagRandomize:
		return "RANDOMIZE"
	case TagEnd:
		return "END"
	default:
		return "UNKNOWN"
	}
}

// Option is a single HANDSHAKE protocol-option TLV (version, chunk size,
// content-integrity scheme, address scheme, live-discard-window, ...).
type Option struct {
	Key   byte
	Value []byte
}

// Handshake option keys. An initiating HANDSHAKE (ChannelID 0) must carry
// OptSwarmID so the dispatcher can resolve or create the right transfer;
// OptChunkSize and OptAddressScheme negotiate the scheme every later
// datagram on the channel is decoded with.
const (
	OptSwarmID         byte = 1 // 20-byte swarm root hash
	OptChunkSize       byte = 2 // 4-byte big-endian chunk size
	OptAddressScheme   byte = 3 // 1-byte AddressScheme
	OptContentIntegrity byte = 4 // 1-byte content-integrity scheme id
	OptLiveDiscardWindow byte = 5 // 8-byte big-endian chunk count
)

// Handshake carries the peer's chosen channel-id and protocol options,
// terminated on the wire by TagEnd.
type Handshake struct {
	PeerChannelID uint32
	Options       []Option
}

// Integrity is a Merkle hash offered for a bin.
type Integrity struct {
	Addr bin.Bin
	Hash [20]byte
}

// SignedIntegrity is a live-signed hash offered for a bin.
type SignedIntegrity struct {
	Addr      bin.Bin
	Signature []byte
}

// Data is a chunk payload, optionally timestamped for OWD measurement.
type Data struct {
	Addr       bin.Bin
	Timestamp  uint64
	HasTimestamp bool
	Payload    []byte
}

// Ack acknowledges a received, verified bin and reports one-way delay.
type Ack struct {
	Addr             bin.Bin
	OneWayDelayMicros uint64
}

// Have announces that the sender possesses Addr.
type Have struct {
	Addr bin.Bin
}

// Request asks the receiver to send Addr (a "hint").
type Request struct {
	Addr bin.Bin
}

// Cancel withdraws a prior Request for Addr.
type Cancel struct {
	Addr bin.Bin
}

// PexResV4 announces an IPv4 peer endpoint.
type PexResV4 struct {
	IP   [4]byte
	Port uint16
}

// PexResV6 announces an IPv6 peer endpoint.
type PexResV6 struct {
	IP   [16]byte
	Port uint16
}

// PexResCert announces a peer endpoint by opaque certificate bytes.
type PexResCert struct {
	Cert []byte
}

// PexReq asks the receiver to share known peers. It carries no body.
type PexReq struct{}

// Choke and Unchoke are flow-control hints with empty bodies.
type Choke struct{}
type Unchoke struct{}

// Randomize is anti-fragmentation padding: 4 arbitrary bytes.
type Randomize struct {
	Bytes [4]byte
}

// Message is any decoded wire message; Tag identifies its concrete type.
type Message interface {
	Tag() Tag
}

func (Handshake) Tag() Tag       { return TagHandshake }
func (Integrity) Tag() Tag       { return TagIntegrity }
func (SignedIntegrity) Tag() Tag { return TagSignedIntegrity }
func (Data) Tag() Tag            { return TagData }
func (Ack) Tag() Tag             { return TagAck }
func (Have) Tag() Tag            { return TagHave }
func (Request) Tag() Tag         { return TagRequest }
func (Cancel) Tag() Tag          { return TagCancel }
func (PexResV4) Tag() Tag        { return TagPexResV4 }
func (PexResV6) Tag() Tag        { return TagPexResV6 }
func (PexResCert) Tag() Tag      { return TagPexResCert }
func (PexReq) Tag() Tag          { return TagPexReq }
func (Choke) Tag() Tag           { return TagChoke }
func (Unchoke) Tag() Tag         { return TagUnchoke }
func (Randomize) Tag() Tag       { return TagRandomize }
