// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package dispatcher implements the process-wide, single-threaded event
// loop: one UDP socket shared by every transfer, a scrambled channel-id
// routing table, and the periodic cleanup tick that destroys closed
// channels and drives tracker reconnects. All core state (the routing
// table, every channel, every hash tree) is touched only from the
// goroutine running Run; nothing in this package takes a lock around that
// state, matching the no-mutexes-in-the-core scheduling model the channel
// and transfer packages already assume.
package dispatcher

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/log"

	"github.com/luxfi/swift/channel"
	"github.com/luxfi/swift/internal/xlog"
	"github.com/luxfi/swift/metrics"
	"github.com/luxfi/swift/swarmid"
	"github.com/luxfi/swift/transfer"
	"github.com/luxfi/swift/wire"
)

// ErrUnknownSwarm names the case of an initiating HANDSHAKE for a swarm this
// dispatcher has no open transfer for. routeHandshake logs and drops such
// datagrams; no function in this package returns this error.
var ErrUnknownSwarm = errors.New("dispatcher: unknown swarm")

// tunnelChannelID is the reserved wire channel-id handed to the tunnel
// collaborator, never allocated as a real peer channel. Tunneling is out
// of scope here; a datagram addressed to it is logged and dropped.
const tunnelChannelID uint32 = 0xFFFFFFFF

// defaultBootstrapScheme decodes an initiating HANDSHAKE datagram (wire
// channel-id 0), before any per-swarm chunk-addressing scheme is known.
// HANDSHAKE's own body is self-describing (a length-prefixed option TLV
// list) and never needs the addressing scheme to decode.
var defaultBootstrapScheme = wire.Scheme{Addr: wire.Bin32, ChunkSize: 1024}

// slot is one entry in the dispatcher's channel table.
type slot struct {
	ch         *channel.Channel
	tr         *transfer.Transfer
	scheme     wire.Scheme
	free       bool
	freedAtGen uint64
}

// Dispatcher owns the socket, the channel table, and the set of open
// transfers.
type Dispatcher struct {
	conn net.PacketConn
	log  log.Logger
	m    *metrics.Metrics

	mask uint32 // per-process XOR scramble applied to every wire channel-id

	slots      []slot
	generation uint64

	transfers map[swarmid.ID]*transfer.Transfer

	cleanupTick time.Duration
	lastCleanup time.Time

	tracker TrackerDialer

	stop chan struct{}
}

// TrackerDialer is the collaborator contacted on a transfer's tracker
// retry tick. The tracker wire protocol is itself a peer endpoint of this
// same protocol and out of scope here; this is the narrow seam a caller
// supplies an implementation for.
type TrackerDialer interface {
	Dial(tr *transfer.Transfer, endpoint string) error
}

// New constructs a dispatcher bound to conn. cleanupTick defaults to 5s if
// zero.
func New(conn net.PacketConn, l log.Logger, m *metrics.Metrics, cleanupTick time.Duration) *Dispatcher {
	if l == nil {
		l = xlog.NewNoOp()
	}
	if m == nil {
		m = metrics.NewNoOp()
	}
	if cleanupTick <= 0 {
		cleanupTick = 5 * time.Second
	}
	d := &Dispatcher{
		conn:        conn,
		log:         xlog.Named(l, "dispatcher"),
		m:           m,
		mask:        rand.Uint32(),
		transfers:   make(map[swarmid.ID]*transfer.Transfer),
		cleanupTick: cleanupTick,
		stop:        make(chan struct{}),
	}
	// Slot 0 is permanently reserved: wire channel-id 0 always means
	// "new/close", matching the append-only table original_source builds
	// with channels_t channels(1).
	d.slots = append(d.slots, slot{free: false})
	return d
}

// SetTrackerDialer installs the collaborator used to contact a transfer's
// tracker on retry.
func (d *Dispatcher) SetTrackerDialer(t TrackerDialer) {
	d.tracker = t
}

// AddTransfer registers an already-open transfer with the dispatcher so
// its channels can be routed to.
func (d *Dispatcher) AddTransfer(id swarmid.ID, tr *transfer.Transfer) {
	d.transfers[id] = tr
}

// RemoveTransfer unregisters a transfer; callers should Close it first.
func (d *Dispatcher) RemoveTransfer(id swarmid.ID) {
	delete(d.transfers, id)
}

// scramble and unscramble convert between a table index and the
// corresponding wire-visible channel-id.
func (d *Dispatcher) scramble(idx uint32) uint32  { return idx ^ d.mask }
func (d *Dispatcher) unscramble(id uint32) uint32 { return id ^ d.mask }

// allocate reserves a table slot for a new channel, reusing a freed slot
// only once at least one cleanup-tick generation has elapsed since it was
// freed (the REDESIGN FLAG this package applies: original_source never
// reuses a freed index at all).
func (d *Dispatcher) allocate(tr *transfer.Transfer, scheme wire.Scheme) uint32 {
	for i := 1; i < len(d.slots); i++ {
		if d.slots[i].free && d.slots[i].freedAtGen < d.generation {
			d.slots[i] = slot{tr: tr, scheme: scheme}
			return uint32(i)
		}
	}
	d.slots = append(d.slots, slot{tr: tr, scheme: scheme})
	return uint32(len(d.slots) - 1)
}

func (d *Dispatcher) free(idx uint32) {
	if int(idx) >= len(d.slots) {
		return
	}
	d.slots[idx] = slot{free: true, freedAtGen: d.generation}
}

// Dial opens a new outgoing channel to endpoint on tr, returning the
// channel so a caller can immediately queue an AddPeer-style hello; the
// first ComposeSend call sends the initiating HANDSHAKE.
func (d *Dispatcher) Dial(tr *transfer.Transfer, endpoint string) *channel.Channel {
	scheme := wire.Scheme{Addr: wire.Bin32, ChunkSize: chunkSizeOf(tr)}
	idx := d.allocate(tr, scheme)
	ch := tr.NewChannel(d.scramble(idx), endpoint)
	d.slots[idx].ch = ch
	return ch
}

func chunkSizeOf(tr *transfer.Transfer) uint32 {
	return tr.Config().ChunkSize
}

// Run drives the event loop until ctx is cancelled: it alternates reading
// inbound datagrams (with a short deadline so timers and the cleanup tick
// are never starved) and firing whichever channels are due to send.
func (d *Dispatcher) Run(ctx context.Context) error {
	buf := make([]byte, 64*1024)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.stop:
			return nil
		default:
		}

		_ = d.conn.SetReadDeadline(time.Now().Add(20 * time.Millisecond))
		n, from, err := d.conn.ReadFrom(buf)
		now := time.Now()
		if err == nil {
			d.routeInbound(buf[:n], from, now)
		} else if !isTimeout(err) {
			return fmt.Errorf("dispatcher: read: %w", err)
		}

		d.fireDueChannels(now)
		if now.Sub(d.lastCleanup) >= d.cleanupTick {
			d.cleanup(now)
			d.lastCleanup = now
		}
	}
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

// Stop breaks Run's loop on its next iteration.
func (d *Dispatcher) Stop() { close(d.stop) }

// routeInbound implements the base protocol's 4-step datagram dispatch.
func (d *Dispatcher) routeInbound(data []byte, from net.Addr, now time.Time) {
	if len(data) < 4 {
		d.log.Warn("dropping short datagram")
		return
	}
	wireID := binary.BigEndian.Uint32(data)

	switch {
	case wireID == 0:
		d.routeHandshake(data, from, now)
	case wireID == tunnelChannelID:
		d.log.Debug("dropping datagram addressed to the tunnel collaborator (out of scope)")
	default:
		d.routeToChannel(wireID, data, from, now)
	}
}

func (d *Dispatcher) routeHandshake(data []byte, from net.Addr, now time.Time) {
	dg, err := wire.Decode(defaultBootstrapScheme, data)
	if err != nil {
		d.log.Warn("malformed initiating handshake", zap.Error(err))
		return
	}
	var hs *wire.Handshake
	for _, m := range dg.Messages {
		if h, ok := m.(wire.Handshake); ok {
			hs = &h
			break
		}
	}
	if hs == nil {
		d.log.Warn("datagram to channel-id 0 carried no HANDSHAKE")
		return
	}
	swarmBytes, ok := findOption(hs.Options, wire.OptSwarmID)
	if !ok {
		d.log.Warn("initiating HANDSHAKE missing swarm-id option")
		return
	}
	swarm, err := swarmid.FromBytes(swarmBytes)
	if err != nil {
		d.log.Warn("initiating HANDSHAKE carried a malformed swarm-id", zap.Error(err))
		return
	}
	tr, ok := d.transfers[swarm]
	if !ok {
		d.log.Warn("initiating HANDSHAKE for unknown swarm", zap.String("swarm", swarm.String()))
		return
	}
	if !tr.IsOperational() {
		return
	}

	if existing := findChannelByEndpoint(tr, from.String()); existing != nil {
		if !d.duplicateWins(from) {
			d.log.Debug("dropping duplicate initiating handshake, existing channel wins",
				zap.String("endpoint", from.String()))
			return
		}
		d.log.Info("closing duplicate channel in favor of new initiating handshake",
			zap.String("endpoint", from.String()))
		existing.Close(channel.CloseDuplicate)
	}

	scheme := wire.Scheme{Addr: wire.Bin32, ChunkSize: chunkSizeOf(tr)}
	if v, ok := findOption(hs.Options, wire.OptAddressScheme); ok && len(v) == 1 {
		scheme.Addr = wire.AddressScheme(v[0])
	}

	idx := d.allocate(tr, scheme)
	ch := tr.NewChannel(d.scramble(idx), from.String())
	d.slots[idx].ch = ch
	ch.Receive(dg, now)
	d.sendIfDue(tr, ch, idx, from, now)
}

// findChannelByEndpoint returns tr's open channel to endpoint, if any.
func findChannelByEndpoint(tr *transfer.Transfer, endpoint string) *channel.Channel {
	for _, ch := range tr.Channels() {
		if !ch.IsClosed() && ch.PeerEndpoint == endpoint {
			return ch
		}
	}
	return nil
}

// duplicateWins applies original_source's port tie-break for resolving two
// simultaneous connections to the same peer: the side with the larger port
// closes its own outbound channel, leaving the other side's alone. from is
// the remote endpoint of the newly arriving initiating HANDSHAKE;
// duplicateWins reports whether it should displace the already-open channel
// to the same endpoint (true exactly when our own port is the larger one).
func (d *Dispatcher) duplicateWins(from net.Addr) bool {
	ourPort := addrPort(d.conn.LocalAddr())
	theirPort := addrPort(from)
	return ourPort > theirPort
}

func addrPort(addr net.Addr) int {
	_, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0
	}
	return port
}

func (d *Dispatcher) routeToChannel(wireID uint32, data []byte, from net.Addr, now time.Time) {
	idx := d.unscramble(wireID)
	if int(idx) >= len(d.slots) || d.slots[idx].free || d.slots[idx].ch == nil {
		d.log.Debug("datagram for unknown channel", zap.Uint32("chid", wireID))
		return
	}
	sl := d.slots[idx]
	if sl.ch.PeerEndpoint != from.String() {
		// An already-numbered channel only ever hears from the address it
		// was established with; a datagram from elsewhere is dropped
		// outright rather than hijacking it. The two-simultaneous-
		// initiating-handshakes case is resolved earlier, in
		// routeHandshake, before a channel-id is even assigned.
		d.log.Warn("datagram source mismatch, dropping",
			zap.Uint32("chid", wireID), zap.String("want", sl.ch.PeerEndpoint), zap.String("got", from.String()))
		return
	}
	dg, err := wire.Decode(sl.scheme, data)
	if err != nil {
		d.log.Debug("malformed datagram, closing channel", zap.Error(err))
		sl.ch.Close(channel.CloseMalformed)
		return
	}
	sl.ch.Receive(dg, now)
	if !sl.tr.IsOperational() {
		sl.ch.Close(channel.CloseStorage)
		return
	}
	d.sendIfDue(sl.tr, sl.ch, idx, from, now)
}

// sendIfDue composes and writes a reply datagram if the channel's
// congestion state says a direct send is due right now: the "send caused
// by receipt of a datagram is posted after processing completes" ordering
// rule.
func (d *Dispatcher) sendIfDue(tr *transfer.Transfer, ch *channel.Channel, idx uint32, to net.Addr, now time.Time) {
	next, ok := ch.NextSendTime()
	if ok && next.After(now) {
		return
	}
	d.compose(tr, ch, idx, to, now)
}

func (d *Dispatcher) fireDueChannels(now time.Time) {
	for i := 1; i < len(d.slots); i++ {
		sl := d.slots[i]
		if sl.free || sl.ch == nil {
			continue
		}
		next, ok := sl.ch.NextSendTime()
		if ok && next.After(now) {
			continue
		}
		addr, err := net.ResolveUDPAddr("udp", sl.ch.PeerEndpoint)
		if err != nil {
			continue
		}
		d.compose(sl.tr, sl.ch, uint32(i), addr, now)
	}
}

func (d *Dispatcher) compose(tr *transfer.Transfer, ch *channel.Channel, idx uint32, to net.Addr, now time.Time) {
	dg, ok := ch.ComposeSend(d.slots[idx].scheme, now, uint64(ch.ID), nil)
	if !ok {
		return
	}
	raw, err := wire.Encode(d.slots[idx].scheme, dg)
	if err != nil {
		d.log.Error("failed to encode outgoing datagram", zap.Error(err))
		return
	}
	if _, err := d.conn.WriteTo(raw, to); err != nil {
		d.log.Warn("send failed, dropping", zap.Error(err))
		return
	}
	d.m.DatagramsUp.Inc()
	tr.NoteBytes(transfer.Up, uint64(len(raw)), now)
}

func findOption(opts []wire.Option, key byte) ([]byte, bool) {
	for _, o := range opts {
		if o.Key == key {
			return o.Value, true
		}
	}
	return nil, false
}

// cleanup runs the process-wide 5-second housekeeping tick: frees
// scheduled-for-close channel slots, polls progress callbacks, and retries
// trackers for transfers with no established peer.
func (d *Dispatcher) cleanup(now time.Time) {
	d.generation++
	for i := 1; i < len(d.slots); i++ {
		sl := d.slots[i]
		if sl.free || sl.ch == nil {
			continue
		}
		if sl.ch.ScheduledForDelete() {
			sl.tr.RemoveChannel(sl.ch.ID)
			d.free(uint32(i))
		}
	}
	for _, tr := range d.transfers {
		tr.PollProgress()
		if !tr.IsOperational() {
			for _, ch := range tr.Channels() {
				ch.Close(channel.CloseStorage)
			}
			continue
		}
		if tr.DueForTrackerRetry(now) {
			d.m.TrackerRetries.Inc()
			endpoint := tr.TrackerEndpoint()
			if d.tracker != nil {
				if err := d.tracker.Dial(tr, endpoint); err != nil {
					d.log.Warn("tracker retry failed", zap.String("tracker", endpoint), zap.Error(err))
				}
			}
		}
		for _, endpoint := range tr.DrainPendingPeers() {
			d.Dial(tr, endpoint)
		}
	}
}

// Close shuts down every registered transfer concurrently, bounded to a
// handful in flight at once, then stops the event loop.
func (d *Dispatcher) Close(ctx context.Context) error {
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, tr := range d.transfers {
		tr := tr
		g.Go(func() error {
			return tr.Close()
		})
	}
	err := g.Wait()
	d.Stop()
	return err
}
