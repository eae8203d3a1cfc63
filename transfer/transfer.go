// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package transfer owns one swarm end-to-end: the hash tree, the content
// file, the piece picker, the set of channels open to peers, and the
// tracker reconnect clock. It is the control-surface collaborator a caller
// (CLI, library embedder, the dispatcher's cleanup tick) drives with
// Open/Close/Checkpoint/Seek/AddPeer/SetMaxSpeed, matching the small
// mutex-guarded constructor-plus-method-set shape of a long-lived component
// built once per logical session and driven by many short calls.
package transfer

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/luxfi/log"

	"github.com/luxfi/swift/bin"
	"github.com/luxfi/swift/binmap"
	"github.com/luxfi/swift/channel"
	"github.com/luxfi/swift/config"
	"github.com/luxfi/swift/hashtree"
	"github.com/luxfi/swift/internal/xlog"
	"github.com/luxfi/swift/metrics"
	"github.com/luxfi/swift/picker"
	"github.com/luxfi/swift/recip"
	"github.com/luxfi/swift/sidecarstore"
	"github.com/luxfi/swift/swarmid"
)

// ErrAlreadyClosed is returned by any control-surface call made after Close.
var ErrAlreadyClosed = errors.New("transfer: already closed")

// Direction distinguishes the upload and download speed/byte counters
// SetMaxSpeed and GetCurrentSpeed operate on.
type Direction int

const (
	Up Direction = iota
	Down
)

// PickerKind selects which picker.Capability variant Open constructs.
type PickerKind int

const (
	// PickerSequential suits bulk, front-to-back downloads.
	PickerSequential PickerKind = iota
	// PickerRarestFirst suits on-demand/VOD swarms with random access.
	PickerRarestFirst
)

// speedSample is the byte count of one NoteBytes call and its time, used
// by GetCurrentSpeed's 1-second rolling window.
type speedSample struct {
	at    time.Time
	bytes uint64
}

// Transfer is one open swarm.
type Transfer struct {
	mu sync.Mutex

	swarm  swarmid.ID
	params config.Parameters
	log    log.Logger

	storage *FileStorage
	sidecar *sidecarstore.Store
	tree    channel.HashTree // *hashtree.Tree or *hashtree.ZeroState
	picker  picker.Capability
	policy  recip.Policy
	metrics *metrics.Metrics

	channels map[uint32]*channel.Channel

	trackerEndpoint    string
	trackerInterval    time.Duration
	trackerLastAttempt time.Time

	operational bool
	closed      bool

	pendingPeers []string

	maxUpBps, maxDownBps   float64
	upSamples, downSamples []speedSample

	progressCB    func(bin.Bin)
	progressLayer uint
	notified      *binmap.Binmap
}

// Options configures Open.
type Options struct {
	ChunkSize   uint32
	NumChunks   uint64 // 0 if not yet known (a growing/live swarm)
	ContentSize uint64 // exact byte length; 0 defaults to NumChunks*ChunkSize
	Tracker     string
	StorageDir string
	Policy    recip.Policy
	Picker    PickerKind
	Metrics   *metrics.Metrics
	Log       log.Logger
	Seed      bool // true if this transfer already holds the full content (zero-state)
}

// Open creates or resumes a transfer for swarm, per the base protocol's
// Open(swarm-id, chunk-size, tracker) control-surface entry point.
func Open(swarm swarmid.ID, opts Options) (*Transfer, error) {
	if opts.ChunkSize == 0 {
		return nil, fmt.Errorf("transfer: chunk size must be nonzero")
	}
	if opts.StorageDir == "" {
		opts.StorageDir = "."
	}
	if opts.Policy == nil {
		opts.Policy = recip.Neutral{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNoOp()
	}
	if opts.ContentSize == 0 && opts.NumChunks != 0 {
		opts.ContentSize = opts.NumChunks * uint64(opts.ChunkSize)
	}
	l := opts.Log
	if l == nil {
		l = xlog.NewNoOp()
	}
	l = xlog.Named(l, "transfer-"+swarm.String())

	storage, err := OpenFileStorage(filepath.Join(opts.StorageDir, swarm.String()), opts.ChunkSize)
	if err != nil {
		return nil, fmt.Errorf("transfer: open content file: %w", err)
	}
	sidecar, err := sidecarstore.Open(filepath.Join(opts.StorageDir, swarm.String()+".sidecar"), storage)
	if err != nil {
		_ = storage.Close()
		return nil, fmt.Errorf("transfer: open sidecar: %w", err)
	}
	root := hashtree.Hash(swarm)
	if err := sidecar.Init(root, opts.ChunkSize, opts.NumChunks, opts.ContentSize); err != nil {
		_ = storage.Close()
		_ = sidecar.Close()
		return nil, err
	}

	have, err := sidecar.ReadCheckpoint()
	if err != nil {
		_ = storage.Close()
		_ = sidecar.Close()
		return nil, fmt.Errorf("transfer: read checkpoint: %w", err)
	}

	var tree channel.HashTree
	if opts.Seed {
		tree = hashtree.NewZeroState(sidecar, opts.ChunkSize, opts.ContentSize)
	} else {
		tree = hashtree.New(root, opts.ChunkSize, opts.NumChunks, opts.ContentSize, storage)
	}

	var pick picker.Capability
	switch opts.Picker {
	case PickerRarestFirst:
		pick = picker.NewRarestFirst(have, opts.NumChunks)
	default:
		pick = picker.NewSequential(have, opts.NumChunks)
	}

	params := config.DefaultParameters()
	return &Transfer{
		swarm:           swarm,
		params:          params,
		log:             l,
		storage:         storage,
		sidecar:         sidecar,
		tree:            tree,
		picker:          pick,
		policy:          opts.Policy,
		metrics:         opts.Metrics,
		channels:        make(map[uint32]*channel.Channel),
		trackerEndpoint: opts.Tracker,
		trackerInterval: params.TrackerRetryIntervalStart,
		operational:     true,
		notified:        binmap.New(),
	}, nil
}

// --- channel.Owner ---

func (t *Transfer) HashTree() channel.HashTree { return t.tree }
func (t *Transfer) Storage() channel.Storage   { return t.storage }
func (t *Transfer) Picker() picker.Capability  { return t.picker }
func (t *Transfer) Policy() recip.Policy       { return t.policy }
func (t *Transfer) Config() *config.Parameters { return &t.params }
func (t *Transfer) Metrics() *metrics.Metrics  { return t.metrics }
func (t *Transfer) SwarmID() string            { return t.swarm.String() }
func (t *Transfer) MaxDownloadBytesPerSec() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.maxDownBps
}

// OutstandingHintChunksExcept sums every sibling channel's outstanding
// hint-in chunks, the swarm-wide figure a channel's rate_allowance
// subtracts its own share from.
func (t *Transfer) OutstandingHintChunksExcept(self *channel.Channel) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var sum uint64
	for _, c := range t.channels {
		if c == self {
			continue
		}
		sum += c.HintInSize()
	}
	return sum
}

// --- lifecycle ---

// NewChannel opens a new per-peer channel for this transfer, scoped under
// id (assigned by the dispatcher's channel table).
func (t *Transfer) NewChannel(id uint32, peerEndpoint string) *channel.Channel {
	t.mu.Lock()
	defer t.mu.Unlock()
	c := channel.New(id, peerEndpoint, t)
	c.SetLogger(t.log)
	t.channels[id] = c
	if t.metrics != nil {
		t.metrics.ChannelsOpen.Inc()
	}
	return c
}

// Channel looks up a channel by local id.
func (t *Transfer) Channel(id uint32) (*channel.Channel, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.channels[id]
	return c, ok
}

// Channels returns every live channel, for the dispatcher's cleanup tick.
func (t *Transfer) Channels() []*channel.Channel {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*channel.Channel, 0, len(t.channels))
	for _, c := range t.channels {
		out = append(out, c)
	}
	return out
}

// RemoveChannel drops id from the transfer's routing table once the
// dispatcher has finished destroying it.
func (t *Transfer) RemoveChannel(id uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.channels, id)
	if t.metrics != nil {
		t.metrics.ChannelsOpen.Dec()
	}
}

// IsOperational reports whether the transfer may still open channels and
// accept data, false after a storage write failure.
func (t *Transfer) IsOperational() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.operational
}

// MarkBroken flags the transfer non-operational after a storage write
// failure; the next dispatcher cleanup tick closes every channel with
// CloseStorage.
func (t *Transfer) MarkBroken(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.operational {
		return
	}
	t.operational = false
	t.log.Error("transfer marked non-operational", zap.Error(err))
}

// Close tears down every channel and releases the content file and
// sidecar. Per the clean-shutdown path, a final checkpoint is written
// first.
func (t *Transfer) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrAlreadyClosed
	}
	t.closed = true
	t.operational = false
	for _, c := range t.channels {
		c.Close(channel.CloseExplicit)
	}
	t.mu.Unlock()

	_ = t.Checkpoint()
	if err := t.storage.Close(); err != nil {
		return err
	}
	return t.sidecar.Close()
}

// Checkpoint persists the hash tree's ack-out set (chunks verified and
// written) as the swarm's on-disk checkpoint; a later Open loads it into
// the picker's have-set, so those chunks are not requested again.
func (t *Transfer) Checkpoint() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	tr, ok := t.tree.(*hashtree.Tree)
	if !ok {
		return nil // zero-state seeds have nothing to checkpoint
	}
	return t.sidecar.WriteCheckpoint(tr.AckOut())
}

// Seek maps a byte offset to the smallest covering base bin, ceiling to
// the next whole chunk, and forwards it to the picker: the random-access
// entry point original_source's swift.cpp exposes for a seeking player.
func (t *Transfer) Seek(offset uint64) {
	chunkSize := uint64(t.params.ChunkSize)
	chunk := offset / chunkSize
	if offset%chunkSize != 0 {
		chunk++
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.picker.Seek(bin.New(0, chunk))
}

// Size returns the swarm's exact total byte size, or 0 if not yet known.
func (t *Transfer) Size() uint64 {
	return t.tree.ContentSize()
}

// Complete reports whether every chunk has been verified.
func (t *Transfer) Complete() bool { return t.tree.IsComplete() }

// SeqComplete returns how many bytes, counting from offset 0, are verified
// with no gap.
func (t *Transfer) SeqComplete() uint64 { return t.tree.SeqComplete(0) }

// AddPeer records a peer endpoint to dial; the dispatcher drains this list
// on its next tick and opens a channel for each.
func (t *Transfer) AddPeer(endpoint string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pendingPeers = append(t.pendingPeers, endpoint)
}

// DrainPendingPeers returns and clears the list AddPeer has accumulated.
func (t *Transfer) DrainPendingPeers() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.pendingPeers
	t.pendingPeers = nil
	return out
}

// SetMaxSpeed bounds the transfer's upload or download rate; 0 means
// unbounded.
func (t *Transfer) SetMaxSpeed(dir Direction, bytesPerSec float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch dir {
	case Up:
		t.maxUpBps = bytesPerSec
	case Down:
		t.maxDownBps = bytesPerSec
	}
}

// NoteBytes records bytesMoved at now for the 1-second rolling speed
// window GetCurrentSpeed reads from. The dispatcher calls this with the
// size of every datagram it sends; nothing in this module records received
// bytes here.
func (t *Transfer) NoteBytes(dir Direction, bytesMoved uint64, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := now.Add(-time.Second)
	switch dir {
	case Up:
		t.upSamples = append(trimSamples(t.upSamples, cutoff), speedSample{now, bytesMoved})
	case Down:
		t.downSamples = append(trimSamples(t.downSamples, cutoff), speedSample{now, bytesMoved})
	}
}

func trimSamples(s []speedSample, cutoff time.Time) []speedSample {
	i := 0
	for i < len(s) && s[i].at.Before(cutoff) {
		i++
	}
	return s[i:]
}

// GetCurrentSpeed returns bytes/sec measured over the trailing second.
func (t *Transfer) GetCurrentSpeed(dir Direction) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var samples []speedSample
	switch dir {
	case Up:
		samples = t.upSamples
	case Down:
		samples = t.downSamples
	}
	cutoff := time.Now().Add(-time.Second)
	var sum uint64
	for _, s := range samples {
		if s.at.Before(cutoff) {
			continue
		}
		sum += s.bytes
	}
	return float64(sum)
}

// ProgressCallback registers cb to be called, from PollProgress, once per
// newly-filled bin of layer at least minLayer: the aggregation the base
// protocol's control surface describes ("fires once per bin of layer ≥ N")
// rather than once per chunk.
func (t *Transfer) ProgressCallback(minLayer uint, cb func(bin.Bin)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.progressLayer = minLayer
	t.progressCB = cb
}

// PollProgress checks the hash tree's verified ranges against what was
// last reported and fires the registered progress callback for anything
// new at or above the configured layer. The dispatcher calls this once per
// cleanup tick per transfer.
func (t *Transfer) PollProgress() {
	t.mu.Lock()
	tr, ok := t.tree.(*hashtree.Tree)
	cb := t.progressCB
	minLayer := t.progressLayer
	t.mu.Unlock()
	if !ok || cb == nil {
		return
	}
	for _, r := range tr.AckOut().FilledRanges() {
		if r.Layer() < minLayer {
			continue
		}
		t.mu.Lock()
		already := t.notified.IsFilled(r)
		if !already {
			_ = t.notified.Set(r)
		}
		t.mu.Unlock()
		if !already {
			cb(r)
		}
	}
}

// TrackerEndpoint returns the swarm's configured tracker, or "" if none.
func (t *Transfer) TrackerEndpoint() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.trackerEndpoint
}

// HasEstablishedPeer reports whether at least one channel has completed
// its handshake: the condition that resets the tracker retry clock.
func (t *Transfer) HasEstablishedPeer() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hasEstablishedPeerLocked()
}

// DueForTrackerRetry reports whether enough time has elapsed since the last
// attempt, per the exponential backoff between TrackerRetryIntervalStart
// and TrackerRetryIntervalMax, and if so advances the clock.
func (t *Transfer) DueForTrackerRetry(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.trackerEndpoint == "" {
		return false
	}
	if t.hasEstablishedPeerLocked() {
		t.trackerInterval = t.params.TrackerRetryIntervalStart
		return false
	}
	if now.Sub(t.trackerLastAttempt) < t.trackerInterval {
		return false
	}
	t.trackerLastAttempt = now
	t.trackerInterval = time.Duration(float64(t.trackerInterval) * t.params.TrackerRetryBackoffFactor)
	if t.trackerInterval > t.params.TrackerRetryIntervalMax {
		t.trackerInterval = t.params.TrackerRetryIntervalMax
	}
	return true
}

// hasEstablishedPeerLocked is HasEstablishedPeer for callers that already
// hold t.mu.
func (t *Transfer) hasEstablishedPeerLocked() bool {
	for _, c := range t.channels {
		if c.Established() {
			return true
		}
	}
	return false
}
