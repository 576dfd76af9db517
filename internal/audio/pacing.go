package audio

import (
	"fmt"
	"sync"
)

// Default ring geometry. Each arriving packet usually carries 1/8 second of
// sound, but packets do not arrive at precise intervals, so playback runs
// slightly delayed from real time behind a small buffer.
const (
	// DefaultCapacity is the number of clip slots in the pacing ring.
	DefaultCapacity = 16

	// DefaultDropThreshold is the buffered-clip count at which the ring
	// starts shedding: once downloads get this far ahead of playback,
	// clips are dropped to bound latency.
	DefaultDropThreshold = 8
)

// Ring is the audio pacing buffer bridging the connection reader (producer)
// and the playback consumer. Arriving PCM packets are converted to 8-bit
// samples and stored in fixed slots; the consumer drains them at playback
// speed. When downloads outrun playback past the drop threshold, the ring
// advances the consumer index without playing, trading continuity for
// bounded latency so the producer can never lap an unread slot.
type Ring struct {
	slots         [][]byte
	capacity      int
	dropThreshold int

	buffered       int
	playingIdx     int
	downloadingIdx int
	playing        bool

	// Counters for monitoring
	pushes uint64
	skips  uint64
	waits  uint64
	reuses uint64

	mu sync.Mutex
}

// PushResult reports what happened to an arriving packet.
type PushResult struct {
	// Start is true when the consumer should begin playback: nothing is
	// playing and exactly one clip is queued. Starting only on this edge
	// avoids restarting playback on every arrival while a backlog drains.
	Start bool

	// Skipped is true when the arrival pushed the ring past the drop
	// threshold and an older clip was shed.
	Skipped bool
}

// RingStats is a snapshot of the pacing counters for monitoring.
type RingStats struct {
	Buffered         int    `json:"buffered"`
	PlayingIndex     int    `json:"playing_index"`
	DownloadingIndex int    `json:"downloading_index"`
	Capacity         int    `json:"capacity"`
	DropThreshold    int    `json:"drop_threshold"`
	Playing          bool   `json:"playing"`
	Pushes           uint64 `json:"pushes"`
	Skips            uint64 `json:"skips"`
	Waits            uint64 `json:"waits"`
	SlotReuses       uint64 `json:"slot_reuses"`
}

// NewRing creates a pacing ring. Non-positive arguments select the defaults.
func NewRing(capacity, dropThreshold int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if dropThreshold <= 0 || dropThreshold > capacity {
		dropThreshold = capacity / 2
	}
	return &Ring{
		slots:         make([][]byte, capacity),
		capacity:      capacity,
		dropThreshold: dropThreshold,
	}
}

// Push converts an arriving 16-bit PCM payload and stores it in the next
// download slot, shedding the oldest unplayed clip if the ring is past the
// drop threshold.
func (r *Ring) Push(pcm16 []byte) (PushResult, error) {
	samples, err := ConvertPCM16To8(pcm16)
	if err != nil {
		return PushResult{}, fmt.Errorf("failed to convert audio payload: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.pushes++
	if r.pushes > uint64(r.capacity) {
		r.reuses++
	}

	r.slots[r.downloadingIdx] = samples
	r.downloadingIdx = (r.downloadingIdx + 1) % r.capacity
	r.buffered++

	var res PushResult
	if r.buffered >= r.dropThreshold {
		r.skips++
		r.buffered--
		r.playingIdx = (r.playingIdx + 1) % r.capacity
		res.Skipped = true
	}

	if !r.playing && r.buffered == 1 {
		res.Start = true
	}
	return res, nil
}

// NextClip returns the next buffered clip wrapped in a WAV container and
// advances the consumer index. When the ring is empty it records a wait and
// returns false; stalling is acceptable and the consumer retries on the
// next arrival.
func (r *Ring) NextClip() ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.buffered == 0 {
		r.waits++
		r.playing = false
		return nil, false
	}

	r.buffered--
	samples := r.slots[r.playingIdx]
	r.playingIdx = (r.playingIdx + 1) % r.capacity

	clip, err := EncodeClip(samples)
	if err != nil {
		// Empty slot, nothing worth playing.
		r.playing = false
		return nil, false
	}
	r.playing = true
	return clip, true
}

// PlaybackFinished is called by the consumer after each clip completes.
// It hands back the next clip if one is buffered.
func (r *Ring) PlaybackFinished() ([]byte, bool) {
	return r.NextClip()
}

// Reset clears all slots and counters. Called when a new session starts.
func (r *Ring) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.slots {
		r.slots[i] = nil
	}
	r.buffered = 0
	r.playingIdx = 0
	r.downloadingIdx = 0
	r.playing = false
	r.pushes = 0
	r.skips = 0
	r.waits = 0
	r.reuses = 0
}

// Stats returns a snapshot of the pacing counters.
func (r *Ring) Stats() RingStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return RingStats{
		Buffered:         r.buffered,
		PlayingIndex:     r.playingIdx,
		DownloadingIndex: r.downloadingIdx,
		Capacity:         r.capacity,
		DropThreshold:    r.dropThreshold,
		Playing:          r.playing,
		Pushes:           r.pushes,
		Skips:            r.skips,
		Waits:            r.waits,
		SlotReuses:       r.reuses,
	}
}
