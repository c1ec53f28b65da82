package audio

import (
	"errors"
	"sync"
	"time"
)

// ErrPlayerStopped is returned by Enqueue after Stop.
var ErrPlayerStopped = errors.New("player stopped")

// Chunk is one inbound chunk placed on the playback timeline.
type Chunk struct {
	Seq      uint64
	PCM      []byte
	Samples  int
	StartAt  time.Time
	Duration time.Duration
}

// End is when the chunk finishes playing.
func (c Chunk) End() time.Time { return c.StartAt.Add(c.Duration) }

// Sink plays chunks. Start is called when a chunk's start time arrives and
// End once it has finished; both run on timer goroutines.
type Sink interface {
	Start(Chunk)
	End(Chunk)
}

type node struct {
	chunk Chunk
	gen   uint64
	start Timer
	end   Timer
}

// Player decodes inbound chunks and hands them to a sink back to back.
// The queue is unbounded.
type Player struct {
	clock Clock
	sched *Scheduler
	sink  Sink
	rate  int

	mu     sync.Mutex
	alive  bool
	gen    uint64
	seq    uint64
	active map[uint64]*node
}

// NewPlayer creates a player for PCM16 chunks at rate.
func NewPlayer(clock Clock, sink Sink, rate int) *Player {
	if clock == nil {
		clock = RealClock{}
	}
	if rate <= 0 {
		rate = OutputSampleRate
	}
	return &Player{
		clock:  clock,
		sched:  NewScheduler(clock),
		sink:   sink,
		rate:   rate,
		alive:  true,
		active: make(map[uint64]*node),
	}
}

// Enqueue decodes pcm and schedules it right after the previous chunk.
func (p *Player) Enqueue(pcm []byte) (Chunk, error) {
	if len(pcm)%2 != 0 {
		return Chunk{}, ErrOddLength
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.alive {
		return Chunk{}, ErrPlayerStopped
	}

	samples := len(pcm) / 2
	d := Duration(samples, p.rate)
	p.seq++
	c := Chunk{
		Seq:      p.seq,
		PCM:      pcm,
		Samples:  samples,
		StartAt:  p.sched.Schedule(d),
		Duration: d,
	}

	n := &node{chunk: c, gen: p.gen}
	p.active[c.Seq] = n

	now := p.clock.Now()
	n.start = p.clock.AfterFunc(c.StartAt.Sub(now), func() { p.fireStart(n) })
	n.end = p.clock.AfterFunc(c.End().Sub(now), func() { p.fireEnd(n) })
	return c, nil
}

// current reports whether n may still fire. Caller holds the lock.
func (p *Player) current(n *node) bool {
	return p.alive && n.gen == p.gen && p.active[n.chunk.Seq] == n
}

func (p *Player) fireStart(n *node) {
	p.mu.Lock()
	ok := p.current(n)
	p.mu.Unlock()
	if ok {
		p.sink.Start(n.chunk)
	}
}

func (p *Player) fireEnd(n *node) {
	p.mu.Lock()
	ok := p.current(n)
	if ok {
		delete(p.active, n.chunk.Seq)
	}
	p.mu.Unlock()
	if ok {
		p.sink.End(n.chunk)
	}
}

// Active is the number of chunks scheduled or playing.
func (p *Player) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

// Interrupt drops every pending chunk; later chunks start immediately.
func (p *Player) Interrupt() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelLocked()
}

// Stop cancels pending playback for good. Timers already firing observe
// the stop and do nothing.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alive = false
	p.cancelLocked()
}

func (p *Player) cancelLocked() {
	p.gen++
	for seq, n := range p.active {
		n.start.Stop()
		n.end.Stop()
		delete(p.active, seq)
	}
	p.sched.Reset()
}
