package audio

import (
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	starts []Chunk
	ends   []Chunk
}

func (s *recordingSink) Start(c Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts = append(s.starts, c)
}

func (s *recordingSink) End(c Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ends = append(s.ends, c)
}

var epoch = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

func pcmOf(samples int) []byte { return make([]byte, samples*2) }

func TestPCMRoundTrip(t *testing.T) {
	in := []float32{0, 0.5, -0.5, 0.999, -1, 1.7, -3}
	out, err := DecodePCM16(EncodePCM16(in))
	require.NoError(t, err)
	require.Len(t, out, len(in))

	for i, s := range in {
		want := float64(s)
		if want > 1 {
			want = 1
		}
		if want < -1 {
			want = -1
		}
		assert.InDelta(t, want, float64(out[i]), 1e-4, "sample %d", i)
	}
}

func TestDecodeRejectsOddLength(t *testing.T) {
	_, err := DecodePCM16([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrOddLength)
}

func TestFloat32RoundTrip(t *testing.T) {
	in := []float32{0.25, -0.75, float32(math.Pi) / 4}
	out, err := DecodeFloat32(EncodeFloat32(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestNewBlob(t *testing.T) {
	b := NewBlob(make([]float32, 10), InputSampleRate)
	assert.Equal(t, "audio/pcm;rate=16000", b.MIMEType)
	assert.Len(t, b.Data, 20)
}

func TestFramerPreservesOrder(t *testing.T) {
	f := NewFramer(4)
	var got []float32
	for i := 0; i < 10; i++ {
		for _, frame := range f.Write([]float32{float32(i)}) {
			require.Len(t, frame, 4)
			got = append(got, frame...)
		}
	}
	assert.Equal(t, []float32{0, 1, 2, 3, 4, 5, 6, 7}, got)
	assert.Equal(t, 2, f.Pending())
	assert.Equal(t, []float32{8, 9}, f.Flush())
	assert.Nil(t, f.Flush())

	frames := NewFramer(0).Write(make([]float32, 2*DefaultFrameSize+1))
	assert.Len(t, frames, 2)
}

func TestDuration(t *testing.T) {
	assert.Equal(t, time.Second, Duration(24000, 24000))
	assert.Equal(t, 256*time.Millisecond, Duration(4096, 16000))
	assert.Equal(t, time.Duration(0), Duration(10, 0))
}

func TestSchedulerStartsWhenPreviousEnds(t *testing.T) {
	clock := NewFakeClock(epoch)
	s := NewScheduler(clock)

	assert.Equal(t, epoch, s.Schedule(time.Second))
	assert.Equal(t, epoch.Add(time.Second), s.Schedule(time.Second))

	clock.Advance(5 * time.Second)
	assert.Equal(t, epoch.Add(5*time.Second), s.Schedule(time.Second), "late chunk starts now")
}

// For arbitrary arrival delays and chunk sizes, start times never decrease
// and playback intervals never overlap.
func TestScheduledChunksNeverOverlap(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for run := 0; run < 50; run++ {
		clock := NewFakeClock(epoch)
		sink := &recordingSink{}
		p := NewPlayer(clock, sink, OutputSampleRate)

		var scheduled []Chunk
		for i := 0; i < 40; i++ {
			clock.Advance(time.Duration(rng.Intn(300)) * time.Millisecond)
			c, err := p.Enqueue(pcmOf(1 + rng.Intn(6000)))
			require.NoError(t, err)
			assert.False(t, c.StartAt.Before(clock.Now()), "chunk scheduled in the past")
			scheduled = append(scheduled, c)
		}
		clock.Advance(time.Hour)

		for i := 1; i < len(scheduled); i++ {
			prev, cur := scheduled[i-1], scheduled[i]
			assert.False(t, cur.StartAt.Before(prev.StartAt))
			assert.False(t, cur.StartAt.Before(prev.End()), "chunks %d and %d overlap", i-1, i)
		}

		require.Len(t, sink.starts, len(scheduled))
		for i, c := range sink.starts {
			assert.Equal(t, scheduled[i].Seq, c.Seq, "played out of order")
		}
		assert.Equal(t, 0, p.Active())
	}
}

func TestChunksArrivingInTimeAreGapFree(t *testing.T) {
	clock := NewFakeClock(epoch)
	p := NewPlayer(clock, &recordingSink{}, OutputSampleRate)

	first, err := p.Enqueue(pcmOf(2400))
	require.NoError(t, err)
	clock.Advance(50 * time.Millisecond)
	second, err := p.Enqueue(pcmOf(2400))
	require.NoError(t, err)

	assert.Equal(t, first.End(), second.StartAt)
}

func TestStopPreventsPendingStarts(t *testing.T) {
	clock := NewFakeClock(epoch)
	sink := &recordingSink{}
	p := NewPlayer(clock, sink, OutputSampleRate)

	for i := 0; i < 3; i++ {
		_, err := p.Enqueue(pcmOf(24000))
		require.NoError(t, err)
	}
	clock.Advance(500 * time.Millisecond)
	require.Len(t, sink.starts, 1)

	p.Stop()
	clock.Advance(time.Minute)

	assert.Len(t, sink.starts, 1)
	assert.Empty(t, sink.ends)
	assert.Equal(t, 0, clock.Pending())

	_, err := p.Enqueue(pcmOf(10))
	assert.ErrorIs(t, err, ErrPlayerStopped)
}

func TestInterruptRestartsTimeline(t *testing.T) {
	clock := NewFakeClock(epoch)
	sink := &recordingSink{}
	p := NewPlayer(clock, sink, OutputSampleRate)

	_, err := p.Enqueue(pcmOf(24000 * 10))
	require.NoError(t, err)
	clock.Advance(time.Second)
	p.Interrupt()

	c, err := p.Enqueue(pcmOf(2400))
	require.NoError(t, err)
	assert.Equal(t, clock.Now(), c.StartAt)
}

func TestActiveSetReleasesOnEnd(t *testing.T) {
	clock := NewFakeClock(epoch)
	sink := &recordingSink{}
	p := NewPlayer(clock, sink, OutputSampleRate)

	_, err := p.Enqueue(pcmOf(2400))
	require.NoError(t, err)
	assert.Equal(t, 1, p.Active())

	clock.Advance(100 * time.Millisecond)
	assert.Equal(t, 0, p.Active())
	assert.Len(t, sink.ends, 1)
}
