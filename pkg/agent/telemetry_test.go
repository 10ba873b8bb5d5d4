package agent

import (
	"testing"
	"time"

	"github.com/okonor/parley/pkg/logger"
	"github.com/okonor/parley/pkg/webrtc"
)

func TestFirstSampleHasNoBitrate(t *testing.T) {
	s := NewSampler(logger.Default())
	if _, ok := s.Observe("p", webrtc.Stats{BytesReceived: 1000}, time.Now()); ok {
		t.Fatal("the first cut has no baseline to diff against")
	}
}

func TestFlatCounterMeansZeroBitrate(t *testing.T) {
	s := NewSampler(logger.Default())
	t0 := time.Now()
	s.Observe("p", webrtc.Stats{BytesReceived: 1000}, t0)
	snap, ok := s.Observe("p", webrtc.Stats{BytesReceived: 1000}, t0.Add(3*time.Second))
	if !ok {
		t.Fatal("the second cut must report")
	}
	if snap.BitrateKbps != 0 {
		t.Fatalf("no new bytes means zero kbps, got %v", snap.BitrateKbps)
	}
}

func TestBitrateMath(t *testing.T) {
	s := NewSampler(logger.Default())
	t0 := time.Now()
	s.Observe("p", webrtc.Stats{BytesReceived: 1000}, t0)
	snap, ok := s.Observe("p", webrtc.Stats{BytesReceived: 4000}, t0.Add(time.Second))
	if !ok {
		t.Fatal("the second cut must report")
	}
	// 3000 bytes over one second is 24000 bits
	if snap.BitrateKbps != 24 {
		t.Fatalf("expected 24 kbps, got %v", snap.BitrateKbps)
	}
}

func TestSnapshotCarriesFrameStatsAndTime(t *testing.T) {
	s := NewSampler(logger.Default())
	t0 := time.Now()
	s.Observe("p", webrtc.Stats{BytesReceived: 1000}, t0)
	t1 := t0.Add(time.Second)
	cut := webrtc.Stats{
		BytesReceived:   2000,
		FrameWidth:      1280,
		FrameHeight:     720,
		FramesPerSecond: 30,
		Codec:           "video/VP8",
	}
	snap, ok := s.Observe("p", cut, t1)
	if !ok {
		t.Fatal("the second cut must report")
	}
	if snap.FrameWidth != 1280 || snap.FrameHeight != 720 || snap.FramesPerSecond != 30 {
		t.Fatalf("frame stats must pass through, got %dx%d @ %v", snap.FrameWidth, snap.FrameHeight, snap.FramesPerSecond)
	}
	if !snap.At.Equal(t1) {
		t.Fatalf("snapshot must be stamped with the cut time, got %v", snap.At)
	}
}

func TestCounterResetStartsOver(t *testing.T) {
	s := NewSampler(logger.Default())
	t0 := time.Now()
	s.Observe("p", webrtc.Stats{BytesReceived: 4000}, t0)
	if _, ok := s.Observe("p", webrtc.Stats{BytesReceived: 1000}, t0.Add(time.Second)); ok {
		t.Fatal("a rewound counter must reset the baseline, not report")
	}
	snap, ok := s.Observe("p", webrtc.Stats{BytesReceived: 2000}, t0.Add(2*time.Second))
	if !ok || snap.BitrateKbps != 8 {
		t.Fatalf("expected 8 kbps off the fresh baseline, got %v %v", snap.BitrateKbps, ok)
	}
}

func TestForgetDropsBaseline(t *testing.T) {
	s := NewSampler(logger.Default())
	t0 := time.Now()
	s.Observe("p", webrtc.Stats{BytesReceived: 1000}, t0)
	s.Forget("p")
	if _, ok := s.Observe("p", webrtc.Stats{BytesReceived: 2000}, t0.Add(time.Second)); ok {
		t.Fatal("a forgotten peer starts from scratch")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	s := NewSampler(logger.Default())
	done := make(chan struct{})
	go func() {
		s.Run(time.Millisecond, func() map[string]webrtc.Stats { return nil })
		close(done)
	}()
	s.Stop()
	s.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("the sampling loop must exit on stop")
	}
}
