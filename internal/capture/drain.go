package capture

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/RenatoCabral2022/pcmtap/internal/audio"
	"github.com/RenatoCabral2022/pcmtap/internal/metrics"
	"github.com/RenatoCabral2022/pcmtap/internal/overflow"
)

// produce is the device callback. It runs on the device's real-time thread:
// no locks, no allocation, no logging.
func (s *Session) produce(data []byte) {
	n := len(data)
	if free := s.rb.Free(); n > free {
		// Drop whole frames only so the stream stays channel-aligned.
		n = free - free%s.frameBytes
	}
	written := s.rb.Write(data[:n])
	if lost := len(data) - written; lost > 0 {
		s.dropped.Add(uint64(lost))
	}
}

func (s *Session) drainLoop(quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
			s.drainOnce()
		}
	}
}

// drainOnce moves whole frames from the ring to the sink. It reads no more
// than the occupancy seen on entry, so a producer writing concurrently cannot
// keep it spinning. A trailing partial frame stays in the ring for the next
// pass. It returns the sink error raised during this pass, if any.
func (s *Session) drainOnce() error {
	s.drainMu.Lock()
	defer s.drainMu.Unlock()

	start := time.Now()
	s.ticks.Add(1)

	occupancy := s.rb.Available()
	metrics.RingOccupancyBytes.Set(float64(occupancy))
	s.monitor.Observe(occupancy, s.rb.Cap())
	s.publishDropped()

	budget := occupancy - occupancy%s.frameBytes
	var tickErr error
	for budget > 0 {
		want := min(budget, len(s.scratch))
		n := s.rb.Read(s.scratch[:want])
		if n == 0 {
			break
		}
		budget -= n
		metrics.DrainedBytesTotal.Add(float64(n))

		// A failed sink is not retried; keep draining so the producer is not
		// pushed into overflow.
		if s.sinkErr != nil {
			continue
		}

		out := audio.ConvertFloat32(s.pcm, s.scratch[:n], s.mapping)
		if err := s.sink.Append(s.pcm[:out]); err != nil {
			s.sinkErr = fmt.Errorf("%w: append: %w", ErrSink, err)
			tickErr = s.sinkErr
			metrics.SinkErrorsTotal.WithLabelValues("append").Inc()
			s.logger.Error("sink append failed, discarding further audio", zap.Error(err))
			s.reportErr(s.sinkErr)
			continue
		}
		s.pcmBytes.Add(uint64(out))
		metrics.PCMBytesTotal.Add(float64(out))
	}

	// A ring that empties during the drain re-arms the monitor.
	s.monitor.Observe(s.rb.Available(), s.rb.Cap())

	metrics.DrainDuration.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	return tickErr
}

func (s *Session) publishDropped() {
	total := s.dropped.Load()
	if delta := total - s.droppedReported; delta > 0 {
		metrics.DroppedBytesTotal.Add(float64(delta))
		s.logger.Debug("producer dropped frames",
			zap.Uint64("bytes", delta),
			zap.Uint64("frames", delta/uint64(s.frameBytes)),
		)
		s.droppedReported = total
	}
}

func (s *Session) onOverflowWarning(w overflow.Warning) {
	s.warnings.Add(1)
	metrics.OverflowWarningsTotal.Inc()
	s.logger.Warn("ring buffer above high-water mark",
		zap.Float64("percentFull", w.Percent),
		zap.Int("occupancy", w.Occupancy),
		zap.Int("capacity", w.Capacity),
		zap.Uint64("droppedBytes", s.dropped.Load()),
	)
}
