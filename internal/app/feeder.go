// ABOUTME: Real-time feeder that drives a session's capture side from a file or tone
// ABOUTME: Converts channel layout and sample rate, then paces delivery against the wall clock
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vbanbridge/vbanbridge-go/pkg/audio"
	"github.com/vbanbridge/vbanbridge-go/pkg/audio/resample"
	"github.com/vbanbridge/vbanbridge-go/pkg/audio/source"
)

const (
	// DefaultFeedPeriod is how often the feeder tops up the session
	DefaultFeedPeriod = 5 * time.Millisecond

	// maxBurst caps one delivery after a stall so the capture buffer is not flooded
	maxBurst = 100 * time.Millisecond
)

// Sink accepts interleaved samples in the session format
type Sink interface {
	OnCapture(samples []int16)
}

// Feeder paces a Source into a Sink in real time
type Feeder struct {
	src    source.Source
	sink   Sink
	format audio.Format
	period time.Duration
	log    *logrus.Entry

	rs       *resample.Resampler
	raw      []int16
	remapped []int16
	out      []int16
	sent     int64
}

// NewFeeder converts src to format and delivers it to sink
func NewFeeder(src source.Source, format audio.Format, sink Sink, logger *logrus.Entry) *Feeder {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Feeder{
		src:    src,
		sink:   sink,
		format: format,
		period: DefaultFeedPeriod,
		log:    logger.WithField("component", "feeder"),
		rs:     resample.New(src.SampleRate(), format.SampleRate, format.Channels),
	}
}

// Run feeds until ctx is cancelled or the source ends. A source that ends
// cleanly with io.EOF returns nil.
func (f *Feeder) Run(ctx context.Context) error {
	title, artist, _ := f.src.Metadata()
	f.log.WithFields(logrus.Fields{
		"title":       title,
		"artist":      artist,
		"source_rate": f.src.SampleRate(),
		"source_ch":   f.src.Channels(),
		"rate":        f.format.SampleRate,
		"channels":    f.format.Channels,
	}).Info("Feeding source")

	ticker := time.NewTicker(f.period)
	defer ticker.Stop()

	start := time.Now()
	burst := int64(maxBurst.Seconds() * float64(f.format.SampleRate))

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		due := int64(time.Since(start).Seconds()*float64(f.format.SampleRate)) - f.sent
		if due <= 0 {
			continue
		}
		if due > burst {
			f.log.WithField("frames", due-burst).Debug("Feeder fell behind, skipping ahead")
			f.sent += due - burst
			due = burst
		}

		frames, err := f.step(int(due))
		f.sent += int64(frames)
		if errors.Is(err, io.EOF) {
			f.log.Info("Source finished")
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// step delivers up to frames output frames and returns how many were sent
func (f *Feeder) step(frames int) (int, error) {
	outCh := f.format.Channels
	srcCh := f.src.Channels()

	inFrames := f.rs.InputSamplesNeeded(frames*outCh) / outCh
	if inFrames < 1 {
		inFrames = 1
	}
	if need := inFrames * srcCh; cap(f.raw) < need {
		f.raw = make([]int16, need)
	}
	raw := f.raw[:inFrames*srcCh]

	f.out = f.out[:0]
	n, err := f.src.Read(raw)
	if n > 0 {
		f.remapped = audio.RemapChannels(f.remapped, raw[:n], srcCh, outCh)
		f.out = f.rs.Resample(f.out, f.remapped)
		if len(f.out) > 0 {
			f.sink.OnCapture(f.out)
		}
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			return len(f.out) / outCh, io.EOF
		}
		return 0, fmt.Errorf("read source: %w", err)
	}
	return len(f.out) / outCh, nil
}
