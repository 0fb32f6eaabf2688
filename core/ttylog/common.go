// Package ttylog records terminal sessions and plays them back.
package ttylog

import (
	"io"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Stream identifies which side of the terminal an entry came from.
type Stream int

const (
	StreamOutput Stream = iota
	StreamInput
)

// Entry is a single chunk of terminal traffic.
type Entry struct {
	TimestampMicros int64
	Stream          Stream
	Data            []byte
}

// LogSink receives log events.
type LogSink func(e *Entry) error

// LogSource adapts log readers.
type LogSource interface {
	// Next fetches the next available log entry. It returns io.EOF if the source
	// has no more log entries.
	Next() (*Entry, error)
}

// NewRealTimePlayback plays back the results in real-time.
// If maxSleep > 0, it's used as the maximum duration to pause.
func NewRealTimePlayback(maxSleep time.Duration, next LogSink) LogSink {
	var once sync.Once
	var prevTimeMicros int64

	return func(entry *Entry) error {
		once.Do(func() {
			prevTimeMicros = entry.TimestampMicros
		})

		delta := entry.TimestampMicros - prevTimeMicros
		prevTimeMicros = entry.TimestampMicros

		if maxSleep > 0 {
			sleepDuration := time.Duration(delta) * time.Microsecond
			if sleepDuration > maxSleep {
				sleepDuration = maxSleep
			}
			time.Sleep(sleepDuration)
		}

		return next(entry)
	}
}

// NewClientOutput writes what the client saw to w, input is skipped because
// the terminal already echoed it.
func NewClientOutput(w io.Writer) LogSink {
	return func(entry *Entry) error {
		if entry.Stream != StreamOutput {
			return nil
		}
		_, err := w.Write(entry.Data)
		return err
	}
}

// Replay reads a stream of events to a callback.
func Replay(recording LogSource, callback LogSink) (err error) {
	for {
		entry, err := recording.Next()
		switch {
		case err == io.EOF:
			return nil
		case err != nil:
			return err
		}

		if err := callback(entry); err != nil {
			return err
		}
	}
}

// Recorder tees terminal traffic into a LogSink. Failures to record are
// logged and never interrupt the session.
type Recorder struct {
	mutex  sync.Mutex
	output LogSink
	log    hclog.Logger

	// Now returns the time of an event.
	Now func() time.Time
}

// NewRecorder creates a recorder that forwards all events to output.
func NewRecorder(output LogSink, log hclog.Logger) *Recorder {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Recorder{
		output: output,
		log:    log,
		Now:    time.Now,
	}
}

func (r *Recorder) record(stream Stream, data []byte) {
	if len(data) == 0 {
		return
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	err := r.output(&Entry{
		TimestampMicros: r.Now().UnixMicro(),
		Stream:          stream,
		Data:            append([]byte(nil), data...),
	})
	if err != nil {
		r.log.Warn("recording terminal", "error", err)
	}
}

// Writer records everything successfully written to w as output.
func (r *Recorder) Writer(w io.Writer) io.Writer {
	return &recorderWriter{r: r, wrapped: w}
}

// Reader records everything read from rd as input.
func (r *Recorder) Reader(rd io.Reader) io.Reader {
	return &recorderReader{r: r, wrapped: rd}
}

type recorderReader struct {
	r       *Recorder
	wrapped io.Reader
}

var _ io.Reader = (*recorderReader)(nil)

func (rc *recorderReader) Read(p []byte) (int, error) {
	n, err := rc.wrapped.Read(p)
	rc.r.record(StreamInput, p[:n])
	return n, err
}

type recorderWriter struct {
	r       *Recorder
	wrapped io.Writer
}

var _ io.Writer = (*recorderWriter)(nil)

func (rc *recorderWriter) Write(p []byte) (int, error) {
	n, err := rc.wrapped.Write(p)
	rc.r.record(StreamOutput, p[:n])
	return n, err
}
