package trace

import (
	"errors"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"
)

// Reader reads events back from a CBOR trace stream.
type Reader struct {
	dec    *cbor.Decoder
	closer io.Closer
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: NewDecoder(r)}
}

// OpenFile opens a trace file written by FileLogger.
func OpenFile(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{dec: NewDecoder(f), closer: f}, nil
}

// Next returns the next event, or io.EOF at the end of the stream.
func (r *Reader) Next() (Event, error) {
	var event Event
	if err := r.dec.Decode(&event); err != nil {
		return Event{}, err
	}
	return event, nil
}

// ReadAll drains the stream.
func (r *Reader) ReadAll() ([]Event, error) {
	var events []Event
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}

// Close releases the underlying file, if any.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
