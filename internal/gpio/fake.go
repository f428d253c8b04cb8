package gpio

import "errors"

// FakeReader is a test double that returns scripted motion readings.
// Not safe for concurrent use; the poller reads it from a single goroutine.
type FakeReader struct {
	// Samples contains scripted readings.
	// Each call to Read() consumes the next sample.
	Samples []bool

	// index tracks current position in Samples
	index int

	// Reads counts calls to Read, including failed ones.
	Reads int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error

	// FailAfter, if positive, makes every Read after that many successful
	// reads return ReadError (or a generic error when ReadError is nil).
	FailAfter int
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples ...bool) *FakeReader {
	return &FakeReader{Samples: samples}
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeReader) Read() (bool, error) {
	f.Reads++

	if f.FailAfter > 0 && f.Reads > f.FailAfter {
		if f.ReadError != nil {
			return false, f.ReadError
		}
		return false, errors.New("scripted read failure")
	}

	if f.FailAfter == 0 && f.ReadError != nil {
		return false, f.ReadError
	}

	if len(f.Samples) == 0 {
		return false, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}

	return sample, nil
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}

// Reset resets the reader to the beginning of samples.
func (f *FakeReader) Reset() {
	f.index = 0
	f.Reads = 0
	f.Closed = false
}
