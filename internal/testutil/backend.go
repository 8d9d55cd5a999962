package testutil

import (
	"image"
	"slices"
	"sync"

	"github.com/MeKo-Tech/labelscan/internal/recognizer"
)

// RecognizeFunc scripts a FakeBackend. call is zero-based across the
// backend's lifetime.
type RecognizeFunc func(call int, img image.Image) (recognizer.Recognition, error)

// FakeBackend is an in-memory recognizer.Backend for tests.
type FakeBackend struct {
	// ConfigErr, when set, is returned by every Configure call.
	ConfigErr error

	mu        sync.Mutex
	fn        RecognizeFunc
	configs   [][]string
	sizes     []image.Point
	calls     int
	closed    bool
	gate      chan struct{}
	started   chan struct{}
	maxActive int
	active    int
}

// NewFakeBackend returns a backend driven by fn.
func NewFakeBackend(fn RecognizeFunc) *FakeBackend {
	return &FakeBackend{fn: fn}
}

// StaticBackend returns the same recognition for every call.
func StaticBackend(rec recognizer.Recognition) *FakeBackend {
	return NewFakeBackend(func(int, image.Image) (recognizer.Recognition, error) { return rec, nil })
}

// Gate makes every Recognize call block until Release is called. Started
// receives one value per call that reached the gate.
func (f *FakeBackend) Gate() (started <-chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
	f.started = make(chan struct{}, 64)
	return f.started
}

// Release unblocks gated calls.
func (f *FakeBackend) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gate != nil {
		close(f.gate)
		f.gate = nil
	}
}

func (f *FakeBackend) Configure(langs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ConfigErr != nil {
		return f.ConfigErr
	}
	f.configs = append(f.configs, slices.Clone(langs))
	return nil
}

func (f *FakeBackend) Recognize(img image.Image) (recognizer.Recognition, error) {
	f.mu.Lock()
	call := f.calls
	f.calls++
	f.sizes = append(f.sizes, img.Bounds().Size())
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	gate, started := f.gate, f.started
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if gate != nil {
		started <- struct{}{}
		<-gate
	}
	return f.fn(call, img)
}

func (f *FakeBackend) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Calls returns the number of Recognize invocations.
func (f *FakeBackend) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Configs returns every language set passed to Configure, in order.
func (f *FakeBackend) Configs() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.configs)
}

// Sizes returns the dimensions of every image passed to Recognize.
func (f *FakeBackend) Sizes() []image.Point {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.sizes)
}

// MaxActive reports the highest number of overlapping Recognize calls.
func (f *FakeBackend) MaxActive() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxActive
}

// Closed reports whether Close was called.
func (f *FakeBackend) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
