// Package compute models the parallel compute fabric the tree search runs
// on: a set of devices, each with an asynchronous serial command stream.
//
// Submitted jobs run in submission order per stream but concurrently across
// devices. Callers never block on submission; values produced by submitted
// jobs may only be read after an explicit barrier (Stream.Sync or
// Context.WaitComplete). This mirrors stream-scheduled accelerator queues
// while staying an ordinary goroutine pool underneath.
package compute

import (
	"sync"

	"github.com/LeanderLXZ/catboost/pkg/errors"
)

// Stream is an asynchronous serial command queue. Jobs execute one at a
// time, in submission order.
type Stream struct {
	jobs chan func()
	done sync.WaitGroup
}

func newStream() *Stream {
	s := &Stream{jobs: make(chan func(), 256)}
	s.done.Add(1)
	go func() {
		defer s.done.Done()
		for job := range s.jobs {
			job()
		}
	}()
	return s
}

// Submit enqueues job without waiting for it to run.
func (s *Stream) Submit(job func()) {
	s.jobs <- job
}

// Sync blocks until every previously submitted job has finished.
func (s *Stream) Sync() {
	marker := make(chan struct{})
	s.jobs <- func() { close(marker) }
	<-marker
}

func (s *Stream) close() {
	close(s.jobs)
	s.done.Wait()
}

// Device is one unit of the compute fabric. Each device owns a single
// serial stream; feature shards are bound to devices by the dataset layer.
type Device struct {
	id     int
	stream *Stream
}

// ID returns the device index within its context.
func (d *Device) ID() int { return d.id }

// Stream returns the device command queue.
func (d *Device) Stream() *Stream { return d.stream }

// Context is the explicit compute handle passed through component
// constructors. It owns the device set and the profiler; there is no
// process-wide fabric state.
type Context struct {
	devices  []*Device
	profiler *Profiler

	closeOnce sync.Once
}

// NewContext creates a context with deviceCount devices.
func NewContext(deviceCount int) (*Context, error) {
	if deviceCount <= 0 {
		return nil, errors.NewValueError("NewContext", "device count must be positive")
	}
	ctx := &Context{
		devices:  make([]*Device, deviceCount),
		profiler: newProfiler(),
	}
	for i := range ctx.devices {
		ctx.devices[i] = &Device{id: i, stream: newStream()}
	}
	return ctx, nil
}

// DeviceCount returns the number of devices.
func (c *Context) DeviceCount() int { return len(c.devices) }

// Device returns device i.
func (c *Context) Device(i int) *Device {
	errors.Checkf(i >= 0 && i < len(c.devices), "Context.Device", "device %d out of range", i)
	return c.devices[i]
}

// Devices returns all devices in id order.
func (c *Context) Devices() []*Device { return c.devices }

// Profiler returns the context profiler.
func (c *Context) Profiler() *Profiler { return c.profiler }

// WaitComplete is the cross-device barrier: it returns once every job
// submitted to any device stream before the call has finished.
func (c *Context) WaitComplete() {
	var wg sync.WaitGroup
	for _, d := range c.devices {
		wg.Add(1)
		go func(d *Device) {
			defer wg.Done()
			d.stream.Sync()
		}(d)
	}
	wg.Wait()
}

// Close drains and shuts down all device streams. The context must not be
// used afterwards.
func (c *Context) Close() {
	c.closeOnce.Do(func() {
		for _, d := range c.devices {
			d.stream.close()
		}
	})
}
