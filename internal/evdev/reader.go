package evdev

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
)

// eventParser parses a stream of Linux input_event structs, whose size
// depends on the kernel's timeval width (24 bytes where the timeval
// fields are 64-bit, 16 where they are 32-bit) — identical in spirit to the teacher's
// linux_input.go inputParser, generalized to also report EV_SYN so the
// reader can detect SYN_REPORT.
type eventParser struct {
	buf []byte
	sz  int
}

func (p *eventParser) feed(chunk []byte, cb func(etype, code uint16, value int32)) {
	p.buf = append(p.buf, chunk...)
	if p.sz == 0 {
		if len(p.buf) >= 48 && len(p.buf)%24 == 0 {
			p.sz = 24
		} else if len(p.buf) >= 32 && len(p.buf)%16 == 0 {
			p.sz = 16
		} else if len(p.buf) >= 24 {
			p.sz = 24
		}
	}
	for p.sz != 0 && len(p.buf) >= p.sz {
		ev := p.buf[:p.sz]
		p.buf = p.buf[p.sz:]
		var etype, code uint16
		var value int32
		if p.sz == 24 {
			etype = binary.LittleEndian.Uint16(ev[16:18])
			code = binary.LittleEndian.Uint16(ev[18:20])
			value = int32(binary.LittleEndian.Uint32(ev[20:24]))
		} else {
			etype = binary.LittleEndian.Uint16(ev[8:10])
			code = binary.LittleEndian.Uint16(ev[10:12])
			value = int32(binary.LittleEndian.Uint32(ev[12:16]))
		}
		cb(etype, code, value)
	}
}

// Reader drives a SlotTracker off an open Device and publishes one Sample
// per SYN_REPORT on Samples().
type Reader struct {
	dev     *Device
	tracker *SlotTracker
	parser  eventParser
	samples chan Sample
	done    chan struct{}
}

// NewReader builds a reader for dev, sized from its queried capabilities.
func NewReader(dev *Device) *Reader {
	caps := dev.Capabilities()
	return &Reader{
		dev:     dev,
		tracker: NewSlotTracker(caps.NumSlots, caps.IsClickpad),
		samples: make(chan Sample, 16),
		done:    make(chan struct{}),
	}
}

// Samples is the channel the daemon's event loop selects on.
func (r *Reader) Samples() <-chan Sample { return r.samples }

// ActiveCount reports how many slots are currently tracking a touch, for
// the semi-MT finger-count-changed quirk (§4.2a).
func (r *Reader) ActiveCount() int { return r.tracker.ActiveCount() }

// Run blocks, polling the device fd and feeding the parser, until stop
// is closed or a read error occurs. It is meant to run in
// its own goroutine; Samples() is safe to select on concurrently.
func (r *Reader) Run(stop <-chan struct{}) error {
	defer close(r.samples)
	buf := make([]byte, 4096)
	for {
		select {
		case <-stop:
			return nil
		default:
		}

		pfd := []unix.PollFd{{Fd: int32(r.dev.Fd()), Events: unix.POLLIN}}
		n, err := unix.Poll(pfd, 200)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("poll: %w", err)
		}
		if n == 0 || pfd[0].Revents&unix.POLLIN == 0 {
			continue
		}

		nread, err := unix.Read(r.dev.Fd(), buf)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
				continue
			}
			return fmt.Errorf("read: %w", err)
		}
		if nread <= 0 {
			continue
		}

		r.parser.feed(buf[:nread], func(etype, code uint16, value int32) {
			if etype == evSyn && code == synReport {
				sample := r.tracker.Flush()
				select {
				case r.samples <- sample:
				case <-stop:
				}
				return
			}
			r.tracker.Feed(etype, code, value)
		})
	}
}
