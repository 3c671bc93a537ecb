// Package evdev implements the device layer: opening a Linux input node,
// querying its capabilities, and parsing its protocol-B multitouch event
// stream into the per-touch snapshots the frame driver consumes.
package evdev

import "unsafe"

// Event types and codes we care about. Mirrors the subset the teacher's
// linux_input.go already defines, extended with the ABS_MT_* axes and the
// INPUT_PROP_* bits a touchpad reports that a single-touch stylus never
// needed.
const (
	evSyn = 0x00
	evKey = 0x01
	evAbs = 0x03
)

const (
	synReport = 0x00
)

const (
	btnLeft   = 0x110
	btnRight  = 0x111
	btnMiddle = 0x112
)

const (
	absX           = 0x00
	absY           = 0x01
	absMTSlot      = 0x2f
	absMTTouchMaj  = 0x30
	absMTPositionX = 0x35
	absMTPositionY = 0x36
	absMTTrackingID = 0x39
)

// INPUT_PROP_* bits, queried via EVIOCGPROP.
const (
	inputPropPointer   = 0x00
	inputPropDirect    = 0x01
	inputPropButtonpad = 0x02
	inputPropSemiMT    = 0x03
)

type absInfo struct {
	Value      int32
	Min        int32
	Max        int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}

// ioctl request encoding (Linux _IOC macro), identical to the teacher's
// linux_input.go helper, reused verbatim since the encoding itself does
// not vary between device classes.
const (
	iocNRBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14
	iocDirBits  = 2

	iocNRShift   = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits

	iocWrite = 1
	iocRead  = 2
)

func ioc(dir, typ, nr, size uintptr) uintptr {
	return (dir << iocDirShift) | (typ << iocTypeShift) | (nr << iocNRShift) | (size << iocSizeShift)
}

func evioCGAbs(axis int) uintptr {
	return ioc(iocRead, uintptr('E'), uintptr(0x40+axis), uintptr(unsafe.Sizeof(absInfo{})))
}

func evioCGBit(evType int, size int) uintptr {
	return ioc(iocRead, uintptr('E'), uintptr(0x20+evType), uintptr(size))
}

func evioCGProp(size int) uintptr {
	return ioc(iocRead, uintptr('E'), 0x09, uintptr(size))
}

func evioCGName(size int) uintptr {
	return ioc(iocRead, uintptr('E'), 0x06, uintptr(size))
}

func evioCGrab() uintptr {
	return ioc(iocWrite, uintptr('E'), 0x90, uintptr(unsafe.Sizeof(int32(0))))
}

func testBit(bits []byte, n int) bool {
	idx := n / 8
	if idx >= len(bits) {
		return false
	}
	return bits[idx]&(1<<uint(n%8)) != 0
}
