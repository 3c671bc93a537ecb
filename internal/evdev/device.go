package evdev

import (
	"fmt"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Capabilities is everything §6.2/§6.3's device-dependent decisions need,
// queried once at open time.
type Capabilities struct {
	NumSlots int
	SemiMT   bool
	// IsClickpad is true when INPUT_PROP_BUTTONPAD is set: a single
	// physical button under the whole pad surface, reported via a
	// synthetic BUTTON_PRESS rather than per-corner buttons.
	IsClickpad bool
	// HasLeftButton reports a physical BTN_LEFT key, used for §4.4's
	// tap_enabled default (enabled iff no physical left button).
	HasLeftButton bool
	// SynapticsSerial is a name/bus heuristic for the Synaptics serial
	// touchpad quirk (§4.2a): such devices can report more raw fingers
	// than slots it actually tracks.
	SynapticsSerial bool
	// ResolutionXPerMM / ResolutionYPerMM come from input_absinfo's
	// Resolution field (units per mm) for ABS_MT_POSITION_X/Y, used by
	// the millimeters() physical-distance helper.
	ResolutionXPerMM int32
	ResolutionYPerMM int32
}

// Device wraps an open evdev node.
type Device struct {
	fd   int
	path string
	caps Capabilities
}

// Open opens path, queries its capabilities, and optionally grabs it
// exclusively (EVIOCGRAB), mirroring the teacher's tryGrab but made
// conditional since a touchpad daemon, unlike the stylus bridge, must
// grab to stop the kernel's own pointer emulation from double-firing.
func Open(path string, grab bool) (*Device, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	d := &Device{fd: fd, path: path}
	d.caps = queryCapabilities(fd, path)
	if grab {
		if err := tryGrab(fd); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("grab %s: %w", path, err)
		}
	}
	return d, nil
}

// Close releases the underlying file descriptor.
func (d *Device) Close() error {
	if d.fd < 0 {
		return nil
	}
	err := unix.Close(d.fd)
	d.fd = -1
	return err
}

// Fd exposes the raw descriptor for the reader's poll loop.
func (d *Device) Fd() int { return d.fd }

// Path returns the device node this was opened from.
func (d *Device) Path() string { return d.path }

// Capabilities returns the capabilities queried at open time.
func (d *Device) Capabilities() Capabilities { return d.caps }

func tryGrab(fd int) error {
	var one int32 = 1
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), evioCGrab(), uintptr(unsafe.Pointer(&one)))
	if errno != 0 {
		return errno
	}
	return nil
}

func getAbsInfo(fd int, axis int) (absInfo, error) {
	var info absInfo
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), evioCGAbs(axis), uintptr(unsafe.Pointer(&info)))
	if errno != 0 {
		return absInfo{}, errno
	}
	return info, nil
}

func getName(fd int) string {
	buf := make([]byte, 256)
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), evioCGName(len(buf)), uintptr(unsafe.Pointer(&buf[0])))
	if errno != 0 {
		return ""
	}
	n := 0
	for n < len(buf) && buf[n] != 0 {
		n++
	}
	return string(buf[:n])
}

func getProps(fd int) []byte {
	buf := make([]byte, 8)
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), evioCGProp(len(buf)), uintptr(unsafe.Pointer(&buf[0])))
	if errno != 0 {
		return nil
	}
	return buf
}

func getKeyBits(fd int) []byte {
	buf := make([]byte, 96) // enough bits for BTN_LEFT..BTN_TASK
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), evioCGBit(evKey, len(buf)), uintptr(unsafe.Pointer(&buf[0])))
	if errno != 0 {
		return nil
	}
	return buf
}

func queryCapabilities(fd int, path string) Capabilities {
	var caps Capabilities

	if slot, err := getAbsInfo(fd, absMTSlot); err == nil {
		caps.NumSlots = int(slot.Max-slot.Min) + 1
	} else {
		caps.NumSlots = 1
	}

	props := getProps(fd)
	caps.SemiMT = testBit(props, inputPropSemiMT)
	caps.IsClickpad = testBit(props, inputPropButtonpad)

	keys := getKeyBits(fd)
	caps.HasLeftButton = testBit(keys, btnLeft)

	if x, err := getAbsInfo(fd, absMTPositionX); err == nil {
		caps.ResolutionXPerMM = x.Resolution
	}
	if y, err := getAbsInfo(fd, absMTPositionY); err == nil {
		caps.ResolutionYPerMM = y.Resolution
	}

	name := strings.ToLower(getName(fd))
	caps.SynapticsSerial = strings.Contains(name, "synaptics") && strings.Contains(path, "serio")

	return caps
}
