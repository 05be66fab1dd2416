package hotkey

import (
	"encoding/binary"
	"strconv"
	"strings"
)

// evdev key codes for the stop combination.
const (
	evKey      = 1
	keyPress   = 1
	keyRelease = 0
	keyLCtrl   = 29
	keyRCtrl   = 97
	keyLShift  = 42
	keyRShift  = 54
	keySpace   = 57
)

type comboEvent int

const (
	comboNone comboEvent = iota
	comboDown
	comboUp
)

// comboTracker follows modifier state across raw key events. Space only
// counts as the combination while both Ctrl and Shift are held; autorepeat
// (value 2) never produces a second press.
type comboTracker struct {
	ctrl, shift, space bool
}

func (c *comboTracker) feed(code uint16, value int32) comboEvent {
	pressed := value == keyPress
	released := value == keyRelease

	switch code {
	case keyLCtrl, keyRCtrl:
		c.ctrl = pressed || (!released && c.ctrl)
	case keyLShift, keyRShift:
		c.shift = pressed || (!released && c.shift)
	case keySpace:
		if pressed && !c.space && c.ctrl && c.shift {
			c.space = true
			return comboDown
		}
		if released && c.space {
			c.space = false
			return comboUp
		}
	}
	return comboNone
}

// inputEventSize is sizeof(struct input_event) on 64-bit kernels: a
// 16-byte timeval, then type, code and value.
const inputEventSize = 24

// decodeEvents calls fn for every key event in buf.
func decodeEvents(buf []byte, fn func(code uint16, value int32)) {
	for i := 0; i+inputEventSize <= len(buf); i += inputEventSize {
		if binary.LittleEndian.Uint16(buf[i+16:]) != evKey {
			continue
		}
		fn(binary.LittleEndian.Uint16(buf[i+18:]), int32(binary.LittleEndian.Uint32(buf[i+20:])))
	}
}

// hasKey reports whether an evdev capabilities bitmap, as printed in
// /sys/class/input/eventN/device/capabilities/key, includes code. Words
// are hex longs, most significant first.
func hasKey(caps string, code int) bool {
	words := strings.Fields(caps)
	idx := code / strconv.IntSize
	if idx >= len(words) {
		return false
	}
	w, err := strconv.ParseUint(words[len(words)-1-idx], 16, strconv.IntSize)
	if err != nil {
		return false
	}
	return w&(1<<(code%strconv.IntSize)) != 0
}
