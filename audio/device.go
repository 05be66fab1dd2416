package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// ErrSelectionAborted is returned when the user leaves the picker with Ctrl+C.
var ErrSelectionAborted = errors.New("device selection aborted")

// SelectDevice lets the user pick the interview microphone from a list in
// the terminal. A single device is returned without prompting.
func SelectDevice(ctx Context) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	switch len(devices) {
	case 0:
		return nil, ErrNoDevice
	case 1:
		return &devices[0], nil
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	i, err := pick(devices, os.Stdin, os.Stdout)
	if err != nil {
		return nil, err
	}
	return &devices[i], nil
}

type key int

const (
	keyOther key = iota
	keyUp
	keyDown
	keyEnter
	keyAbort
)

// decodeKey maps one read from a raw terminal to a picker key. Arrow keys
// arrive as three-byte escape sequences.
func decodeKey(b []byte) key {
	if len(b) == 1 {
		switch b[0] {
		case '\r', '\n':
			return keyEnter
		case 3: // Ctrl+C
			return keyAbort
		case 'k':
			return keyUp
		case 'j':
			return keyDown
		}
	}
	if len(b) == 3 && b[0] == 0x1b && b[1] == '[' {
		switch b[2] {
		case 'A':
			return keyUp
		case 'B':
			return keyDown
		}
	}
	return keyOther
}

// pick runs the picker loop and returns the chosen index.
func pick(devices []DeviceInfo, in io.Reader, out io.Writer) (int, error) {
	cursor := 0
	render := func() {
		fmt.Fprint(out, "\r\x1b[J")
		fmt.Fprint(out, "Select interview microphone (↑/↓, Enter to confirm):\r\n\r\n")
		for i, d := range devices {
			tag := ""
			if IsBluetooth(d.Name) {
				tag = " \x1b[33m[⚠ Bluetooth: lower audio quality]\x1b[0m"
			}
			if i == cursor {
				fmt.Fprintf(out, "  \x1b[1;36m▶ %s%s\x1b[0m\r\n", d.Name, tag)
			} else {
				fmt.Fprintf(out, "    %s%s\r\n", d.Name, tag)
			}
		}
	}
	render()

	buf := make([]byte, 3)
	for {
		n, err := in.Read(buf)
		if err != nil {
			return 0, fmt.Errorf("reading input: %w", err)
		}
		switch decodeKey(buf[:n]) {
		case keyEnter:
			fmt.Fprint(out, "\r\n")
			return cursor, nil
		case keyAbort:
			fmt.Fprint(out, "\r\n")
			return 0, ErrSelectionAborted
		case keyUp:
			cursor = max(cursor-1, 0)
		case keyDown:
			cursor = min(cursor+1, len(devices)-1)
		}
		fmt.Fprintf(out, "\x1b[%dA", len(devices)+2)
		render()
	}
}
