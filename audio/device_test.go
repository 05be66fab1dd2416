package audio

import (
	"errors"
	"io"
	"strings"
	"testing"
)

// keyReader returns one scripted key sequence per Read, like a raw terminal.
type keyReader struct{ keys [][]byte }

func (r *keyReader) Read(p []byte) (int, error) {
	if len(r.keys) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.keys[0])
	r.keys = r.keys[1:]
	return n, nil
}

var (
	up    = []byte{0x1b, '[', 'A'}
	down  = []byte{0x1b, '[', 'B'}
	enter = []byte{'\r'}
)

func TestPick(t *testing.T) {
	devices := []DeviceInfo{{Name: "Built-in"}, {Name: "USB Mic"}, {Name: "AirPods"}}

	tests := []struct {
		name    string
		keys    [][]byte
		want    int
		wantErr error
	}{
		{"enter takes first", [][]byte{enter}, 0, nil},
		{"arrow down", [][]byte{down, enter}, 1, nil},
		{"clamps at bottom", [][]byte{down, down, down, down, enter}, 2, nil},
		{"clamps at top", [][]byte{up, up, enter}, 0, nil},
		{"vim keys", [][]byte{{'j'}, {'j'}, {'k'}, enter}, 1, nil},
		{"ignores other keys", [][]byte{{'x'}, down, {'q'}, enter}, 1, nil},
		{"ctrl+c aborts", [][]byte{down, {3}}, 0, ErrSelectionAborted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out strings.Builder
			got, err := pick(devices, &keyReader{keys: tt.keys}, &out)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("picked %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPickInputClosed(t *testing.T) {
	var out strings.Builder
	if _, err := pick([]DeviceInfo{{Name: "a"}, {Name: "b"}}, &keyReader{}, &out); err == nil {
		t.Fatal("expected error when input ends")
	}
}

func TestPickMarksBluetooth(t *testing.T) {
	var out strings.Builder
	pick([]DeviceInfo{{Name: "Built-in"}, {Name: "AirPods Pro"}}, &keyReader{keys: [][]byte{enter}}, &out)
	if !strings.Contains(out.String(), "AirPods Pro \x1b[33m[⚠ Bluetooth") {
		t.Errorf("render = %q", out.String())
	}
}

func TestPCMBytesGain(t *testing.T) {
	tests := []struct {
		name string
		in   []int16
		gain int
		want []int16
	}{
		{"unity", []int16{1, -1, 1000}, 1, []int16{1, -1, 1000}},
		{"zero gain means unity", []int16{7}, 0, []int16{7}},
		{"amplifies", []int16{100, -100}, 3, []int16{300, -300}},
		{"clips", []int16{20000, -20000}, 2, []int16{32767, -32768}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := pcmBytes(tt.in, tt.gain)
			if len(data) != 2*len(tt.in) {
				t.Fatalf("len = %d, want %d", len(data), 2*len(tt.in))
			}
			for i, want := range tt.want {
				got := int16(uint16(data[2*i]) | uint16(data[2*i+1])<<8)
				if got != want {
					t.Errorf("sample %d = %d, want %d", i, got, want)
				}
			}
		})
	}
}
