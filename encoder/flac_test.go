package encoder

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func tone(n int, amp float64) []int16 {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(amp * math.Sin(2*math.Pi*440*float64(i)/SampleRate))
	}
	return samples
}

func TestFlacEncoder(t *testing.T) {
	tests := []struct {
		name    string
		samples []int16
	}{
		{"several blocks", tone(SampleRate*2+123, 8000)},
		{"partial block", tone(BlockSize/4, 1000)},
		{"empty", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			enc, err := NewFlac(&buf, SampleRate)
			if err != nil {
				t.Fatalf("NewFlac: %v", err)
			}
			// Feed in uneven chunks; Write must re-block them.
			for rest := tt.samples; len(rest) > 0; {
				n := min(len(rest), 1000)
				if err := enc.Write(rest[:n]); err != nil {
					t.Fatalf("Write: %v", err)
				}
				rest = rest[n:]
			}
			if err := enc.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}
			if enc.Samples() != uint64(len(tt.samples)) {
				t.Errorf("Samples = %d, want %d", enc.Samples(), len(tt.samples))
			}
			if buf.Len() < 4 || buf.String()[:4] != "fLaC" {
				t.Fatal("output does not start with FLAC magic")
			}
		})
	}
}

func TestWriteFileDecodes(t *testing.T) {
	samples := tone(SampleRate+BlockSize/3, 12000)

	for _, ext := range []string{".flac", ".wav"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "answer"+ext)
			if err := WriteFile(path, samples, SampleRate); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}

			pcm, err := DecodeFile(path)
			if err != nil {
				t.Fatalf("DecodeFile: %v", err)
			}
			if pcm.SampleRate != SampleRate {
				t.Errorf("SampleRate = %d, want %d", pcm.SampleRate, SampleRate)
			}
			if len(pcm.Samples) != len(samples) {
				t.Fatalf("decoded %d samples, want %d", len(pcm.Samples), len(samples))
			}
			for i, s := range samples {
				if pcm.Samples[i] != float64(s) {
					t.Fatalf("sample %d = %v, want %d", i, pcm.Samples[i], s)
				}
			}
		})
	}
}

func TestFormatFromPath(t *testing.T) {
	for _, tt := range []struct{ path, want string }{
		{"a.flac", FormatFLAC},
		{"/tmp/B.WAV", FormatWAV},
	} {
		t.Run(tt.path, func(t *testing.T) {
			got, err := FormatFromPath(tt.path)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
	if _, err := FormatFromPath("a.mp3"); err == nil {
		t.Error("expected error for mp3 extension")
	}
}

func TestDecodeFileUnknownContainer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.flac")
	if err := os.WriteFile(path, []byte("not audio at all"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeFile(path); err == nil {
		t.Error("expected error for unknown container")
	}
}

func TestEncodeWAVMatchesFile(t *testing.T) {
	samples := tone(800, 5000)
	data, err := EncodeWAV(samples, SampleRate)
	if err != nil {
		t.Fatal(err)
	}
	if string(data[:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatalf("bad header % x", data[:12])
	}
	if want := 44 + len(samples)*2; len(data) != want {
		t.Errorf("len = %d, want %d", len(data), want)
	}

	path := filepath.Join(t.TempDir(), "a.wav")
	if err := WriteFile(path, samples, SampleRate); err != nil {
		t.Fatal(err)
	}
	onDisk, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(onDisk) != string(data) {
		t.Error("in-memory wav differs from file output")
	}
}

func TestEncodeUnknownFormat(t *testing.T) {
	if _, err := Encode("ogg", nil, SampleRate); err == nil {
		t.Error("expected error for ogg")
	}
}

func TestWriteArtifactRemovesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.wav")
	errDisk := errors.New("disk full")

	err := writeArtifact(path, func(f *os.File) error {
		if _, err := f.Write([]byte("RIFF")); err != nil {
			t.Fatal(err)
		}
		return errDisk
	})
	if !errors.Is(err, errDisk) {
		t.Fatalf("err = %v, want %v", err, errDisk)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("partial artifact left behind: stat err = %v", err)
	}

	if err := writeArtifact(path, func(f *os.File) error { return nil }); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("successful write removed the artifact: %v", err)
	}
}
