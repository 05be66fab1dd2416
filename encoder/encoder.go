package encoder

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

const (
	FormatFLAC = "flac"
	FormatWAV  = "wav"
)

// EncodeFLAC encodes mono 16-bit samples into an in-memory FLAC stream.
func EncodeFLAC(samples []int16, sampleRate int) ([]byte, error) {
	var buf bytes.Buffer
	enc, err := NewFlac(&buf, sampleRate)
	if err != nil {
		return nil, err
	}
	if err := enc.Write(samples); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("closing flac encoder: %w", err)
	}
	return buf.Bytes(), nil
}

// Encode encodes samples in the named container format.
func Encode(format string, samples []int16, sampleRate int) ([]byte, error) {
	switch format {
	case FormatFLAC, "":
		return EncodeFLAC(samples, sampleRate)
	case FormatWAV:
		return EncodeWAV(samples, sampleRate)
	default:
		return nil, fmt.Errorf("unsupported audio format %q", format)
	}
}

// FormatFromPath maps an artifact file extension to a format name.
func FormatFromPath(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".flac":
		return FormatFLAC, nil
	case ".wav":
		return FormatWAV, nil
	default:
		return "", fmt.Errorf("unsupported audio artifact extension %q", filepath.Ext(path))
	}
}

// WriteFile persists samples to path, choosing the container from the extension.
func WriteFile(path string, samples []int16, sampleRate int) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}

	if format == FormatWAV {
		return writeWAV(path, samples, sampleRate)
	}

	data, err := EncodeFLAC(samples, sampleRate)
	if err != nil {
		return err
	}
	return writeArtifact(path, func(f *os.File) error {
		if _, err := f.Write(data); err != nil {
			return fmt.Errorf("writing flac artifact: %w", err)
		}
		return nil
	})
}

// writeArtifact creates path and fills it with write. A partially written
// file is removed.
func writeArtifact(path string, write func(f *os.File) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating artifact: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(path)
		}
	}()
	if err = write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
