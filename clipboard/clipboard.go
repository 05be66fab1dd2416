// Package clipboard copies the finished transcript to the system clipboard.
package clipboard

import (
	"errors"
	"strings"

	cb "github.com/atotto/clipboard"
)

var ErrUnavailable = errors.New("system clipboard unavailable (install xclip, xsel or wl-clipboard)")

func Available() bool {
	return !cb.Unsupported
}

func Copy(text string) error {
	if !Available() {
		return ErrUnavailable
	}
	return cb.WriteAll(text)
}

func Read() (string, error) {
	if !Available() {
		return "", ErrUnavailable
	}
	return cb.ReadAll()
}

// Diagnose round-trips a probe string and restores the previous contents.
func Diagnose() (string, error) {
	if !Available() {
		return "", ErrUnavailable
	}
	prev, err := cb.ReadAll()
	if err != nil {
		prev = ""
	}
	const probe = "interviewcap clipboard probe"
	if err := cb.WriteAll(probe); err != nil {
		return "", err
	}
	got, err := cb.ReadAll()
	cb.WriteAll(prev)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(got) != probe {
		return "", errors.New("clipboard read back different contents")
	}
	return "clipboard read/write ok", nil
}
