package clipboard

import (
	"errors"
	"testing"
)

func TestCopyRoundTrip(t *testing.T) {
	if !Available() {
		if err := Copy("x"); !errors.Is(err, ErrUnavailable) {
			t.Fatalf("Copy without clipboard: err = %v", err)
		}
		t.Skip("no system clipboard")
	}
	prev, _ := Read()
	t.Cleanup(func() { Copy(prev) })

	if err := Copy("tell me about yourself"); err != nil {
		t.Skipf("clipboard not usable here: %v", err)
	}
	got, err := Read()
	if err != nil {
		t.Fatal(err)
	}
	if got != "tell me about yourself" {
		t.Errorf("Read = %q", got)
	}
}
