//go:build !windows

package doctor

import "os/exec"

// resetTerminal restores cooked mode; evdev key grabs can leave it raw.
func resetTerminal() {
	exec.Command("stty", "sane").Run()
}
