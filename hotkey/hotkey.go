// Package hotkey watches the global stop key that ends a recording early.
package hotkey

// Label names the key combination in prompts.
const Label = "Ctrl+Shift+Space"

type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}
