package ui

import (
	"context"

	"github.com/eiannone/keyboard"
	"github.com/pkg/errors"
)

// Runes emitted for non-printing keys.
const (
	KeyEsc   rune = 27
	KeyCtrlC rune = 3
	KeyEnter rune = '\r'
)

// KeyEvents puts the terminal in raw mode and emits single key presses
// without waiting for Enter. The terminal is restored and the channel closed
// when ctx is done or reading fails.
func KeyEvents(ctx context.Context) (<-chan rune, error) {
	events, err := keyboard.GetKeys(16)
	if err != nil {
		return nil, errors.Wrap(err, "open keyboard")
	}
	out := make(chan rune, 64)
	go func() {
		defer close(out)
		defer keyboard.Close()
		for {
			var ev keyboard.KeyEvent
			var ok bool
			select {
			case <-ctx.Done():
				return
			case ev, ok = <-events:
			}
			if !ok || ev.Err != nil {
				return
			}
			r := ev.Rune
			switch ev.Key {
			case 0:
			case keyboard.KeyEsc:
				r = KeyEsc
			case keyboard.KeyCtrlC:
				r = KeyCtrlC
			case keyboard.KeyEnter:
				r = KeyEnter
			default:
				continue
			}
			select {
			case out <- r:
			default:
			}
		}
	}()
	return out, nil
}

// DrainKeys consumes any immediately available keys to avoid accidental
// triggers.
func DrainKeys(ch <-chan rune) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
