// Package notify delivers coordinator messages to observers (player tabs)
// with best-effort semantics: an observer that has gone away is skipped,
// never retried.
package notify

import (
	"errors"

	"github.com/Taichi-iskw/yt-skip/internal/model"
)

// ErrUnreachable is returned by Deliver when the observer can no longer receive messages
var ErrUnreachable = errors.New("observer unreachable")

// Observer is anything that can receive coordinator messages
type Observer interface {
	ID() string
	Deliver(msg model.Message) error
}
