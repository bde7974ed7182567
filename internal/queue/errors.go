package queue

import "errors"

var errPanic = errors.New("queue: job panicked")
