package future

import "go.uber.org/zap"

var log = zap.S().Named("future")

// recoverListenerPanic swallows a panic escaping a listener callback so it
// can never propagate into the thread that completed the future. It is
// logged rather than silently dropped.
func recoverListenerPanic() {
	if r := recover(); r != nil {
		log.Errorw("listener panicked", "panic", r)
	}
}
