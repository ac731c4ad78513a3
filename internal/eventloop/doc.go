// Package eventloop runs callbacks one at a time on a single goroutine.
//
// Producers (transport read loops, timers, API calls) Post closures that
// never block them; the loop executes the closures serially in the order
// they were posted. Code running inside a closure may therefore mutate
// loop-owned state without further locking.
package eventloop
