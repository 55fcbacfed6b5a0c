// Package dedupe tracks short-lived claims on string keys so that the same
// piece of work is not started twice while a first run is still going.
package dedupe
