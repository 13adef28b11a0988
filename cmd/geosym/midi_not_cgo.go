//go:build !cgo

package main

// No MIDI driver without cgo; port listing is empty and the mirror is disabled
const midiDriver = ""
