package registry

import "os"

// SharedConfig is the Go-native form of the pre-populated shared
// memory block a configuration front-end stages for the executor: a
// root instruction list and a signal watch set, the two things the
// original shared-memory layout exposes at well-known indices. The
// executor entry (pkg/exe) attaches one at boot.
type SharedConfig struct {
	Instructions   []Instruction
	SignalWatchSet []os.Signal
}
