// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"io"

	"github.com/gordonklaus/portaudio"
)

// PortAudio entry points, replaced in tests.
var (
	paInitializeFunc    = portaudio.Initialize
	paTerminateFunc     = portaudio.Terminate
	paDevicesFunc       = portaudio.Devices
	paDefaultOutputFunc = portaudio.DefaultOutputDevice
)

// Initialize sets up the PortAudio subsystem.
// This must be called before any PortAudio operation and paired with a Terminate() call.
func Initialize() error {
	if err := paInitializeFunc(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// Terminate cleanly shuts down the PortAudio subsystem.
func Terminate() error {
	if err := paTerminateFunc(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// BackendDevices is the enumeration result of one backend.
type BackendDevices struct {
	Backend string
	Devices []Device
	Err     error
}

// HostDevices enumerates every backend in order and releases each one
// afterwards. A backend that fails is reported in its entry; an error is
// returned only when all of them failed.
func HostDevices(backends ...Backend) ([]BackendDevices, error) {
	if len(backends) == 0 {
		return nil, ErrNoBackends
	}

	groups := make([]BackendDevices, 0, len(backends))
	var errs []error
	for _, b := range backends {
		devices, err := b.Devices()
		if err != nil {
			err = &EnumerationError{Backend: b.Name(), Err: err}
			errs = append(errs, err)
		}
		if cerr := b.Close(); cerr != nil && err == nil {
			err = cerr
		}
		groups = append(groups, BackendDevices{Backend: b.Name(), Devices: devices, Err: err})
	}

	if len(errs) == len(backends) {
		return groups, errors.Join(errs...)
	}
	return groups, nil
}

// ListDevices prints the enumeration result for each backend.
// For each device, it shows:
// - Name, with a marker for the system default
// - Sample rate and channel count when known before opening
func ListDevices(w io.Writer, groups []BackendDevices) {
	fmt.Fprintf(w, "\nLoopback Capture Devices\n\n")

	for _, g := range groups {
		fmt.Fprintf(w, "%s:\n", g.Backend)
		if g.Err != nil {
			fmt.Fprintf(w, "    unavailable: %v\n\n", g.Err)
			continue
		}
		for i, d := range g.Devices {
			marker := ""
			if d.Default {
				marker = " *"
			}
			fmt.Fprintf(w, "  [%d] %s%s\n", i, d.Name, marker)
			if d.SampleRate > 0 {
				fmt.Fprintf(w, "      Sample rate: %.0f Hz, Channels: %d\n", d.SampleRate, d.Channels)
			} else {
				fmt.Fprintf(w, "      Native format (resolved when opened)\n")
			}
		}
		fmt.Fprintln(w)
	}
}
