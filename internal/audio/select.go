// SPDX-License-Identifier: MIT
package audio

import (
	"strings"
)

// SelectDevice picks the capture device for a session. A device whose name
// contains want wins, then the one flagged Default, then the first listed.
// An empty want skips the name match.
func SelectDevice(devices []Device, want string) (Device, error) {
	if len(devices) == 0 {
		return Device{}, ErrNoDevice
	}

	if want = strings.TrimSpace(want); want != "" {
		needle := strings.ToLower(want)
		for _, d := range devices {
			if strings.Contains(strings.ToLower(d.Name), needle) {
				return d, nil
			}
		}
	}

	for _, d := range devices {
		if d.Default {
			return d, nil
		}
	}
	return devices[0], nil
}

// loopbackLabel strips the host API's loopback marker from a device name.
func loopbackLabel(name string) string {
	name = strings.ReplaceAll(name, "[Loopback]", "")
	return strings.TrimSpace(name)
}

// mixerLabel marks a mixer input as a loopback source unless its name
// already says so.
func mixerLabel(name string) string {
	name = strings.TrimSpace(name)
	if strings.Contains(strings.ToLower(name), "loopback") {
		return name
	}
	return name + " (loopback)"
}

// nameMatches reports whether either name contains the other, ignoring case.
func nameMatches(a, b string) bool {
	a, b = strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
