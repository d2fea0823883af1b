// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"deskviz/internal/analysis"
	"deskviz/internal/audio"
)

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Magic             | [2]byte        | 2            | "DV"                    |
| Version           | uint8          | 1            | packetVersion           |
| Flags             | uint8          | 1            | bit 0: available        |
| Sequence Number   | uint64         | 8            | Snapshot sequence       |
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Levels            | [4]float32     | 16           | volume, bass, mid, treble |
| Device Length     | uint16         | 2            | Bytes of device label   |
| Device            | []byte         | N            | UTF-8 device label      |
+-----------------------------------------------------------------------------+
*/

const (
	packetVersion  = 1
	headerSize     = 2 + 1 + 1 + 8 + 8 + 16 + 2
	maxDeviceLen   = 512
	flagAvailable  = 1 << 0
	magic0, magic1 = 'D', 'V'
)

var ErrMalformedPacket = errors.New("malformed snapshot packet")

// AppendSnapshot appends the wire form of s to dst. Device labels longer
// than 512 bytes are truncated at a rune boundary.
func AppendSnapshot(dst []byte, s audio.Snapshot) []byte {
	device := truncateLabel(s.Device, maxDeviceLen)

	var flags uint8
	if s.Available {
		flags |= flagAvailable
	}
	var ts int64
	if !s.Updated.IsZero() {
		ts = s.Updated.UnixNano()
	}

	dst = append(dst, magic0, magic1, packetVersion, flags)
	dst = binary.BigEndian.AppendUint64(dst, s.Seq)
	dst = binary.BigEndian.AppendUint64(dst, uint64(ts))
	for _, v := range [4]float64{s.Volume, s.Bass, s.Mid, s.Treble} {
		dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(float32(v)))
	}
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(device)))
	return append(dst, device...)
}

// truncateLabel cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncateLabel(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// EncodeSnapshot returns the wire form of s.
func EncodeSnapshot(s audio.Snapshot) []byte {
	return AppendSnapshot(make([]byte, 0, headerSize+len(s.Device)), s)
}

// DecodeSnapshot parses a packet produced by EncodeSnapshot. Levels come
// back at float32 precision.
func DecodeSnapshot(p []byte) (audio.Snapshot, error) {
	if len(p) < headerSize || p[0] != magic0 || p[1] != magic1 {
		return audio.Snapshot{}, ErrMalformedPacket
	}
	if p[2] != packetVersion {
		return audio.Snapshot{}, fmt.Errorf("%w: version %d", ErrMalformedPacket, p[2])
	}

	s := audio.Snapshot{Available: p[3]&flagAvailable != 0}
	s.Seq = binary.BigEndian.Uint64(p[4:12])
	if ts := int64(binary.BigEndian.Uint64(p[12:20])); ts != 0 {
		s.Updated = time.Unix(0, ts)
	}

	var lv [4]float64
	for i := range lv {
		off := 20 + 4*i
		lv[i] = float64(math.Float32frombits(binary.BigEndian.Uint32(p[off : off+4])))
	}
	s.Levels = analysis.Levels{Volume: lv[0], Bass: lv[1], Mid: lv[2], Treble: lv[3]}

	n := int(binary.BigEndian.Uint16(p[36:38]))
	if len(p) != headerSize+n {
		return audio.Snapshot{}, fmt.Errorf("%w: device length %d, payload %d", ErrMalformedPacket, n, len(p)-headerSize)
	}
	s.Device = string(p[headerSize:])
	return s, nil
}
