// Package radio turns board serial lines into radio frames and implements
// the station's side of the exchange with trackers.
package radio

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/catfinder/internal/serialmux"
)

// ErrBadLine is returned for lines that are not well-formed frame reports.
var ErrBadLine = errors.New("malformed frame line")

// Frame is one buffer received over the air, with the link quality the board
// measured for it.
type Frame struct {
	Payload []byte
	RSSI    int     // dBm
	SNR     float64 // dB
}

// ParseFrameLine parses "RX,<hex payload>,<rssi>,<snr>".
func ParseFrameLine(line string) (Frame, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, serialmux.FramePrefix) {
		return Frame{}, fmt.Errorf("%w: missing %q prefix", ErrBadLine, serialmux.FramePrefix)
	}
	fields := strings.Split(line[len(serialmux.FramePrefix):], ",")
	if len(fields) != 3 {
		return Frame{}, fmt.Errorf("%w: want 3 fields, got %d", ErrBadLine, len(fields))
	}

	payload, err := hex.DecodeString(strings.TrimSpace(fields[0]))
	if err != nil {
		return Frame{}, fmt.Errorf("%w: payload: %v", ErrBadLine, err)
	}
	if len(payload) == 0 {
		return Frame{}, fmt.Errorf("%w: empty payload", ErrBadLine)
	}
	rssi, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil {
		return Frame{}, fmt.Errorf("%w: rssi: %v", ErrBadLine, err)
	}
	snr, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: snr: %v", ErrBadLine, err)
	}
	return Frame{Payload: payload, RSSI: rssi, SNR: snr}, nil
}

// String renders the frame in the board's line format.
func (f Frame) String() string {
	return fmt.Sprintf("%s%s,%d,%s", serialmux.FramePrefix, strings.ToUpper(hex.EncodeToString(f.Payload)),
		f.RSSI, strconv.FormatFloat(f.SNR, 'f', -1, 64))
}

// FormatTxCommand builds the command that makes the board transmit payload.
func FormatTxCommand(payload []byte) string {
	return serialmux.TxPrefix + strings.ToUpper(hex.EncodeToString(payload))
}
