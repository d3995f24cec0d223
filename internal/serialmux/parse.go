package serialmux

import (
	"fmt"
	"strings"
	"time"
)

// Line kinds printed by the station board.
const (
	EventTypeFrame  = "frame"  // RX,<hex>,<rssi>,<snr>
	EventTypeStatus = "status" // {"freq":...}
	EventTypeLog    = "log"
)

// FramePrefix starts every received-frame line; TxPrefix every transmit command.
const (
	FramePrefix = "RX,"
	TxPrefix    = "TX,"
)

// StatusCommand asks the board to print a JSON status line.
const StatusCommand = "?"

// ClassifyPayload returns the event type of one board line.
func ClassifyPayload(payload string) string {
	p := strings.TrimSpace(payload)
	switch {
	case strings.HasPrefix(p, FramePrefix):
		return EventTypeFrame
	case strings.HasPrefix(p, "{") && strings.HasSuffix(p, "}"):
		return EventTypeStatus
	default:
		return EventTypeLog
	}
}

// ClockCommand sets the board clock to t, as unix seconds.
func ClockCommand(t time.Time) string {
	return fmt.Sprintf("C=%d", t.Unix())
}
