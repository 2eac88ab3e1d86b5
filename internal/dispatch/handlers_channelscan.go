package dispatch

import (
	"context"

	"github.com/halvarsson/xvdrd/internal/protocol"
)

// handleChannelscanNotSupported backs OPCODE 140/143/144 (SUPPORTED/START/
// STOP). A tuner scan needs a DVB frontend this rewrite never drives
// directly — livestream.DevicePicker hands out already-tuned devices, not
// raw frontends to sweep — so every channel-scan opcode answers
// NOT_SUPPORTED rather than pretending to start a scan that goes nowhere.
func handleChannelscanNotSupported(context.Context, *Dispatcher, *Session, *protocol.PayloadReader) ([]byte, *protocol.Error) {
	return codedReply(protocol.KindNotSupported, nil), nil
}
