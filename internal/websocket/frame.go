package websocket

import (
	"github.com/tidwall/gjson"
)

// Control frame types clients may send.
const ControlStatusUpdate = "status_update"

// ControlFrame is a client control message the server recognizes.
type ControlFrame struct {
	Type   string
	Status string
}

// InboundFrame is the tagged result of decoding a client frame. Control
// is nil for anything the server does not recognize — non-JSON payloads,
// unknown types — which is a normal variant, not an error. Raw always
// holds the original bytes.
type InboundFrame struct {
	Control *ControlFrame
	Raw     []byte
}

// DecodeInbound classifies one inbound text frame. It peeks at the type
// field without a full unmarshal; malformed JSON falls through to the
// unrecognized variant.
func DecodeInbound(data []byte) InboundFrame {
	if !gjson.ValidBytes(data) {
		return InboundFrame{Raw: data}
	}

	switch gjson.GetBytes(data, "type").String() {
	case ControlStatusUpdate:
		status := gjson.GetBytes(data, "status").String()
		if status == "" {
			status = "online"
		}
		return InboundFrame{
			Control: &ControlFrame{Type: ControlStatusUpdate, Status: status},
			Raw:     data,
		}
	}

	return InboundFrame{Raw: data}
}
