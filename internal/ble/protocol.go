package ble

import "tinygo.org/x/bluetooth"

// AM43 GATT identifiers. The motor exposes a single control characteristic
// used for both commands and notifications.
var (
	serviceUUID        = bluetooth.New16BitUUID(0xFE50)
	characteristicUUID = bluetooth.New16BitUUID(0xFE51)
)

// AM43 frame constants. Every frame is
// [0x9a, command, length, data..., checksum] where checksum is the XOR of
// all preceding bytes.
const (
	frameHeader = 0x9a

	cmdMove        = 0x0a
	cmdSetPosition = 0x0d
	cmdBattery     = 0xa2
	cmdPosition    = 0xa7
	cmdLight       = 0xaa

	moveOpen  = 0xdd
	moveClose = 0xee
	moveStop  = 0xcc

	// queryPayload is the single-byte argument for the status queries.
	queryPayload = 0x01
)

// Notification payload offsets, counted from the frame header.
const (
	batteryByteIndex  = 7
	positionByteIndex = 5
	lightByteIndex    = 4
)

// encodeFrame builds a complete AM43 command frame with trailing checksum.
func encodeFrame(cmd byte, data []byte) []byte {
	frame := make([]byte, 0, 4+len(data))
	frame = append(frame, frameHeader, cmd, byte(len(data)))
	frame = append(frame, data...)

	var checksum byte
	for _, b := range frame {
		checksum ^= b
	}
	return append(frame, checksum)
}

// encodeMove builds a movement command frame (open, close or stop).
func encodeMove(direction byte) []byte {
	return encodeFrame(cmdMove, []byte{direction})
}

// encodeSetPosition builds a move-to-position frame. Position is a
// percentage, 0 fully open through 100 fully closed.
func encodeSetPosition(position int) []byte {
	if position < 0 {
		position = 0
	}
	if position > 100 {
		position = 100
	}
	return encodeFrame(cmdSetPosition, []byte{byte(position)})
}

// encodeQuery builds a status-query frame for one of the query commands.
func encodeQuery(cmd byte) []byte {
	return encodeFrame(cmd, []byte{queryPayload})
}

// decodeNotification extracts a reading from a notification frame.
//
// Returns the command byte, the value and true when the frame is a
// recognized status report long enough to carry its value byte. Anything
// else returns ok=false and is ignored by the caller; motors emit
// acknowledgement frames for movement commands that carry no reading.
func decodeNotification(buf []byte) (cmd byte, value int, ok bool) {
	if len(buf) < 2 || buf[0] != frameHeader {
		return 0, 0, false
	}

	cmd = buf[1]
	switch cmd {
	case cmdBattery:
		if len(buf) <= batteryByteIndex {
			return 0, 0, false
		}
		return cmd, int(buf[batteryByteIndex]), true
	case cmdPosition:
		if len(buf) <= positionByteIndex {
			return 0, 0, false
		}
		return cmd, int(buf[positionByteIndex]), true
	case cmdLight:
		if len(buf) <= lightByteIndex {
			return 0, 0, false
		}
		return cmd, int(buf[lightByteIndex]), true
	default:
		return 0, 0, false
	}
}
