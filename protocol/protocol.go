// Package protocol implements the V-Sido CONNECT wire protocol
package protocol

// Marker is the frame start byte. It is reserved: a well-formed frame
// carries it only at offset 0, and the receiver resynchronizes on it
// wherever it appears in the stream. Payload values that could collide
// with it must go through the 2-byte transform (EncodeInt16).
const Marker = 0xFF

// Command and response opcodes understood by the V-Sido CONNECT board.
const (
	OpAngle        = 0x6F // 'o' set servo target angles
	OpCompliance   = 0x63 // 'c' set servo compliance slopes
	OpMinMax       = 0x6D // 'm' set servo angle limits
	OpServoInfo    = 0x64 // 'd' request servo state
	OpFeedbackID   = 0x66 // 'f' select servos for feedback
	OpGetFeedback  = 0x72 // 'r' request feedback
	OpSetVID       = 0x73 // 's' write a board variable
	OpGetVID       = 0x67 // 'g' read a board variable
	OpWriteFlash   = 0x77 // 'w' persist variables to flash
	OpGPIO         = 0x69 // 'i' set GPIO outputs
	OpPWM          = 0x70 // 'p' set PWM pulse widths
	OpCheckServo   = 0x6A // 'j' enumerate connected servos
	OpIK           = 0x6B // 'k' inverse kinematics set/get
	OpWalk         = 0x74 // 't' walk command
	OpAcceleration = 0x61 // 'a' request accelerometer values
	OpAck          = 0x21 // '!' bare acknowledgement
)

// Frame geometry. A frame is [marker, opcode, length, payload...,
// checksum]; the length field holds the total frame length and the
// checksum is the XOR of every other byte.
const (
	PositionMarker = 0
	PositionOpcode = 1

	// MinFrameLength is marker + opcode + length + checksum, the
	// smallest frame that has room to be finalized.
	MinFrameLength = 4

	// MaxFrameLength is bounded by the length byte itself, which may
	// never equal the marker value.
	MaxFrameLength = 0xFE
)

// Message is a parsed, checksum-verified frame.
type Message struct {
	Opcode  byte
	Payload []byte
	Raw     []byte
}

// shortHeaderOpcodes is the firmware's enumerated exception list:
// frames with these opcodes carry the length field at offset 1 instead
// of 2. None of the command opcodes above belong to it.
var shortHeaderOpcodes = map[byte]bool{
	0x0C: true,
	0x0D: true,
	0x53: true,
	0x54: true,
}

// LengthOffset returns the position of the total-length field for a
// frame with the given opcode.
func LengthOffset(opcode byte) int {
	if shortHeaderOpcodes[opcode] {
		return 1
	}
	return 2
}
