package protocol

import "fmt"

// Checksum folds buf with XOR. A finalized frame folds to zero when
// the checksum byte itself is included.
func Checksum(buf []byte) byte {
	var sum byte
	for _, b := range buf {
		sum ^= b
	}
	return sum
}

// Build assembles and finalizes a frame: [marker, opcode, length,
// payload..., checksum]. The total length is written at the opcode's
// length offset and the checksum is the XOR of every other byte (the
// checksum slot folds as its placeholder 0). Frames that would not fit
// the one-byte length field are rejected rather than emitted
// unfinalized.
func Build(opcode byte, payload []byte) ([]byte, error) {
	total := len(payload) + MinFrameLength
	if total > MaxFrameLength {
		return nil, fmt.Errorf("%w: frame length %d exceeds %d", ErrMalformedFrame, total, MaxFrameLength)
	}
	frame := make([]byte, 0, total)
	frame = append(frame, Marker, opcode, 0)
	frame = append(frame, payload...)
	frame = append(frame, 0)
	frame[LengthOffset(opcode)] = byte(len(frame))
	frame[len(frame)-1] = Checksum(frame)
	return frame, nil
}

// Parse validates a complete frame buffer and returns its opcode and
// payload (the bytes between the length field and the checksum). The
// payload is copied; buf may be reused by the caller.
func Parse(buf []byte) (*Message, error) {
	if len(buf) < MinFrameLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedFrame, len(buf))
	}
	if buf[PositionMarker] != Marker {
		return nil, fmt.Errorf("%w: bad start byte 0x%02x", ErrMalformedFrame, buf[PositionMarker])
	}
	opcode := buf[PositionOpcode]
	if declared := int(buf[LengthOffset(opcode)]); declared != len(buf) {
		return nil, fmt.Errorf("%w: declared length %d, buffer is %d bytes", ErrMalformedFrame, declared, len(buf))
	}
	if sum := Checksum(buf); sum != 0 {
		return nil, fmt.Errorf("%w: checksum residue 0x%02x", ErrMalformedFrame, sum)
	}
	// Payload sits between the length field and the checksum.
	start := LengthOffset(opcode) + 1
	payload := make([]byte, len(buf)-start-1)
	copy(payload, buf[start:len(buf)-1])
	raw := make([]byte, len(buf))
	copy(raw, buf)
	return &Message{Opcode: opcode, Payload: payload, Raw: raw}, nil
}
