package protocol

// Encodable range of the 2-byte transform. The transform throws away
// the top two bits of the 16-bit value and rebuilds them from the sign
// on decode, so only values whose top three bits agree round-trip.
const (
	MinEncodable = -8192
	MaxEncodable = 8191
)

// EncodeInt16 re-encodes v as two wire bytes, little-endian order,
// neither of which can equal the frame marker: the high byte of v is
// shifted left one bit, the 16-bit whole is reassembled and shifted
// left once more, then split. The low output byte always has bit 0
// clear and the high output byte always has bit 1 clear, so neither
// can reach 0xFF.
//
// This is the transform the shipped firmware utility uses. Values
// outside [MinEncodable, MaxEncodable] alias into range; callers that
// care must range-check first.
func EncodeInt16(v int16) (byte, byte) {
	lo := byte(v)
	hi := byte(uint16(v) >> 8)
	wide := uint16(hi<<1)<<8 | uint16(lo)
	wide <<= 1
	return byte(wide), byte(wide >> 8)
}

// DecodeInt16 inverts EncodeInt16: shift the 16-bit whole right one
// bit arithmetically, then shift the high byte right once more keeping
// its sign bit, which restores the bits the encoder discarded.
func DecodeInt16(b0, b1 byte) int16 {
	wide := int16(uint16(b1)<<8|uint16(b0)) >> 1
	hi := byte(uint16(wide) >> 8)
	hi = hi&0x80 | hi>>1
	return int16(uint16(hi)<<8 | uint16(byte(wide)))
}
