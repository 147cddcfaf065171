package robot

import (
	"fmt"
	"math"
	"time"

	"vsido/protocol"
)

// Inverse-kinematics request flags carried in the first payload byte
// of an OpIK frame.
const (
	ikFlagSet         = 0x01
	ikFlagSetFeedback = 0x09
	ikFlagGet         = 0x08
)

// coordinateOffset shifts walk speeds and IK coordinates into the
// unsigned byte range on the wire.
const coordinateOffset = 100

// Board variable IDs used by the GPIO and PWM configuration commands.
const (
	vidIOMode       = 3
	vidUsePWM       = 5
	vidPWMCycleHigh = 6
	vidPWMCycleLow  = 7
)

// ServoAngle pairs a servo ID with a target angle in degrees (0.1
// degree resolution on the wire).
type ServoAngle struct {
	SID   byte
	Angle float64
}

// ServoCompliance pairs a servo ID with its clockwise and
// counter-clockwise compliance slope values.
type ServoCompliance struct {
	SID byte
	CW  byte
	CCW byte
}

// ServoMinMax pairs a servo ID with its angle limits in degrees.
type ServoMinMax struct {
	SID byte
	Min float64
	Max float64
}

// ServoInfoQuery names a slice of a servo's state table.
type ServoInfoQuery struct {
	SID     byte
	Address byte
	Length  byte
}

// ServoInfo is one servo's answer to an info or feedback query.
type ServoInfo struct {
	SID     byte
	Address byte
	Length  byte
	Data    []byte
}

// VIDValue pairs a board variable ID with its one-byte value.
type VIDValue struct {
	VID   byte
	Value byte
}

// GPIOOutput sets one GPIO pin's output level.
type GPIOOutput struct {
	Pin  byte
	High bool
}

// PWMPulse sets one pin's PWM pulse width in microseconds (4us wire
// resolution).
type PWMPulse struct {
	Pin   byte
	Width int
}

// GPIOMode selects whether one of GPIO pins 4 through 7 works as an
// input or an output.
type GPIOMode struct {
	Pin    byte
	Output bool
}

// ServoPresence is one entry of a connection check: the servo ID and
// its reported response time.
type ServoPresence struct {
	SID  byte
	Time byte
}

// IKPosition is an inverse-kinematics body part position. Coordinates
// are carried on the wire with a +100 offset and must lie in
// [-100, 100].
type IKPosition struct {
	KID     byte
	X, Y, Z int
}

// Acceleration holds raw accelerometer readings.
type Acceleration struct {
	AX, AY, AZ int
}

// Walk starts or updates walking. forward and turn range over
// [-100, 100]; positive forward walks ahead, positive turn is
// clockwise. The board stops on its own a few seconds after the last
// command.
func (r *Robot) Walk(forward, turn int) error {
	if forward < -100 || forward > 100 {
		return fmt.Errorf("forward %d out of range [-100, 100]", forward)
	}
	if turn < -100 || turn > 100 {
		return fmt.Errorf("turn %d out of range [-100, 100]", turn)
	}
	payload := []byte{
		0x00, // walk address, fixed
		0x02, // walk data length, fixed
		byte(forward + coordinateOffset),
		byte(turn + coordinateOffset),
	}
	return r.send(protocol.OpWalk, payload)
}

// SetServoAngle sends target angles for one or more servos. cycleTime
// is the transition time, carried on the wire in 10ms units.
func (r *Robot) SetServoAngle(angles []ServoAngle, cycleTime time.Duration) error {
	cyc := int(cycleTime / (10 * time.Millisecond))
	if cyc < 0 || cyc > 0xFF {
		return fmt.Errorf("cycle time %v does not fit the wire field", cycleTime)
	}
	payload := make([]byte, 0, 1+3*len(angles))
	payload = append(payload, byte(cyc))
	for _, a := range angles {
		b0, b1, err := encodeValue(int(math.Round(a.Angle * 10)))
		if err != nil {
			return fmt.Errorf("servo %d angle: %w", a.SID, err)
		}
		payload = append(payload, a.SID, b0, b1)
	}
	return r.send(protocol.OpAngle, payload)
}

// SetServoCompliance sends compliance slope values for one or more
// servos.
func (r *Robot) SetServoCompliance(set []ServoCompliance) error {
	payload := make([]byte, 0, 3*len(set))
	for _, c := range set {
		payload = append(payload, c.SID, c.CW, c.CCW)
	}
	return r.send(protocol.OpCompliance, payload)
}

// SetServoMinMax sends angle limits for one or more servos.
func (r *Robot) SetServoMinMax(set []ServoMinMax) error {
	payload := make([]byte, 0, 5*len(set))
	for _, m := range set {
		lo0, lo1, err := encodeValue(int(math.Round(m.Min * 10)))
		if err != nil {
			return fmt.Errorf("servo %d min: %w", m.SID, err)
		}
		hi0, hi1, err := encodeValue(int(math.Round(m.Max * 10)))
		if err != nil {
			return fmt.Errorf("servo %d max: %w", m.SID, err)
		}
		payload = append(payload, m.SID, lo0, lo1, hi0, hi1)
	}
	return r.send(protocol.OpMinMax, payload)
}

// GetServoInfo reads slices of the state table of one or more servos.
func (r *Robot) GetServoInfo(queries []ServoInfoQuery, timeout time.Duration) ([]ServoInfo, error) {
	payload := make([]byte, 0, 3*len(queries))
	for _, q := range queries {
		payload = append(payload, q.SID, q.Address, q.Length)
	}
	msg, err := r.query(protocol.OpServoInfo, payload, timeout)
	if err != nil {
		return nil, err
	}

	// Response payload: per query, the servo ID followed by the
	// requested bytes.
	data := msg.Payload
	pos := 0
	infos := make([]ServoInfo, 0, len(queries))
	for _, q := range queries {
		if pos+1+int(q.Length) > len(data) {
			return nil, fmt.Errorf("%w: servo info response truncated", protocol.ErrMalformedFrame)
		}
		if data[pos] != q.SID {
			return nil, fmt.Errorf("%w: expected servo %d in response, got %d",
				protocol.ErrMalformedFrame, q.SID, data[pos])
		}
		pos++
		infos = append(infos, ServoInfo{
			SID:     q.SID,
			Address: q.Address,
			Length:  q.Length,
			Data:    append([]byte(nil), data[pos:pos+int(q.Length)]...),
		})
		pos += int(q.Length)
	}
	return infos, nil
}

// SetFeedbackID selects the servos included in feedback responses.
func (r *Robot) SetFeedbackID(sids []byte) error {
	return r.send(protocol.OpFeedbackID, sids)
}

// GetServoFeedback reads the same state-table slice from every servo
// selected with SetFeedbackID.
func (r *Robot) GetServoFeedback(address, length byte, timeout time.Duration) ([]ServoInfo, error) {
	msg, err := r.query(protocol.OpGetFeedback, []byte{address, length}, timeout)
	if err != nil {
		return nil, err
	}

	stride := int(length) + 1
	data := msg.Payload
	if len(data)%stride != 0 {
		return nil, fmt.Errorf("%w: feedback response length %d is not a multiple of %d",
			protocol.ErrMalformedFrame, len(data), stride)
	}
	infos := make([]ServoInfo, 0, len(data)/stride)
	for pos := 0; pos < len(data); pos += stride {
		infos = append(infos, ServoInfo{
			SID:     data[pos],
			Address: address,
			Length:  length,
			Data:    append([]byte(nil), data[pos+1:pos+stride]...),
		})
	}
	return infos, nil
}

// SetVIDValue writes one or more board variables.
func (r *Robot) SetVIDValue(pairs []VIDValue) error {
	payload := make([]byte, 0, 2*len(pairs))
	for _, p := range pairs {
		payload = append(payload, p.VID, p.Value)
	}
	return r.send(protocol.OpSetVID, payload)
}

// GetVIDValue reads one or more board variables.
func (r *Robot) GetVIDValue(vids []byte, timeout time.Duration) ([]VIDValue, error) {
	msg, err := r.query(protocol.OpGetVID, vids, timeout)
	if err != nil {
		return nil, err
	}

	values := msg.Payload
	// Some firmware revisions append a stray 0x00; tolerate exactly
	// one.
	if len(values) == len(vids)+1 && values[len(values)-1] == 0x00 {
		values = values[:len(values)-1]
	}
	if len(values) != len(vids) {
		return nil, fmt.Errorf("%w: expected %d values, got %d",
			protocol.ErrMalformedFrame, len(vids), len(values))
	}
	pairs := make([]VIDValue, len(vids))
	for i, vid := range vids {
		pairs[i] = VIDValue{VID: vid, Value: values[i]}
	}
	return pairs, nil
}

// SetVIDIOMode configures GPIO pins 4 through 7 as inputs or outputs.
// Pins left unmentioned become inputs; the board holds all four modes
// in one bitmask variable.
func (r *Robot) SetVIDIOMode(modes []GPIOMode) error {
	var mask byte
	for _, m := range modes {
		if m.Pin < 4 || m.Pin > 7 {
			return fmt.Errorf("pin %d out of range [4, 7]", m.Pin)
		}
		if m.Output {
			mask |= 1 << (m.Pin - 1)
		}
	}
	return r.SetVIDValue([]VIDValue{{VID: vidIOMode, Value: mask}})
}

// SetVIDUsePWM switches GPIO pins 6 and 7 between plain output and
// PWM output.
func (r *Robot) SetVIDUsePWM(use bool) error {
	value := byte(0)
	if use {
		value = 1
	}
	return r.SetVIDValue([]VIDValue{{VID: vidUsePWM, Value: value}})
}

// SetVIDPWMCycle sets the PWM period in microseconds (4us wire
// resolution, range [4, 65536]). The period's two halves live in
// separate board variables.
func (r *Robot) SetVIDPWMCycle(cycle int) error {
	if cycle < 4 || cycle > 65536 {
		return fmt.Errorf("pwm cycle %dus out of range [4, 65536]", cycle)
	}
	units := (cycle + 2) / 4
	return r.SetVIDValue([]VIDValue{
		{VID: vidPWMCycleHigh, Value: byte(units / 256)},
		{VID: vidPWMCycleLow, Value: byte(units % 256)},
	})
}

// GetVIDPWMCycle reads the PWM period in microseconds.
func (r *Robot) GetVIDPWMCycle(timeout time.Duration) (int, error) {
	pairs, err := r.GetVIDValue([]byte{vidPWMCycleHigh, vidPWMCycleLow}, timeout)
	if err != nil {
		return 0, err
	}
	return (int(pairs[0].Value)*256 + int(pairs[1].Value)) * 4, nil
}

// GetVIDVersion reads the firmware version variable.
func (r *Robot) GetVIDVersion(timeout time.Duration) (int, error) {
	pairs, err := r.GetVIDValue([]byte{VIDVersion}, timeout)
	if err != nil {
		return 0, err
	}
	return int(pairs[0].Value), nil
}

// WriteFlash persists the current board variables to flash.
func (r *Robot) WriteFlash() error {
	return r.send(protocol.OpWriteFlash, nil)
}

// SetGPIO sets output levels on one or more GPIO pins.
func (r *Robot) SetGPIO(outputs []GPIOOutput) error {
	payload := make([]byte, 0, 2*len(outputs))
	for _, o := range outputs {
		level := byte(0)
		if o.High {
			level = 1
		}
		payload = append(payload, o.Pin, level)
	}
	return r.send(protocol.OpGPIO, payload)
}

// SetPWMPulseWidth sets PWM pulse widths; the wire carries them in 4us
// units through the 2-byte transform.
func (r *Robot) SetPWMPulseWidth(pulses []PWMPulse) error {
	payload := make([]byte, 0, 3*len(pulses))
	for _, p := range pulses {
		if p.Width < 0 {
			return fmt.Errorf("pin %d pulse width %dus is negative", p.Pin, p.Width)
		}
		b0, b1, err := encodeValue((p.Width + 2) / 4)
		if err != nil {
			return fmt.Errorf("pin %d pulse width: %w", p.Pin, err)
		}
		payload = append(payload, p.Pin, b0, b1)
	}
	return r.send(protocol.OpPWM, payload)
}

// CheckConnectedServo asks the board which servos respond on the bus.
func (r *Robot) CheckConnectedServo(timeout time.Duration) ([]ServoPresence, error) {
	msg, err := r.query(protocol.OpCheckServo, nil, timeout)
	if err != nil {
		return nil, err
	}
	data := msg.Payload
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("%w: servo check response has odd length %d",
			protocol.ErrMalformedFrame, len(data))
	}
	present := make([]ServoPresence, 0, len(data)/2)
	for pos := 0; pos < len(data); pos += 2 {
		present = append(present, ServoPresence{SID: data[pos], Time: data[pos+1]})
	}
	return present, nil
}

// SetIK positions one or more body parts by inverse kinematics without
// asking for a position echo.
func (r *Robot) SetIK(positions []IKPosition) error {
	payload, err := ikPayload(ikFlagSet, positions)
	if err != nil {
		return err
	}
	return r.send(protocol.OpIK, payload)
}

// SetIKFeedback positions body parts and returns the positions the
// board settled on.
func (r *Robot) SetIKFeedback(positions []IKPosition, timeout time.Duration) ([]IKPosition, error) {
	payload, err := ikPayload(ikFlagSetFeedback, positions)
	if err != nil {
		return nil, err
	}
	msg, err := r.query(protocol.OpIK, payload, timeout)
	if err != nil {
		return nil, err
	}
	return parseIKResponse(msg.Payload)
}

// GetIK reads the current positions of one or more body parts.
func (r *Robot) GetIK(kids []byte, timeout time.Duration) ([]IKPosition, error) {
	payload := append([]byte{ikFlagGet}, kids...)
	msg, err := r.query(protocol.OpIK, payload, timeout)
	if err != nil {
		return nil, err
	}
	return parseIKResponse(msg.Payload)
}

// GetAcceleration reads the board's accelerometer.
func (r *Robot) GetAcceleration(timeout time.Duration) (Acceleration, error) {
	msg, err := r.query(protocol.OpAcceleration, nil, timeout)
	if err != nil {
		return Acceleration{}, err
	}
	if len(msg.Payload) != 3 {
		return Acceleration{}, fmt.Errorf("%w: acceleration response has %d payload bytes",
			protocol.ErrMalformedFrame, len(msg.Payload))
	}
	return Acceleration{
		AX: int(msg.Payload[0]),
		AY: int(msg.Payload[1]),
		AZ: int(msg.Payload[2]),
	}, nil
}

func ikPayload(flag byte, positions []IKPosition) ([]byte, error) {
	payload := make([]byte, 0, 1+4*len(positions))
	payload = append(payload, flag)
	for _, p := range positions {
		for _, c := range [3]int{p.X, p.Y, p.Z} {
			if c < -100 || c > 100 {
				return nil, fmt.Errorf("kid %d coordinate %d out of range [-100, 100]", p.KID, c)
			}
		}
		payload = append(payload,
			p.KID,
			byte(p.X+coordinateOffset),
			byte(p.Y+coordinateOffset),
			byte(p.Z+coordinateOffset),
		)
	}
	return payload, nil
}

func parseIKResponse(payload []byte) ([]IKPosition, error) {
	// First byte echoes the request flag, then 4-byte records.
	if len(payload) < 1 || (len(payload)-1)%4 != 0 {
		return nil, fmt.Errorf("%w: IK response has %d payload bytes",
			protocol.ErrMalformedFrame, len(payload))
	}
	positions := make([]IKPosition, 0, (len(payload)-1)/4)
	for pos := 1; pos < len(payload); pos += 4 {
		positions = append(positions, IKPosition{
			KID: payload[pos],
			X:   int(payload[pos+1]) - coordinateOffset,
			Y:   int(payload[pos+2]) - coordinateOffset,
			Z:   int(payload[pos+3]) - coordinateOffset,
		})
	}
	return positions, nil
}

// encodeValue range-checks v against the 2-byte transform and encodes
// it.
func encodeValue(v int) (byte, byte, error) {
	if v < protocol.MinEncodable || v > protocol.MaxEncodable {
		return 0, 0, fmt.Errorf("value %d outside encodable range [%d, %d]",
			v, protocol.MinEncodable, protocol.MaxEncodable)
	}
	b0, b1 := protocol.EncodeInt16(int16(v))
	return b0, b1, nil
}
