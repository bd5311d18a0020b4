package mavcodec

import "math"

// Message IDs for the nine MAVLink common-dialect messages this bridge touches.
const (
	MsgIDHeartbeat           uint8 = 0
	MsgIDSysStatus           uint8 = 1
	MsgIDGPSRawInt           uint8 = 24
	MsgIDAttitude            uint8 = 30
	MsgIDGlobalPositionInt   uint8 = 33
	MsgIDMissionCurrent      uint8 = 42
	MsgIDSetMode             uint8 = 11
	MsgIDRCChannelsOverride  uint8 = 70
	MsgIDCommandLong         uint8 = 76
)

// MAVLink common-dialect enum/flag values this bridge needs to compare
// against decoded fields. Kept as plain numeric constants here rather than
// imported from gomavlib's dialect package: gomavlib types fields like
// BaseMode with dedicated named enum types, and this package's Message*
// structs use plain uint8/uint32 fields instead (see DESIGN.md's
// architecture decision); the numeric values are identical to the
// common dialect's.
const (
	MavTypeQuadrotor              = 2
	MavAutopilotGeneric           = 0
	MavModeFlagManualInputEnabled = 64
	MavModeFlagSafetyArmed        = 128
	MavCmdNavTakeoff              = 22
	MavCmdNavLand                 = 21
)

// crcExtra holds the MAVLink CRC_EXTRA seed byte for every message ID this
// bridge decodes or encodes, taken from the stable, public common-dialect
// message definitions (crc_extra is a function of field layout, not of any
// particular implementation).
var crcExtra = map[uint8]uint8{
	MsgIDHeartbeat:          50,
	MsgIDSysStatus:          124,
	MsgIDGPSRawInt:          24,
	MsgIDAttitude:           39,
	MsgIDGlobalPositionInt:  104,
	MsgIDMissionCurrent:     28,
	MsgIDSetMode:            89,
	MsgIDRCChannelsOverride: 124,
	MsgIDCommandLong:        152,
}

// MessageHeartbeat mirrors the common-dialect HEARTBEAT message fields this
// bridge reads or writes.
type MessageHeartbeat struct {
	CustomMode     uint32
	Type           uint8
	Autopilot      uint8
	BaseMode       uint8
	SystemStatus   uint8
	MavlinkVersion uint8
}

// MessageSysStatus mirrors the fields of SYS_STATUS this bridge synthesises.
type MessageSysStatus struct {
	OnboardControlSensorsPresent uint32
	OnboardControlSensorsEnabled uint32
	OnboardControlSensorsHealth  uint32
	Load                         uint16
	VoltageBattery               uint16
	CurrentBattery               int16
	DropRateComm                 uint16
	ErrorsComm                   uint16
	ErrorsCount1                 uint16
	ErrorsCount2                 uint16
	ErrorsCount3                 uint16
	ErrorsCount4                 uint16
	// BatteryRemaining is carried as a 16-bit signed field rather than the
	// stock dialect's int8, matching this bridge's specified derivation (a
	// 16-bit wrap-around truncation of the navdata battery reading).
	BatteryRemaining int16
}

// MessageGPSRawInt mirrors the fields of GPS_RAW_INT this bridge synthesises.
type MessageGPSRawInt struct {
	TimeUsec          uint64
	Lat               int32
	Lon               int32
	Alt               int32
	Eph               uint16
	Epv               uint16
	Vel               uint16
	Cog               uint16
	FixType           uint8
	SatellitesVisible uint8
}

// MessageAttitude mirrors the fields of ATTITUDE this bridge synthesises.
type MessageAttitude struct {
	TimeBootMs uint32
	Roll       float32
	Pitch      float32
	Yaw        float32
	RollSpeed  float32
	PitchSpeed float32
	YawSpeed   float32
}

// MessageGlobalPositionInt mirrors the fields of GLOBAL_POSITION_INT this
// bridge synthesises.
type MessageGlobalPositionInt struct {
	TimeBootMs  uint32
	Lat         int32
	Lon         int32
	Alt         int32
	RelativeAlt int32
	Vx          int16
	Vy          int16
	Vz          int16
	Hdg         uint16
}

// MessageMissionCurrent mirrors the single field of MISSION_CURRENT.
type MessageMissionCurrent struct {
	Seq uint16
}

// MessageSetMode mirrors the fields of SET_MODE, sent by the GCS to request a
// mode change.
type MessageSetMode struct {
	CustomMode   uint32
	TargetSystem uint8
	BaseMode     uint8
}

// MessageCommandLong mirrors the fields of COMMAND_LONG this bridge inspects
// for NAV_TAKEOFF/NAV_LAND.
type MessageCommandLong struct {
	Param1           float32
	Param2           float32
	Param3           float32
	Param4           float32
	Param5           float32
	Param6           float32
	Param7           float32
	Command          uint16
	TargetSystem     uint8
	TargetComponent  uint8
	Confirmation     uint8
}

// MessageRCChannelsOverride mirrors the fields of RC_CHANNELS_OVERRIDE (the
// MAVLink v1, 8-channel form).
type MessageRCChannelsOverride struct {
	Chan1Raw        uint16
	Chan2Raw        uint16
	Chan3Raw        uint16
	Chan4Raw        uint16
	Chan5Raw        uint16
	Chan6Raw        uint16
	Chan7Raw        uint16
	Chan8Raw        uint16
	TargetSystem    uint8
	TargetComponent uint8
}

// decodeMessage decodes payload into one of the typed Message* structs above,
// or returns nil for any message ID this bridge doesn't need to inspect
// semantically (it is still forwarded verbatim via Frame.Raw).
func decodeMessage(msgID uint8, p []byte) any {
	switch msgID {
	case MsgIDHeartbeat:
		if len(p) < 9 {
			return nil
		}
		return &MessageHeartbeat{
			CustomMode: le32(p[0:4]), Type: p[4], Autopilot: p[5],
			BaseMode: p[6], SystemStatus: p[7], MavlinkVersion: p[8],
		}
	case MsgIDMissionCurrent:
		if len(p) < 2 {
			return nil
		}
		return &MessageMissionCurrent{Seq: le16(p[0:2])}
	case MsgIDSetMode:
		if len(p) < 6 {
			return nil
		}
		return &MessageSetMode{CustomMode: le32(p[0:4]), TargetSystem: p[4], BaseMode: p[5]}
	case MsgIDCommandLong:
		if len(p) < 33 {
			return nil
		}
		return &MessageCommandLong{
			Param1: lef32(p[0:4]), Param2: lef32(p[4:8]), Param3: lef32(p[8:12]),
			Param4: lef32(p[12:16]), Param5: lef32(p[16:20]), Param6: lef32(p[20:24]),
			Param7: lef32(p[24:28]), Command: le16(p[28:30]), TargetSystem: p[30],
			TargetComponent: p[31], Confirmation: p[32],
		}
	case MsgIDRCChannelsOverride:
		if len(p) < 18 {
			return nil
		}
		return &MessageRCChannelsOverride{
			Chan1Raw: le16(p[0:2]), Chan2Raw: le16(p[2:4]), Chan3Raw: le16(p[4:6]), Chan4Raw: le16(p[6:8]),
			Chan5Raw: le16(p[8:10]), Chan6Raw: le16(p[10:12]), Chan7Raw: le16(p[12:14]), Chan8Raw: le16(p[14:16]),
			TargetSystem: p[16], TargetComponent: p[17],
		}
	default:
		return nil
	}
}

// EncodeHeartbeat serialises a HEARTBEAT payload.
func EncodeHeartbeat(m MessageHeartbeat) []byte {
	buf := make([]byte, 9)
	putLE32(buf[0:4], m.CustomMode)
	buf[4], buf[5], buf[6], buf[7], buf[8] = m.Type, m.Autopilot, m.BaseMode, m.SystemStatus, m.MavlinkVersion
	return buf
}

// EncodeMissionCurrent serialises a MISSION_CURRENT payload.
func EncodeMissionCurrent(m MessageMissionCurrent) []byte {
	buf := make([]byte, 2)
	putLE16(buf, m.Seq)
	return buf
}

// EncodeAttitude serialises an ATTITUDE payload.
func EncodeAttitude(m MessageAttitude) []byte {
	buf := make([]byte, 28)
	putLE32(buf[0:4], m.TimeBootMs)
	putLEf32(buf[4:8], m.Roll)
	putLEf32(buf[8:12], m.Pitch)
	putLEf32(buf[12:16], m.Yaw)
	putLEf32(buf[16:20], m.RollSpeed)
	putLEf32(buf[20:24], m.PitchSpeed)
	putLEf32(buf[24:28], m.YawSpeed)
	return buf
}

// EncodeSysStatus serialises a SYS_STATUS payload.
func EncodeSysStatus(m MessageSysStatus) []byte {
	buf := make([]byte, 30)
	putLE32(buf[0:4], m.OnboardControlSensorsPresent)
	putLE32(buf[4:8], m.OnboardControlSensorsEnabled)
	putLE32(buf[8:12], m.OnboardControlSensorsHealth)
	putLE16(buf[12:14], m.Load)
	putLE16(buf[14:16], m.VoltageBattery)
	putLE16(buf[16:18], uint16(m.CurrentBattery))
	putLE16(buf[18:20], m.DropRateComm)
	putLE16(buf[20:22], m.ErrorsComm)
	putLE16(buf[22:24], m.ErrorsCount1)
	putLE16(buf[24:26], m.ErrorsCount2)
	putLE16(buf[26:28], m.ErrorsCount3)
	putLE16(buf[28:30], uint16(m.BatteryRemaining))
	return buf
}

// EncodeGlobalPositionInt serialises a GLOBAL_POSITION_INT payload.
func EncodeGlobalPositionInt(m MessageGlobalPositionInt) []byte {
	buf := make([]byte, 28)
	putLE32(buf[0:4], m.TimeBootMs)
	putLE32(buf[4:8], uint32(m.Lat))
	putLE32(buf[8:12], uint32(m.Lon))
	putLE32(buf[12:16], uint32(m.Alt))
	putLE32(buf[16:20], uint32(m.RelativeAlt))
	putLE16(buf[20:22], uint16(m.Vx))
	putLE16(buf[22:24], uint16(m.Vy))
	putLE16(buf[24:26], uint16(m.Vz))
	putLE16(buf[26:28], m.Hdg)
	return buf
}

// EncodeGPSRawInt serialises a GPS_RAW_INT payload.
func EncodeGPSRawInt(m MessageGPSRawInt) []byte {
	buf := make([]byte, 30)
	putLE64(buf[0:8], m.TimeUsec)
	putLE32(buf[8:12], uint32(m.Lat))
	putLE32(buf[12:16], uint32(m.Lon))
	putLE32(buf[16:20], uint32(m.Alt))
	putLE16(buf[20:22], m.Eph)
	putLE16(buf[22:24], m.Epv)
	putLE16(buf[24:26], m.Vel)
	putLE16(buf[26:28], m.Cog)
	buf[28] = m.FixType
	buf[29] = m.SatellitesVisible
	return buf
}

func putLE16(b []byte, v uint16) { b[0] = uint8(v); b[1] = uint8(v >> 8) }
func putLE32(b []byte, v uint32) {
	b[0] = uint8(v)
	b[1] = uint8(v >> 8)
	b[2] = uint8(v >> 16)
	b[3] = uint8(v >> 24)
}
func putLE64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = uint8(v >> (8 * i))
	}
}
func putLEf32(b []byte, f float32) { putLE32(b, math.Float32bits(f)) }
