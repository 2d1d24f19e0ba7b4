package proto

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"realm-nav/server/internal/world"
)

const (
	// PathingSubVersion is the revision of the Pathing payload layout.
	PathingSubVersion uint16 = 1
	// PathingOpcode identifies a Pathing payload inside an avatar behavior packet.
	PathingOpcode uint32 = 0xE7AB83B2
	// PathingSize is the encoded length of a Pathing payload.
	PathingSize = 67

	avatarHeaderSize = 12
)

var (
	ErrShortPacket   = errors.New("proto: packet too short")
	ErrUnknownOpcode = errors.New("proto: unknown opcode")
	ErrSubVersion    = errors.New("proto: unsupported sub version")
)

// EncodePathing renders p as a little-endian Pathing payload.
func EncodePathing(p world.Pathing) []byte {
	return AppendPathing(make([]byte, 0, PathingSize), p)
}

// AppendPathing appends the encoded payload to buf.
func AppendPathing(buf []byte, p world.Pathing) []byte {
	le := binary.LittleEndian
	buf = le.AppendUint16(buf, PathingSubVersion)
	buf = le.AppendUint32(buf, PathingOpcode)
	buf = appendBool(buf, p.Backward)
	buf = appendBool(buf, p.FaceTarget)
	buf = appendVec3(buf, p.AnchorPos)
	buf = appendVec3(buf, p.StartPos)
	buf = appendBool(buf, p.KeepZValue)
	buf = appendBool(buf, p.ForceFindPath)
	buf = appendBool(buf, p.IsAbortEarly)
	buf = le.AppendUint32(buf, uint32(p.TraverseCosts))
	buf = le.AppendUint32(buf, math.Float32bits(p.StartTime))
	buf = le.AppendUint32(buf, math.Float32bits(p.Speed))
	buf = le.AppendUint32(buf, math.Float32bits(p.Acceleration))
	buf = appendBool(buf, p.ClientDontCare)
	buf = le.AppendUint32(buf, uint32(p.ForcedMovementMode))
	buf = le.AppendUint32(buf, uint32(p.TargetTile))
	buf = appendBool(buf, p.WhileObstructed)
	buf = le.AppendUint16(buf, p.MoverKey)
	return le.AppendUint32(buf, 0)
}

// DecodePathing parses a payload produced by EncodePathing.
func DecodePathing(data []byte) (world.Pathing, error) {
	var p world.Pathing
	if len(data) < PathingSize {
		return p, fmt.Errorf("%w: %d bytes, want %d", ErrShortPacket, len(data), PathingSize)
	}
	r := reader{buf: data}
	if v := r.u16(); v != PathingSubVersion {
		return p, fmt.Errorf("%w: %d", ErrSubVersion, v)
	}
	if op := r.u32(); op != PathingOpcode {
		return p, fmt.Errorf("%w: %#x", ErrUnknownOpcode, op)
	}
	p.Backward = r.bool()
	p.FaceTarget = r.bool()
	p.AnchorPos = r.vec3()
	p.StartPos = r.vec3()
	p.KeepZValue = r.bool()
	p.ForceFindPath = r.bool()
	p.IsAbortEarly = r.bool()
	p.TraverseCosts = int32(r.u32())
	p.StartTime = r.f32()
	p.Speed = r.f32()
	p.Acceleration = r.f32()
	p.ClientDontCare = r.bool()
	p.ForcedMovementMode = int32(r.u32())
	p.TargetTile = int32(r.u32())
	p.WhileObstructed = r.bool()
	p.MoverKey = r.u16()
	return p, nil
}

// EncodeAvatarBehavior wraps payload in the packet addressed to one avatar.
func EncodeAvatarBehavior(avatarID uint64, payload []byte) []byte {
	buf := make([]byte, 0, avatarHeaderSize+len(payload))
	buf = binary.LittleEndian.AppendUint64(buf, avatarID)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(payload)))
	return append(buf, payload...)
}

// DecodeAvatarBehavior splits a packet into its avatar id and payload.
func DecodeAvatarBehavior(data []byte) (uint64, []byte, error) {
	if len(data) < avatarHeaderSize {
		return 0, nil, fmt.Errorf("%w: %d byte header", ErrShortPacket, len(data))
	}
	avatarID := binary.LittleEndian.Uint64(data)
	size := binary.LittleEndian.Uint32(data[8:])
	body := data[avatarHeaderSize:]
	if uint64(len(body)) < uint64(size) {
		return 0, nil, fmt.Errorf("%w: payload %d of %d bytes", ErrShortPacket, len(body), size)
	}
	return avatarID, body[:size], nil
}

func appendBool(buf []byte, v bool) []byte {
	if v {
		return append(buf, 1)
	}
	return append(buf, 0)
}

func appendVec3(buf []byte, v mgl32.Vec3) []byte {
	for _, c := range v {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(c))
	}
	return buf
}

type reader struct {
	buf []byte
	off int
}

func (r *reader) u16() uint16 {
	v := binary.LittleEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v
}

func (r *reader) u32() uint32 {
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v
}

func (r *reader) f32() float32 {
	return math.Float32frombits(r.u32())
}

func (r *reader) bool() bool {
	v := r.buf[r.off] != 0
	r.off++
	return v
}

func (r *reader) vec3() mgl32.Vec3 {
	return mgl32.Vec3{r.f32(), r.f32(), r.f32()}
}
