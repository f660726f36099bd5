package split

import (
	"encoding/binary"
	"fmt"
)

const (
	// MaxBehaviorNameLen bounds the behavior name field on the wire,
	// including its NUL terminator.
	MaxBehaviorNameLen = 16

	offPosition = 0
	offParam1   = 2
	offParam2   = 6
	offState    = 10
	offBehavior = 11

	// headerSize is the fixed-field region preceding the behavior name.
	headerSize = offBehavior

	// payloadSize is the full encoded size of a run-behavior payload
	// with a maximum-length name.
	payloadSize = headerSize + MaxBehaviorNameLen
)

// headerCoverageMask has one bit set per header byte; the reassembly
// buffer is decodable only once all of them have been written.
const headerCoverageMask = 1<<headerSize - 1

// RunBehaviorPayload is the command a peripheral sends to have the
// central run a behavior on its behalf. State is nonzero for press,
// zero for release. All multi-byte fields are little-endian on the
// wire; the behavior name is NUL-terminated.
type RunBehaviorPayload struct {
	Position uint16
	Param1   uint32
	Param2   uint32
	State    uint8
	Behavior string
}

// Encode packs the payload into its wire form, trimmed to the name's
// NUL terminator.
func (p *RunBehaviorPayload) Encode() ([]byte, error) {
	if len(p.Behavior)+1 > MaxBehaviorNameLen {
		return nil, fmt.Errorf("%w: %q is %d bytes, limit %d including terminator",
			ErrNameTooLong, p.Behavior, len(p.Behavior), MaxBehaviorNameLen)
	}

	buf := make([]byte, headerSize+len(p.Behavior)+1)
	binary.LittleEndian.PutUint16(buf[offPosition:], p.Position)
	binary.LittleEndian.PutUint32(buf[offParam1:], p.Param1)
	binary.LittleEndian.PutUint32(buf[offParam2:], p.Param2)
	buf[offState] = p.State
	copy(buf[offBehavior:], p.Behavior)
	// The trailing byte stays zero: it is the terminator that makes the
	// receiver's completion predicate fire.
	return buf, nil
}

// decodePayload extracts a payload from a fully reassembled buffer.
// end is the exclusive extent of the final write; the behavior name
// runs from the header boundary to the first NUL.
func decodePayload(buf []byte, end int) RunBehaviorPayload {
	name := buf[offBehavior:end]
	for i, b := range name {
		if b == 0 {
			name = name[:i]
			break
		}
	}
	return RunBehaviorPayload{
		Position: binary.LittleEndian.Uint16(buf[offPosition:]),
		Param1:   binary.LittleEndian.Uint32(buf[offParam1:]),
		Param2:   binary.LittleEndian.Uint32(buf[offParam2:]),
		State:    buf[offState],
		Behavior: string(name),
	}
}

// Chunk is one offset-addressed partial write of an encoded payload.
type Chunk struct {
	Offset int
	Data   []byte
}

// Chunks splits encoded payload bytes into writes of at most mtu bytes
// each, in ascending offset order. Transports that cannot push a whole
// payload in a single write replay these through the receiver's write
// primitive.
func Chunks(data []byte, mtu int) []Chunk {
	if mtu <= 0 {
		mtu = len(data)
	}
	var chunks []Chunk
	for off := 0; off < len(data); off += mtu {
		end := off + mtu
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, Chunk{Offset: off, Data: data[off:end]})
	}
	return chunks
}
