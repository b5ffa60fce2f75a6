package checkpoint

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"

	"github.com/hupe1980/dpmm/codec"
)

// Blob layout (little endian):
//
//	magic      [4]byte "DPCK"
//	format     uint8
//	compress   uint8
//	nameLen    uint8
//	codecName  [nameLen]byte
//	size       uint32  uncompressed payload length
//	checksum   uint32  CRC32 (IEEE) of the uncompressed payload
//	payload    []byte
const formatVersion = 1

var magic = [4]byte{'D', 'P', 'C', 'K'}

func encode(cp *Checkpoint, c codec.Codec, comp Compression) ([]byte, error) {
	payload, err := c.Marshal(cp)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: marshal: %w", err)
	}
	if len(payload) > math.MaxUint32 {
		return nil, fmt.Errorf("checkpoint: payload of %d bytes too large", len(payload))
	}
	name := c.Name()
	if len(name) > math.MaxUint8 {
		return nil, fmt.Errorf("checkpoint: codec name %q too long", name)
	}

	body, applied, err := compress(payload, comp)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: compress: %w", err)
	}

	var buf bytes.Buffer
	buf.Grow(len(magic) + 3 + len(name) + 8 + len(body))
	buf.Write(magic[:])
	buf.WriteByte(formatVersion)
	buf.WriteByte(byte(applied))
	buf.WriteByte(byte(len(name)))
	buf.WriteString(name)
	buf.Write(binary.LittleEndian.AppendUint32(nil, uint32(len(payload))))
	buf.Write(binary.LittleEndian.AppendUint32(nil, crc32.ChecksumIEEE(payload)))
	buf.Write(body)
	return buf.Bytes(), nil
}

func decode(data []byte) (*Checkpoint, error) {
	corrupt := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrCorrupt, fmt.Sprintf(format, args...))
	}

	if len(data) < len(magic)+3 || !bytes.Equal(data[:len(magic)], magic[:]) {
		return nil, corrupt("invalid magic")
	}
	data = data[len(magic):]
	if data[0] != formatVersion {
		return nil, corrupt("format %d", data[0])
	}
	comp := Compression(data[1])
	nameLen := int(data[2])
	data = data[3:]
	if len(data) < nameLen+8 {
		return nil, corrupt("truncated header")
	}
	name := string(data[:nameLen])
	c, ok := codec.ByName(name)
	if !ok {
		return nil, corrupt("unknown codec %q", name)
	}
	data = data[nameLen:]
	size := binary.LittleEndian.Uint32(data)
	sum := binary.LittleEndian.Uint32(data[4:])

	payload, err := decompress(data[8:], comp, int(size))
	if err != nil {
		return nil, corrupt("%s: %v", comp, err)
	}
	if crc32.ChecksumIEEE(payload) != sum {
		return nil, corrupt("checksum mismatch")
	}

	var cp Checkpoint
	if err := c.Unmarshal(payload, &cp); err != nil {
		return nil, corrupt("unmarshal: %v", err)
	}
	if cp.Version > Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, cp.Version)
	}
	return &cp, nil
}
