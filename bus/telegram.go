package bus

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/snksoft/crc"

	"github.com/nasa-jpl/pdosim/pdo"
)

// frames are carried on a byte stream as telegrams:
//
//	[SOT] [ID hi] [ID lo] [flags|len] [0..8 data bytes] [CRC hi] [CRC lo] [EOT]
//
// everything between SOT and EOT is escaped so that SOT and EOT never appear
// inside a telegram.  flags bit 7 marks an extended id.

const (
	// telStart is the start of telegram byte
	telStart = 0x0D

	// telEnd is the end of telegram byte
	telEnd = 0x0A

	// escape is the first byte used to replace a special character
	escape = 0x5E

	// escapeShift is the amount special characters are shifted up.
	// special characters max out at 0x5E, so we will never overflow
	escapeShift = 0x40

	flagExtended = 0x80
	lenMask      = 0x0F

	// header is id (2) + flags/len (1)
	header = 3
)

var (
	specialChars = []byte{telEnd, telStart, escape}

	crcTable = crc.NewTable(crc.XMODEM)

	// ErrCRC is generated when a telegram fails its checksum
	ErrCRC = errors.New("telegram CRC mismatch")

	// ErrMalformed is generated for telegrams with missing delimiters or bad lengths
	ErrMalformed = errors.New("malformed telegram")
)

func escapeBytes(data []byte) []byte {
	out := make([]byte, 0, len(data)+4)
	for _, b := range data {
		if bytes.IndexByte(specialChars, b) >= 0 {
			out = append(out, escape, b+escapeShift)
		} else {
			out = append(out, b)
		}
	}
	return out
}

func unescapeBytes(data []byte) []byte {
	out := make([]byte, 0, len(data))
	subNext := false
	for _, b := range data {
		if b == escape && !subNext {
			// substitution marker, drop it and shift the next byte down
			subNext = true
			continue
		}
		if subNext {
			b -= escapeShift
		}
		out = append(out, b)
		subNext = false
	}
	return out
}

func crcBytes(data []byte) []byte {
	crc := crcTable.InitCrc()
	crc = crcTable.UpdateCrc(crc, data)
	out := make([]byte, 2)
	binary.BigEndian.PutUint16(out, crcTable.CRC16(crc))
	return out
}

// MakeTelegram renders a frame as an escaped, checksummed telegram
func MakeTelegram(f pdo.Frame) []byte {
	p := f.Payload()
	body := make([]byte, header, header+len(p)+2)
	binary.BigEndian.PutUint16(body, f.ID)
	body[2] = byte(len(p)) & lenMask
	if f.Extended {
		body[2] |= flagExtended
	}
	body = append(body, p...)
	body = append(body, crcBytes(body)...)

	out := make([]byte, 0, len(body)+8)
	out = append(out, telStart)
	out = append(out, escapeBytes(body)...)
	return append(out, telEnd)
}

// DecodeTelegram parses one telegram.  Bytes before the start byte are ignored.
func DecodeTelegram(tele []byte) (pdo.Frame, error) {
	iStart := bytes.IndexByte(tele, telStart)
	if iStart < 0 {
		return pdo.Frame{}, fmt.Errorf("%w: start byte %X not found", ErrMalformed, telStart)
	}
	tele = tele[iStart+1:]
	iEnd := bytes.IndexByte(tele, telEnd)
	if iEnd < 0 {
		return pdo.Frame{}, fmt.Errorf("%w: end byte %X not found", ErrMalformed, telEnd)
	}
	body := unescapeBytes(tele[:iEnd])
	if len(body) < header+2 {
		return pdo.Frame{}, fmt.Errorf("%w: %d bytes", ErrMalformed, len(body))
	}

	fidx := len(body) - 2
	if !bytes.Equal(body[fidx:], crcBytes(body[:fidx])) {
		return pdo.Frame{}, ErrCRC
	}
	body = body[:fidx]

	n := int(body[2] & lenMask)
	if n > pdo.MaxPayload || n != len(body)-header {
		return pdo.Frame{}, fmt.Errorf("%w: length field %d, payload %d", ErrMalformed, n, len(body)-header)
	}
	f := pdo.Frame{
		ID:       binary.BigEndian.Uint16(body),
		Extended: body[2]&flagExtended != 0,
		Len:      uint8(n)}
	copy(f.Data[:], body[header:])
	return f, nil
}
