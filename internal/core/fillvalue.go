package core

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// FillValue is the user-defined fill value of a dataset. Value is nil when
// the dataset uses the library default (all zero bytes).
type FillValue struct {
	Version uint8
	Value   []byte
}

// ParseFillValue decodes a fill value message (0x0005).
//
// Versions 1 and 2 start with allocation time, write time and a "defined"
// byte; version 1 always carries size and value, version 2 only when
// defined. Version 3 packs the times into one flags byte where bit 5 means
// a value follows.
func ParseFillValue(data []byte) (*FillValue, error) {
	if len(data) < 1 {
		return nil, errors.New("fill value message too short")
	}
	fv := &FillValue{Version: data[0]}
	var pos int
	switch fv.Version {
	case 1, 2:
		if len(data) < 4 {
			return nil, errors.New("fill value message too short")
		}
		defined := data[3] != 0
		pos = 4
		if fv.Version == 2 && !defined {
			return fv, nil
		}
	case 3:
		if len(data) < 2 {
			return nil, errors.New("fill value message too short")
		}
		if data[1]&0x20 == 0 {
			return fv, nil
		}
		pos = 2
	default:
		return nil, fmt.Errorf("unsupported fill value version: %d", fv.Version)
	}
	return fv, fv.readValue(data, pos)
}

// ParseFillValueOld decodes the deprecated fill value message (0x0004):
// a 4-byte size followed by the value.
func ParseFillValueOld(data []byte) (*FillValue, error) {
	fv := &FillValue{}
	return fv, fv.readValue(data, 0)
}

func (fv *FillValue) readValue(data []byte, pos int) error {
	if len(data) < pos+4 {
		// Version 1 messages may omit the size when undefined.
		return nil
	}
	n := int(binary.LittleEndian.Uint32(data[pos:]))
	pos += 4
	if n == 0 {
		return nil
	}
	if len(data) < pos+n {
		return fmt.Errorf("fill value truncated: need %d bytes", n)
	}
	fv.Value = append([]byte(nil), data[pos:pos+n]...)
	return nil
}
