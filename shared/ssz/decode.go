package ssz

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"reflect"
)

var errNotPtr = errors.New("ssz: decode target must be a non-nil pointer")

// Decode reads the ssz encoding from r into the value pointed to by val.
func Decode(r io.Reader, val interface{}) error {
	if val == nil {
		return errNotPtr
	}
	rval := reflect.ValueOf(val)
	if rval.Kind() != reflect.Ptr || rval.IsNil() {
		return errNotPtr
	}
	utils, err := cachedSSZUtils(rval.Elem().Type())
	if err != nil {
		return err
	}
	_, err = utils.decoder(r, rval.Elem())
	return err
}

// Unmarshal decodes b into the value pointed to by val.
func Unmarshal(b []byte, val interface{}) error {
	return Decode(newByteReader(b), val)
}

func makeDecoder(typ reflect.Type) (decoder, error) {
	kind := typ.Kind()
	switch {
	case kind == reflect.Bool:
		return decodeBool, nil
	case kind == reflect.Uint8:
		return decodeUint8, nil
	case kind == reflect.Uint16:
		return decodeUint16, nil
	case kind == reflect.Uint32:
		return decodeUint32, nil
	case kind == reflect.Uint64:
		return decodeUint64, nil
	case kind == reflect.Slice && typ.Elem().Kind() == reflect.Uint8:
		return decodeBytes, nil
	case kind == reflect.Array && typ.Elem().Kind() == reflect.Uint8:
		return decodeByteArray, nil
	case kind == reflect.Slice:
		return makeSliceDecoder(typ)
	case kind == reflect.Struct:
		return makeStructDecoder(typ)
	case kind == reflect.Ptr:
		return makePtrDecoder(typ)
	default:
		return nil, fmt.Errorf("ssz: type %v is not deserializable", typ)
	}
}

func readBytes(r io.Reader, size int) ([]byte, error) {
	b := make([]byte, size)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("ssz: failed to read %d bytes: %v", size, err)
	}
	return b, nil
}

func decodeBool(r io.Reader, val reflect.Value) (uint32, error) {
	b, err := readBytes(r, 1)
	if err != nil {
		return 0, err
	}
	switch b[0] {
	case 0:
		val.SetBool(false)
	case 1:
		val.SetBool(true)
	default:
		return 0, fmt.Errorf("ssz: invalid bool value %d", b[0])
	}
	return 1, nil
}

func decodeUint8(r io.Reader, val reflect.Value) (uint32, error) {
	b, err := readBytes(r, 1)
	if err != nil {
		return 0, err
	}
	val.SetUint(uint64(b[0]))
	return 1, nil
}

func decodeUint16(r io.Reader, val reflect.Value) (uint32, error) {
	b, err := readBytes(r, 2)
	if err != nil {
		return 0, err
	}
	val.SetUint(uint64(binary.BigEndian.Uint16(b)))
	return 2, nil
}

func decodeUint32(r io.Reader, val reflect.Value) (uint32, error) {
	b, err := readBytes(r, 4)
	if err != nil {
		return 0, err
	}
	val.SetUint(uint64(binary.BigEndian.Uint32(b)))
	return 4, nil
}

func decodeUint64(r io.Reader, val reflect.Value) (uint32, error) {
	b, err := readBytes(r, 8)
	if err != nil {
		return 0, err
	}
	val.SetUint(binary.BigEndian.Uint64(b))
	return 8, nil
}

func decodeLength(r io.Reader) (uint32, error) {
	b, err := readBytes(r, lengthBytes)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func decodeBytes(r io.Reader, val reflect.Value) (uint32, error) {
	size, err := decodeLength(r)
	if err != nil {
		return 0, err
	}
	b, err := readBytes(r, int(size))
	if err != nil {
		return 0, err
	}
	val.SetBytes(b)
	return lengthBytes + size, nil
}

func decodeByteArray(r io.Reader, val reflect.Value) (uint32, error) {
	b, err := readBytes(r, val.Len())
	if err != nil {
		return 0, err
	}
	for i := 0; i < val.Len(); i++ {
		val.Index(i).SetUint(uint64(b[i]))
	}
	return uint32(val.Len()), nil
}

func makeSliceDecoder(typ reflect.Type) (decoder, error) {
	elemUtils, err := cachedSSZUtilsNoAcquireLock(typ.Elem())
	if err != nil {
		return nil, fmt.Errorf("failed to get ssz utils: %v", err)
	}
	decoder := func(r io.Reader, val reflect.Value) (uint32, error) {
		size, err := decodeLength(r)
		if err != nil {
			return 0, err
		}
		var consumed uint32
		newVal := reflect.MakeSlice(typ, 0, 0)
		for consumed < size {
			elem := reflect.New(typ.Elem()).Elem()
			elemSize, err := elemUtils.decoder(r, elem)
			if err != nil {
				return 0, err
			}
			consumed += elemSize
			newVal = reflect.Append(newVal, elem)
		}
		if consumed != size {
			return 0, fmt.Errorf("ssz: slice length prefix %d does not align with element boundaries", size)
		}
		val.Set(newVal)
		return lengthBytes + consumed, nil
	}
	return decoder, nil
}

func makeStructDecoder(typ reflect.Type) (decoder, error) {
	fields, err := structFields(typ)
	if err != nil {
		return nil, err
	}
	decoder := func(r io.Reader, val reflect.Value) (uint32, error) {
		size, err := decodeLength(r)
		if err != nil {
			return 0, err
		}
		var consumed uint32
		for _, f := range fields {
			fieldSize, err := f.utils.decoder(r, val.Field(f.index))
			if err != nil {
				return 0, fmt.Errorf("failed to decode field %s: %v", f.name, err)
			}
			consumed += fieldSize
		}
		if consumed != size {
			return 0, fmt.Errorf("ssz: struct length prefix %d mismatches decoded size %d", size, consumed)
		}
		return lengthBytes + consumed, nil
	}
	return decoder, nil
}

func makePtrDecoder(typ reflect.Type) (decoder, error) {
	elemUtils, err := cachedSSZUtilsNoAcquireLock(typ.Elem())
	if err != nil {
		return nil, err
	}
	decoder := func(r io.Reader, val reflect.Value) (uint32, error) {
		newVal := reflect.New(typ.Elem())
		size, err := elemUtils.decoder(r, newVal.Elem())
		if err != nil {
			return 0, err
		}
		val.Set(newVal)
		return size, nil
	}
	return decoder, nil
}

// newByteReader avoids pulling in bytes.Reader's extra interface set; the
// decoder only needs io.Reader semantics.
type byteReader struct {
	b   []byte
	off int
}

func newByteReader(b []byte) *byteReader {
	return &byteReader{b: b}
}

func (r *byteReader) Read(p []byte) (int, error) {
	if r.off >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.off:])
	r.off += n
	return n, nil
}
