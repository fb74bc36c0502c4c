package ssz

import (
	"encoding/binary"
	"fmt"
	"io"
	"reflect"
)

const lengthBytes = 4

// Encode val and output the result into w.
func Encode(w io.Writer, val interface{}) error {
	if val == nil {
		return fmt.Errorf("ssz: untyped nil is not supported")
	}
	eb := &encbuf{}
	rval := reflect.ValueOf(val)
	utils, err := cachedSSZUtils(rval.Type())
	if err != nil {
		return err
	}
	if err := utils.encoder(rval, eb); err != nil {
		return err
	}
	return eb.toWriter(w)
}

// Marshal is a convenience wrapper over Encode returning the raw bytes.
func Marshal(val interface{}) ([]byte, error) {
	eb := &encbuf{}
	rval := reflect.ValueOf(val)
	utils, err := cachedSSZUtils(rval.Type())
	if err != nil {
		return nil, err
	}
	if err := utils.encoder(rval, eb); err != nil {
		return nil, err
	}
	return eb.str, nil
}

type encbuf struct {
	str []byte
}

func (w *encbuf) toWriter(out io.Writer) error {
	_, err := out.Write(w.str)
	return err
}

func makeEncoder(typ reflect.Type) (encoder, error) {
	kind := typ.Kind()
	switch {
	case kind == reflect.Bool:
		return encodeBool, nil
	case kind == reflect.Uint8:
		return encodeUint8, nil
	case kind == reflect.Uint16:
		return encodeUint16, nil
	case kind == reflect.Uint32:
		return encodeUint32, nil
	case kind == reflect.Uint64:
		return encodeUint64, nil
	case kind == reflect.Slice && typ.Elem().Kind() == reflect.Uint8:
		return encodeBytes, nil
	case kind == reflect.Array && typ.Elem().Kind() == reflect.Uint8:
		return encodeByteArray, nil
	case kind == reflect.Slice:
		return makeSliceEncoder(typ)
	case kind == reflect.Struct:
		return makeStructEncoder(typ)
	case kind == reflect.Ptr:
		return makePtrEncoder(typ)
	default:
		return nil, fmt.Errorf("ssz: type %v is not serializable", typ)
	}
}

func encodeBool(val reflect.Value, w *encbuf) error {
	if val.Bool() {
		w.str = append(w.str, uint8(1))
	} else {
		w.str = append(w.str, uint8(0))
	}
	return nil
}

func encodeUint8(val reflect.Value, w *encbuf) error {
	w.str = append(w.str, uint8(val.Uint()))
	return nil
}

func encodeUint16(val reflect.Value, w *encbuf) error {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, uint16(val.Uint()))
	w.str = append(w.str, b...)
	return nil
}

func encodeUint32(val reflect.Value, w *encbuf) error {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(val.Uint()))
	w.str = append(w.str, b...)
	return nil
}

func encodeUint64(val reflect.Value, w *encbuf) error {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, val.Uint())
	w.str = append(w.str, b...)
	return nil
}

func encodeBytes(val reflect.Value, w *encbuf) error {
	b := val.Bytes()
	sizeEnc := make([]byte, lengthBytes)
	binary.BigEndian.PutUint32(sizeEnc, uint32(len(b)))
	w.str = append(w.str, sizeEnc...)
	w.str = append(w.str, b...)
	return nil
}

// Fixed-size byte arrays carry no length prefix: their width is part of
// the type.
func encodeByteArray(val reflect.Value, w *encbuf) error {
	for i := 0; i < val.Len(); i++ {
		w.str = append(w.str, uint8(val.Index(i).Uint()))
	}
	return nil
}

func makeSliceEncoder(typ reflect.Type) (encoder, error) {
	elemUtils, err := cachedSSZUtilsNoAcquireLock(typ.Elem())
	if err != nil {
		return nil, fmt.Errorf("failed to get ssz utils: %v", err)
	}
	encoder := func(val reflect.Value, w *encbuf) error {
		origBufSize := len(w.str)
		w.str = append(w.str, make([]byte, lengthBytes)...)
		for i := 0; i < val.Len(); i++ {
			if err := elemUtils.encoder(val.Index(i), w); err != nil {
				return err
			}
		}
		totalSize := len(w.str) - lengthBytes - origBufSize
		binary.BigEndian.PutUint32(w.str[origBufSize:origBufSize+lengthBytes], uint32(totalSize))
		return nil
	}
	return encoder, nil
}

func makeStructEncoder(typ reflect.Type) (encoder, error) {
	fields, err := structFields(typ)
	if err != nil {
		return nil, err
	}
	encoder := func(val reflect.Value, w *encbuf) error {
		origBufSize := len(w.str)
		w.str = append(w.str, make([]byte, lengthBytes)...)
		for _, f := range fields {
			if err := f.utils.encoder(val.Field(f.index), w); err != nil {
				return err
			}
		}
		totalSize := len(w.str) - lengthBytes - origBufSize
		binary.BigEndian.PutUint32(w.str[origBufSize:origBufSize+lengthBytes], uint32(totalSize))
		return nil
	}
	return encoder, nil
}

func makePtrEncoder(typ reflect.Type) (encoder, error) {
	elemUtils, err := cachedSSZUtilsNoAcquireLock(typ.Elem())
	if err != nil {
		return nil, err
	}
	encoder := func(val reflect.Value, w *encbuf) error {
		if val.IsNil() {
			return fmt.Errorf("ssz: cannot encode nil %v", typ)
		}
		return elemUtils.encoder(val.Elem(), w)
	}
	return encoder, nil
}
