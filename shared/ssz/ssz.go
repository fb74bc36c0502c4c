// Package ssz implements the deterministic, length-prefixed binary
// encoding used for every state and message type. Fixed-width basic
// types occupy fixed byte offsets; slices and structs are prefixed with
// a 4-byte big-endian byte length. decode(encode(x)) == x for every
// supported value.
package ssz

import (
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"
)

type encoder func(reflect.Value, *encbuf) error

// Decoders return the number of bytes consumed rather than a new index
// into the input: the io.Reader already tracks its own position.
type decoder func(io.Reader, reflect.Value) (uint32, error)

type sszUtils struct {
	encoder
	decoder
}

var (
	sszUtilsCacheMutex sync.RWMutex
	sszUtilsCache      = make(map[reflect.Type]*sszUtils)
)

// Get cached encoder and decoder implementation for a specified type.
// With a cache we achieve amortized O(1) overhead per encode/decode call.
func cachedSSZUtils(typ reflect.Type) (*sszUtils, error) {
	sszUtilsCacheMutex.RLock()
	utils := sszUtilsCache[typ]
	sszUtilsCacheMutex.RUnlock()
	if utils != nil {
		return utils, nil
	}

	sszUtilsCacheMutex.Lock()
	defer sszUtilsCacheMutex.Unlock()
	return cachedSSZUtilsNoAcquireLock(typ)
}

// This version is used when the caller is already holding the rw lock for
// sszUtilsCache. It doesn't acquire a new rw lock so it's free to
// recursively call itself without deadlocking.
func cachedSSZUtilsNoAcquireLock(typ reflect.Type) (*sszUtils, error) {
	utils := sszUtilsCache[typ]
	if utils != nil {
		return utils, nil
	}
	// Put a dummy value into the cache before generating. If the
	// generator looks up its own type it finds the dummy value instead of
	// recursing forever.
	sszUtilsCache[typ] = new(sszUtils)
	utils, err := generateSSZUtilsForType(typ)
	if err != nil {
		delete(sszUtilsCache, typ)
		return nil, err
	}
	*sszUtilsCache[typ] = *utils
	return sszUtilsCache[typ], nil
}

func generateSSZUtilsForType(typ reflect.Type) (utils *sszUtils, err error) {
	utils = new(sszUtils)
	if utils.encoder, err = makeEncoder(typ); err != nil {
		return nil, err
	}
	if utils.decoder, err = makeDecoder(typ); err != nil {
		return nil, err
	}
	return utils, nil
}

type field struct {
	index int
	name  string
	utils *sszUtils
}

func structFields(typ reflect.Type) (fields []field, err error) {
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		// Unexported and tag-skipped fields carry no consensus data.
		if f.PkgPath != "" || strings.Contains(f.Tag.Get("ssz"), "skip") {
			continue
		}
		utils, err := cachedSSZUtilsNoAcquireLock(f.Type)
		if err != nil {
			return nil, fmt.Errorf("failed to get ssz utils for field %s: %v", f.Name, err)
		}
		fields = append(fields, field{i, f.Name, utils})
	}
	return fields, nil
}
