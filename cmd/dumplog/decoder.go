package main

import (
	"encoding/hex"
	"fmt"
)

// Decoder renders one record's key or value bytes as a printable string.
// --key-decoder-class/--value-decoder-class name an entry in the registries
// below rather than loading a class reflectively (SPEC_FULL.md §9).
type Decoder interface {
	Decode(raw []byte) (string, error)
}

var keyDecoders = map[string]func() Decoder{
	"raw":    func() Decoder { return rawDecoder{} },
	"hex":    func() Decoder { return hexDecoder{} },
	"string": func() Decoder { return stringDecoder{} },
}

var valueDecoders = map[string]func() Decoder{
	"raw":    func() Decoder { return rawDecoder{} },
	"hex":    func() Decoder { return hexDecoder{} },
	"string": func() Decoder { return stringDecoder{} },
}

// RegisterKeyDecoder lets a caller embedding this tool add a decoder class
// name without forking the registry above.
func RegisterKeyDecoder(name string, factory func() Decoder) { keyDecoders[name] = factory }

// RegisterValueDecoder is RegisterKeyDecoder's value-side counterpart.
func RegisterValueDecoder(name string, factory func() Decoder) { valueDecoders[name] = factory }

type rawDecoder struct{}

func (rawDecoder) Decode(raw []byte) (string, error) { return fmt.Sprintf("%q", raw), nil }

type hexDecoder struct{}

func (hexDecoder) Decode(raw []byte) (string, error) { return hex.EncodeToString(raw), nil }

type stringDecoder struct{}

func (stringDecoder) Decode(raw []byte) (string, error) { return string(raw), nil }

// offsetsKeyDecoder/offsetsValueDecoder stand in for the broker's internal
// committed-offsets topic schema when --offsets-decoder is set, mirroring
// the real tool's special-cased decoding of that one topic.
type offsetsKeyDecoder struct{}

func (offsetsKeyDecoder) Decode(raw []byte) (string, error) {
	return fmt.Sprintf("group-topic-partition:%q", raw), nil
}

type offsetsValueDecoder struct{}

func (offsetsValueDecoder) Decode(raw []byte) (string, error) {
	return fmt.Sprintf("offset-metadata:%q", raw), nil
}

func resolveDecoder(class string, registry map[string]func() Decoder) (Decoder, error) {
	if class == "" {
		class = "string"
	}
	factory, ok := registry[class]
	if !ok {
		return nil, fmt.Errorf("unknown decoder class %q", class)
	}
	return factory(), nil
}
