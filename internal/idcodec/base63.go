// Package idcodec encodes SnapshotID and MarkID values as short base-63
// strings, for hosts that want to surface undo-history handles or mark
// references in logs or a status line without a raw 64-bit integer.
//
// Alphabet: A-Z (0-25), a-z (26-51), 0-9 (52-61), _ (62).
package idcodec

import (
	"errors"
	"fmt"
)

const (
	Base     = 63
	Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_"
)

var (
	ErrEmptyString = errors.New("empty encoded string")
	ErrInvalidChar = errors.New("invalid character in encoded string")
	ErrOverflow    = errors.New("decoded value overflow")
)

// Encode encodes a uint64 value to a base-63 string. Returns "A" for zero.
func Encode(value uint64) string {
	if value == 0 {
		return "A"
	}

	var buf [11]byte
	pos := len(buf)

	for value > 0 {
		pos--
		buf[pos] = Alphabet[value%Base]
		value /= Base
	}

	return string(buf[pos:])
}

// EncodeNoZero encodes a uint64 value, returning "" for zero — used where
// zero means "absent" (e.g. an unset parent snapshot ID).
func EncodeNoZero(value uint64) string {
	if value == 0 {
		return ""
	}
	return Encode(value)
}

// Decode decodes a base-63 string back to a uint64.
func Decode(encoded string) (uint64, error) {
	if encoded == "" {
		return 0, ErrEmptyString
	}

	var value uint64
	for _, c := range encoded {
		charVal, err := charToValue(c)
		if err != nil {
			return 0, err
		}
		if value > (^uint64(0))/Base {
			return 0, ErrOverflow
		}
		value = value*Base + charVal
	}

	return value, nil
}

// IsValid reports whether encoded is a well-formed base-63 string.
func IsValid(encoded string) bool {
	if encoded == "" {
		return false
	}
	for _, c := range encoded {
		if _, err := charToValue(c); err != nil {
			return false
		}
	}
	return true
}

func charToValue(c rune) (uint64, error) {
	switch {
	case c >= 'A' && c <= 'Z':
		return uint64(c - 'A'), nil
	case c >= 'a' && c <= 'z':
		return uint64(c-'a') + 26, nil
	case c >= '0' && c <= '9':
		return uint64(c-'0') + 52, nil
	case c == '_':
		return 62, nil
	default:
		return 0, fmt.Errorf("%w: %c", ErrInvalidChar, c)
	}
}
