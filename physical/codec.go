package physical

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

var (
	// ErrAttrMissing reports a required attribute absent from an item.
	ErrAttrMissing = errors.New("required attribute missing")

	// ErrAttrType reports an attribute present with the wrong physical
	// type, or a numeric text form that does not parse into the target
	// width.
	ErrAttrType = errors.New("attribute type mismatch")
)

func missingErr(attr AttrDef) error {
	return fmt.Errorf("%w: %s", ErrAttrMissing, attr.Name)
}

func typeErr(attr AttrDef, got AttrType) error {
	return fmt.Errorf("%w: %s holds %s, want %s", ErrAttrType, attr.Name, got, attr.Type)
}

func parseErr(attr AttrDef, text string, err error) error {
	return fmt.Errorf("%w: %s: parsing %q: %v", ErrAttrType, attr.Name, text, err)
}

// OptionalString returns the string attribute, or false when absent.
func OptionalString(item Item, attr AttrDef) (string, bool, error) {
	a, ok := item[attr.Name]
	if !ok {
		return "", false, nil
	}
	if a.Type != TypeString {
		return "", false, typeErr(attr, a.Type)
	}
	return a.S, true, nil
}

// RequiredString returns the string attribute, failing when absent.
func RequiredString(item Item, attr AttrDef) (string, error) {
	v, ok, err := OptionalString(item, attr)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", missingErr(attr)
	}
	return v, nil
}

// OptionalInt returns the number attribute as int32, or false when absent.
func OptionalInt(item Item, attr AttrDef) (int32, bool, error) {
	text, ok, err := optionalNumber(item, attr)
	if err != nil || !ok {
		return 0, ok, err
	}
	v, err := strconv.ParseInt(text, 10, 32)
	if err != nil {
		return 0, false, parseErr(attr, text, err)
	}
	return int32(v), true, nil
}

// RequiredInt returns the number attribute as int32, failing when absent.
func RequiredInt(item Item, attr AttrDef) (int32, error) {
	v, ok, err := OptionalInt(item, attr)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, missingErr(attr)
	}
	return v, nil
}

// OptionalInt64 returns the number attribute as int64, or false when absent.
func OptionalInt64(item Item, attr AttrDef) (int64, bool, error) {
	text, ok, err := optionalNumber(item, attr)
	if err != nil || !ok {
		return 0, ok, err
	}
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, false, parseErr(attr, text, err)
	}
	return v, true, nil
}

// RequiredInt64 returns the number attribute as int64, failing when absent.
func RequiredInt64(item Item, attr AttrDef) (int64, error) {
	v, ok, err := OptionalInt64(item, attr)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, missingErr(attr)
	}
	return v, nil
}

// OptionalFloat64 returns the number attribute as float64, or false when
// absent.
func OptionalFloat64(item Item, attr AttrDef) (float64, bool, error) {
	text, ok, err := optionalNumber(item, attr)
	if err != nil || !ok {
		return 0, ok, err
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, false, parseErr(attr, text, err)
	}
	return v, true, nil
}

// RequiredFloat64 returns the number attribute as float64, failing when
// absent.
func RequiredFloat64(item Item, attr AttrDef) (float64, error) {
	v, ok, err := OptionalFloat64(item, attr)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, missingErr(attr)
	}
	return v, nil
}

// OptionalTime returns the number attribute as a UTC time from epoch
// milliseconds, or false when absent.
func OptionalTime(item Item, attr AttrDef) (time.Time, bool, error) {
	millis, ok, err := OptionalInt64(item, attr)
	if err != nil || !ok {
		return time.Time{}, ok, err
	}
	return time.UnixMilli(millis).UTC(), true, nil
}

// RequiredTime returns the number attribute as a UTC time, failing when
// absent.
func RequiredTime(item Item, attr AttrDef) (time.Time, error) {
	v, ok, err := OptionalTime(item, attr)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return time.Time{}, missingErr(attr)
	}
	return v, nil
}

// OptionalBinary returns the binary attribute, or false when absent.
func OptionalBinary(item Item, attr AttrDef) ([]byte, bool, error) {
	a, ok := item[attr.Name]
	if !ok {
		return nil, false, nil
	}
	if a.Type != TypeBinary {
		return nil, false, typeErr(attr, a.Type)
	}
	return a.B, true, nil
}

// RequiredBinary returns the binary attribute, failing when absent.
func RequiredBinary(item Item, attr AttrDef) ([]byte, error) {
	v, ok, err := OptionalBinary(item, attr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, missingErr(attr)
	}
	return v, nil
}

// OptionalStringSet returns the string-set attribute, or false when
// absent.
func OptionalStringSet(item Item, attr AttrDef) ([]string, bool, error) {
	a, ok := item[attr.Name]
	if !ok {
		return nil, false, nil
	}
	if a.Type != TypeStringSet {
		return nil, false, typeErr(attr, a.Type)
	}
	return a.SS, true, nil
}

// RequiredStringSet returns the string-set attribute, failing when
// absent.
func RequiredStringSet(item Item, attr AttrDef) ([]string, error) {
	v, ok, err := OptionalStringSet(item, attr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, missingErr(attr)
	}
	return v, nil
}

func optionalNumber(item Item, attr AttrDef) (string, bool, error) {
	a, ok := item[attr.Name]
	if !ok {
		return "", false, nil
	}
	if a.Type != TypeNumber {
		return "", false, typeErr(attr, a.Type)
	}
	return a.N, true, nil
}
