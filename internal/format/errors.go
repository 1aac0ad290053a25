package format

import (
	"errors"

	"github.com/NotTobi/soundcloud-dl-sub000/pkg/types"
)

var (
	// ErrTagShape indicates a tag that does not encode to 1-4 bytes.
	ErrTagShape = errors.New("format: malformed tag")
	// ErrEmptyValue indicates empty text or an empty byte payload.
	ErrEmptyValue = errors.New("format: empty value")
	// ErrUnsupportedValue indicates a value kind the tag's classifier cannot carry.
	ErrUnsupportedValue = errors.New("format: unsupported value type")
	// ErrValueRange indicates an integer that does not fit the tag's field width.
	ErrValueRange = errors.New("format: value out of range")
	// ErrTruncated indicates the buffer lacked the bytes required for a structure.
	ErrTruncated = errors.New("format: truncated buffer")
)

// validation wraps cause as a typed validation error.
func validation(msg string, cause error) error {
	return types.Errorf(types.ErrKindValidation, msg, cause)
}
