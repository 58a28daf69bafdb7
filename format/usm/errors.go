package usm

import "errors"

// Errors returned while reading or writing containers.
var (
	ErrTooSmall         = errors.New("usm: file too small")
	ErrInvalidSignature = errors.New("usm: invalid file signature")
	ErrMissingCrid      = errors.New("usm: no crid page found for channel")
	ErrMissingUsmCrid   = errors.New("usm: no usm crid page found")
	ErrNoVersion        = errors.New("usm: format version not found")
	ErrNoVideo          = errors.New("usm: no video given")
	ErrSizeUnknown      = errors.New("usm: size after crid part not given")
	ErrOutputIsFile     = errors.New("usm: output path exists and is a file")
	ErrKeyRequired      = errors.New("usm: operation mode requires a key")
	ErrInfoTooLarge     = errors.New("usm: info chunk does not fit in one sector")
	ErrIncomplete       = errors.New("usm: element lacks a crid or header page")
)
