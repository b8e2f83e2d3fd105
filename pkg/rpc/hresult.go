package rpc

import "fmt"

// HResult is a Win32 HRESULT: 0 on success, negative (high bit set) on
// failure. Every RPC response payload carries one so the caller can map it
// back to an exit code or a facility-specific Win32 error.
type HResult int32

const (
	SOK             HResult = 0x00000000
	SFalse          HResult = 0x00000001
	EFail           HResult = -2147467259 // 0x80004005
	ENotImpl        HResult = -2147467263 // 0x80004001
	EInvalidArg     HResult = -2147024809 // 0x80070057
	EAbort          HResult = -2147467260 // 0x80004004
	EAccessDenied   HResult = -2147024891 // 0x80070005
	EOutOfMemory    HResult = -2147024882 // 0x8007000E
	EHandle         HResult = -2147024890 // 0x80070006
	EPending        HResult = -2147483638 // 0x8000000A
	ENotFound       HResult = -2147023728 // 0x80070490 HRESULT_FROM_WIN32(ERROR_NOT_FOUND)
	EInvalidData    HResult = -2147024883 // 0x8007000D HRESULT_FROM_WIN32(ERROR_INVALID_DATA)
	EInvalidState   HResult = -2147019873 // 0x8007139F HRESULT_FROM_WIN32(ERROR_INVALID_STATE)
	ETypeMismatch   HResult = -2147352571 // 0x80020005 DISP_E_TYPEMISMATCH
)

// IsSuccess reports whether the high bit is clear.
func (h HResult) IsSuccess() bool {
	return h >= 0
}

// IsFailure reports whether the high bit is set.
func (h HResult) IsFailure() bool {
	return h < 0
}

func (h HResult) Error() string {
	switch h {
	case SOK:
		return "S_OK"
	case SFalse:
		return "S_FALSE"
	case EFail:
		return "E_FAIL"
	case ENotImpl:
		return "E_NOTIMPL"
	case EInvalidArg:
		return "E_INVALIDARG"
	case EAbort:
		return "E_ABORT"
	case EAccessDenied:
		return "E_ACCESSDENIED"
	case EOutOfMemory:
		return "E_OUTOFMEMORY"
	case EHandle:
		return "E_HANDLE"
	case EPending:
		return "E_PENDING"
	case ENotFound:
		return "E_NOTFOUND"
	case EInvalidData:
		return "E_INVALIDDATA"
	case EInvalidState:
		return "E_INVALIDSTATE"
	case ETypeMismatch:
		return "DISP_E_TYPEMISMATCH"
	default:
		return fmt.Sprintf("HRESULT(0x%08X)", uint32(h))
	}
}

// Win32FromFacility extracts the Win32 error code from an HRESULT in
// FACILITY_WIN32 (7), the facility HRESULT_FROM_WIN32 uses. Returns 0, false
// if h is not in that facility.
func Win32FromFacility(h HResult) (code uint16, ok bool) {
	v := uint32(h)
	if v&0x80070000 != 0x80070000 {
		return 0, false
	}
	return uint16(v & 0xFFFF), true
}
