package common

import "errors"

type InternalError struct {
	ErrCode int32
	ErrMsg  string
}

func (e *InternalError) Error() string {
	return e.ErrMsg
}

const (
	Code_None                     int32 = 0
	Code_ValidationFailed         int32 = 400
	Code_NotPermitted             int32 = 403
	Code_NotFound                 int32 = 404
	Code_ConcurrentUpdateConflict int32 = 409
	Code_SvcInternalError         int32 = 500
)

const (
	Msg_NotFound                 = "not found"
	Msg_NotPermitted             = "not permitted"
	Msg_ConcurrentUpdateConflict = "concurrent update conflict"
	Msg_SvcInternalError         = "service internal error"
)

func NotFound(what string) *InternalError {
	return &InternalError{ErrCode: Code_NotFound, ErrMsg: what + " " + Msg_NotFound}
}

func ValidationFailed(reason string) *InternalError {
	return &InternalError{ErrCode: Code_ValidationFailed, ErrMsg: reason}
}

func NotPermitted(reason string) *InternalError {
	if reason == "" {
		reason = Msg_NotPermitted
	}
	return &InternalError{ErrCode: Code_NotPermitted, ErrMsg: reason}
}

func ConcurrentUpdateConflict() *InternalError {
	return &InternalError{ErrCode: Code_ConcurrentUpdateConflict, ErrMsg: Msg_ConcurrentUpdateConflict}
}

// HasCode reports whether err wraps an InternalError carrying code.
func HasCode(err error, code int32) bool {
	var internalErr *InternalError
	if errors.As(err, &internalErr) {
		return internalErr.ErrCode == code
	}
	return false
}
