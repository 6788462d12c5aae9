package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrJobNotFound         = errors.New("job not found")
	ErrSessionNotFound     = errors.New("session not found")
	ErrRoomNotFound        = errors.New("room not found")
	ErrMeasurementNotFound = errors.New("measurement not found")
	ErrCatalogItemNotFound = errors.New("catalog item not found")
	ErrPhotoNotFound       = errors.New("photo not found")

	// 会计系统提交错误类别（用 errors.Is 匹配 AccountingError）
	ErrMissingCredentials = errors.New("missing accounting credentials")
	ErrTransport          = errors.New("accounting transport error")
	ErrMalformedResponse  = errors.New("malformed accounting response")
	ErrAPIRejection       = errors.New("accounting api rejection")
)

// ValidationError 客户端可修正的校验错误，只阻止当前操作
type ValidationError struct {
	Field   string
	Message string
	// Rooms 缺少照片的房间标题（仅 photos 校验）
	Rooms []string
}

func (e *ValidationError) Error() string {
	if len(e.Rooms) > 0 {
		return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.Rooms, ", "))
	}
	return e.Message
}

// NewValidationError 创建校验错误
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// PersistenceError 文档写入失败；工作副本保持不变，可直接重试
type PersistenceError struct {
	JobID string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to save remediation for job %s: %v", e.JobID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// UploadError 照片批量上传失败；整批丢弃，房间照片列表不变
type UploadError struct {
	Failed int
	Total  int
	Err    error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("photo upload failed (%d of %d): %v", e.Failed, e.Total, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// AccountingError 会计系统提交失败（当前尝试终止，不重试）
type AccountingError struct {
	Kind       error // ErrMissingCredentials / ErrTransport / ErrMalformedResponse / ErrAPIRejection
	Message    string
	StatusCode int
	Err        error
}

func (e *AccountingError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%v: %s", e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	}
	return e.Kind.Error()
}

func (e *AccountingError) Is(target error) bool { return target == e.Kind }

func (e *AccountingError) Unwrap() error { return e.Err }
