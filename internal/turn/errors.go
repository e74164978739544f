package turn

import (
	"errors"
	"fmt"
)

// ErrPrivacyMisconfiguration 隐私模式开启但本地后端不可用
var ErrPrivacyMisconfiguration = errors.New("privacy mode enabled but local provider unavailable")

// ErrEmptyInput 用户输入为空
var ErrEmptyInput = errors.New("empty input text")

// ExhaustedError 主备生成后端都失败
type ExhaustedError struct {
	PrimaryProvider   string
	PrimaryErr        error
	SecondaryProvider string
	SecondaryErr      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all providers failed: %s: %v; %s: %v",
		e.PrimaryProvider, e.PrimaryErr, e.SecondaryProvider, e.SecondaryErr)
}

// Unwrap 支持 errors.Is/As 穿透到两个底层错误
func (e *ExhaustedError) Unwrap() []error {
	return []error{e.PrimaryErr, e.SecondaryErr}
}
