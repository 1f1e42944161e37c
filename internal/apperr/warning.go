package apperr

import "fmt"

// WarningCode 标识不会中止主操作的问题。
type WarningCode string

const (
	// WarnPersistence 解析成功但镜像写入失败。
	WarnPersistence WarningCode = "PERSISTENCE"
	// WarnSyncPartial 批量写入中部分行被拒绝。
	WarnSyncPartial WarningCode = "SYNC_PARTIAL"
)

// Warning 附着在成功结果上，对用户可见但不阻塞流程。
type Warning struct {
	Code    WarningCode `json:"code"`
	Message string      `json:"message"`
	Err     error       `json:"-"`
}

func (w *Warning) Error() string {
	if w.Err != nil {
		return fmt.Sprintf("%s: %s: %v", w.Code, w.Message, w.Err)
	}
	return fmt.Sprintf("%s: %s", w.Code, w.Message)
}

func (w *Warning) Unwrap() error { return w.Err }

// Warn 构造 Warning。
func Warn(code WarningCode, msg string, err error) *Warning {
	return &Warning{Code: code, Message: msg, Err: err}
}
