package httpapi

// Result 统一响应包装
// - code: ResultSuccess = 2000
// - type: 'success' | 'error'
// - message: string
// - result: any
type Result[T any] struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Result  T      `json:"result"`
}

const (
	ResultSuccess = 2000
	ResultError   = -1
)

func Ok[T any](result T) Result[T] {
	return Result[T]{Code: ResultSuccess, Type: "success", Message: "ok", Result: result}
}

func Fail(message string) Result[any] {
	return Result[any]{Code: ResultError, Type: "error", Message: message, Result: nil}
}

// FailWithResult 失败时附带结构化信息（例如缺少照片的房间）
func FailWithResult(message string, result any) Result[any] {
	return Result[any]{Code: ResultError, Type: "error", Message: message, Result: result}
}
