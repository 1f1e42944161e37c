package opt

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Value 表示一个可能缺失的字段值。
// 解析服务返回的字段有三种“没有值”的形式：字段缺省、JSON null、哨兵字符串 "null"，
// 在边界处统一折叠为缺失，系统其他位置不再重复判断。
type Value[T any] struct {
	v  T
	ok bool
}

// Some 构造一个有值的 Value。
func Some[T any](v T) Value[T] {
	return Value[T]{v: v, ok: true}
}

// None 构造一个缺失的 Value。
func None[T any]() Value[T] {
	return Value[T]{}
}

// FromPtr 将可空指针转换为 Value，nil 视为缺失。
func FromPtr[T any](p *T) Value[T] {
	if p == nil {
		return None[T]()
	}
	return Some(*p)
}

// Get 返回值以及是否存在。
func (o Value[T]) Get() (T, bool) {
	return o.v, o.ok
}

// IsSet 判断是否有值。
func (o Value[T]) IsSet() bool {
	return o.ok
}

// OrElse 缺失时返回 fallback。
func (o Value[T]) OrElse(fallback T) T {
	if !o.ok {
		return fallback
	}
	return o.v
}

// Ptr 返回值的指针，缺失时为 nil，用于写入可空列。
func (o Value[T]) Ptr() *T {
	if !o.ok {
		return nil
	}
	v := o.v
	return &v
}

func (o Value[T]) MarshalJSON() ([]byte, error) {
	if !o.ok {
		return []byte("null"), nil
	}
	return json.Marshal(o.v)
}

func (o *Value[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = None[T]()
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if s, isString := any(v).(string); isString && IsSentinel(s) {
		*o = None[T]()
		return nil
	}
	*o = Some(v)
	return nil
}

// sentinels 是解析服务用来表示“未找到”的字面量（比较时忽略大小写与首尾空白）。
var sentinels = map[string]struct{}{
	"null":         {},
	"not provided": {},
}

// IsSentinel 判断字符串是否为“未知”哨兵。空白字符串同样视为没有值。
func IsSentinel(s string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(s))
	if trimmed == "" {
		return true
	}
	_, ok := sentinels[trimmed]
	return ok
}

// Text 将原始字符串规范化为 Value：哨兵与空白都视为缺失，其余去除首尾空白。
func Text(s string) Value[string] {
	if IsSentinel(s) {
		return None[string]()
	}
	return Some(strings.TrimSpace(s))
}

// TextPtr 同 Text，但接受可空指针。
func TextPtr(p *string) Value[string] {
	if p == nil {
		return None[string]()
	}
	return Text(*p)
}

// Strings 过滤字符串列表中的哨兵元素。nil 输入保持 nil，以区分“未提供”与“空列表”。
func Strings(items []string) []string {
	if items == nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if IsSentinel(item) {
			continue
		}
		out = append(out, strings.TrimSpace(item))
	}
	return out
}
