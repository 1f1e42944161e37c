package resolver

import (
	"strings"

	"talent-mirror/internal/opt"
)

// Predicate 判断一个已存在的值是否仍表示“未知”。
type Predicate[T any] func(T) bool

// Unknown 是默认判定：字符串类型按哨兵规则判断，其他类型永远已知。
func Unknown[T any](v T) bool {
	if s, ok := any(v).(string); ok {
		return opt.IsSentinel(s)
	}
	return false
}

// ResolveWith 按优先级返回第一个有值且非未知的来源及其下标，没有则返回缺失和 -1。
func ResolveWith[T any](isUnknown Predicate[T], sources ...opt.Value[T]) (opt.Value[T], int) {
	if isUnknown == nil {
		isUnknown = Unknown[T]
	}
	for i, src := range sources {
		v, ok := src.Get()
		if !ok || isUnknown(v) {
			continue
		}
		if s, isString := any(v).(string); isString {
			trimmed := any(strings.TrimSpace(s)).(T)
			return opt.Some(trimmed), i
		}
		return src, i
	}
	return opt.None[T](), -1
}

// Resolve 对单个字段应用默认哨兵判定，sources 从最权威到最不权威排列。
func Resolve[T any](field string, sources ...opt.Value[T]) opt.Value[T] {
	v, _ := ResolveWith(Unknown[T], sources...)
	return v
}
