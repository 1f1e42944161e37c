package feed

import "time"

// Op 变更类型。
type Op string

const (
	OpUpsert Op = "upsert"
	OpDelete Op = "delete"
)

// Event 描述一次已提交的行变更。
type Event struct {
	ID      string    `json:"id"`
	Table   string    `json:"table"`
	Op      Op        `json:"op"`
	Key     string    `json:"key"`
	OwnerID string    `json:"owner_id"`
	At      time.Time `json:"at"`
	// Origin 标记产生事件的进程，Redis 转发时用于跳过自身事件。
	Origin string `json:"origin,omitempty"`
}

// Filter 选择订阅的事件，空字段表示不限。
type Filter struct {
	Table   string
	OwnerID string
	Key     string
}

// Match 判断事件是否满足过滤条件。
func (f Filter) Match(ev Event) bool {
	if f.Table != "" && f.Table != ev.Table {
		return false
	}
	if f.OwnerID != "" && f.OwnerID != ev.OwnerID {
		return false
	}
	if f.Key != "" && f.Key != ev.Key {
		return false
	}
	return true
}

// Entity 构造针对单个实体的过滤条件，例如某个候选人档案。
func Entity(table, ownerID string) Filter {
	return Filter{Table: table, OwnerID: ownerID}
}
