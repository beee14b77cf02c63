package logging

import (
	"time"

	"github.com/felixgeelhaar/bolt/v3"
)

// Field 向日志事件追加结构化字段
type Field func(*bolt.Event) *bolt.Event

// RequestID 提交的请求标识
func RequestID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("request_id", id)
	}
}

// State 会话状态
func State(s string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("state", s)
	}
}

// Query 执行的查询语句
func Query(q string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("query", q)
	}
}

// Rows 结果行数
func Rows(n int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int("rows", n)
	}
}

// Charts 推断出的图表数
func Charts(n int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int("charts", n)
	}
}

// Duration 耗时（毫秒）
func Duration(d time.Duration) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int64("duration_ms", d.Milliseconds())
	}
}

func Component(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("component", name)
	}
}

func ErrorField(err error) Field {
	return func(e *bolt.Event) *bolt.Event {
		if err == nil {
			return e
		}
		return e.Err(err)
	}
}

func Str(key, value string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str(key, value)
	}
}
