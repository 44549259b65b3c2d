package clock

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Instant 统一的 UTC 时间点，精度为微秒（与 PostgreSQL timestamptz 一致）
type Instant struct {
	t time.Time
}

// At 将任意时区的时间转换为 Instant
func At(t time.Time) Instant {
	if t.IsZero() {
		return Instant{}
	}
	return Instant{t: t.UTC().Truncate(time.Microsecond)}
}

// Parse 解析 RFC3339 时间，必须带时区偏移，拒绝无时区的本地时间
func Parse(s string) (Instant, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return Instant{}, fmt.Errorf("instant %q must be RFC3339 with an explicit offset: %w", s, err)
	}
	return At(t), nil
}

func (i Instant) Time() time.Time             { return i.t }
func (i Instant) IsZero() bool                { return i.t.IsZero() }
func (i Instant) Before(o Instant) bool       { return i.t.Before(o.t) }
func (i Instant) After(o Instant) bool        { return i.t.After(o.t) }
func (i Instant) Equal(o Instant) bool        { return i.t.Equal(o.t) }
func (i Instant) Add(d time.Duration) Instant { return At(i.t.Add(d)) }
func (i Instant) Sub(o Instant) time.Duration { return i.t.Sub(o.t) }

// Ptr 返回指针，便于可选字段赋值
func (i Instant) Ptr() *Instant {
	return &i
}

func (i Instant) String() string {
	return i.t.Format(time.RFC3339Nano)
}

func (i Instant) MarshalJSON() ([]byte, error) {
	if i.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(i.String())
}

func (i *Instant) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*i = Instant{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// Clock 时间源
type Clock interface {
	Now() Instant
}

// System 系统时钟
type System struct{}

func (System) Now() Instant {
	return At(time.Now())
}

// Manual 手动推进的时钟，用于测试
type Manual struct {
	mu  sync.Mutex
	now Instant
}

// NewManual 创建手动时钟
func NewManual(start time.Time) *Manual {
	return &Manual{now: At(start)}
}

func (m *Manual) Now() Instant {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set 设置当前时间
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = At(t)
}

// Advance 推进时间
func (m *Manual) Advance(d time.Duration) Instant {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
	return m.now
}
