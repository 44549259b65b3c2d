package money

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

var (
	ErrInvalidCurrency  = errors.New("invalid currency")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrPrecision        = errors.New("amount has more fractional digits than the currency allows")
	ErrOverflow         = errors.New("amount overflow")
	ErrCurrencyMismatch = errors.New("currency mismatch")
)

// Currency 币种，scale 为最小货币单位的小数位数
type Currency struct {
	code  string
	scale int32
}

// ParseCurrency 解析 ISO 4217 币种代码
func ParseCurrency(code string) (Currency, error) {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return Currency{}, fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	scale, _ := currency.Standard.Rounding(unit)
	return Currency{code: unit.String(), scale: int32(scale)}, nil
}

// MustCurrency 解析币种，失败时 panic，仅用于常量初始化和测试
func MustCurrency(code string) Currency {
	c, err := ParseCurrency(code)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Currency) Code() string   { return c.code }
func (c Currency) Scale() int32   { return c.scale }
func (c Currency) IsZero() bool   { return c.code == "" }
func (c Currency) String() string { return c.code }

// Money 定点金额，以最小货币单位存储
type Money struct {
	minor    int64
	currency Currency
}

// Zero 返回指定币种的零金额
func Zero(c Currency) Money {
	return Money{currency: c}
}

// FromMinor 以最小货币单位构造金额
func FromMinor(minor int64, c Currency) Money {
	return Money{minor: minor, currency: c}
}

// FromDecimal 将十进制数转换为金额，小数位超过币种精度时报错，不做舍入
func FromDecimal(d decimal.Decimal, c Currency) (Money, error) {
	if c.IsZero() {
		return Money{}, ErrInvalidCurrency
	}
	shifted := d.Shift(c.scale)
	if !shifted.IsInteger() {
		return Money{}, fmt.Errorf("%w: %s %s", ErrPrecision, d.String(), c.code)
	}
	if !shifted.BigInt().IsInt64() {
		return Money{}, ErrOverflow
	}
	return Money{minor: shifted.IntPart(), currency: c}, nil
}

// Parse 解析金额字符串
func Parse(s string, c Currency) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return FromDecimal(d, c)
}

func (m Money) Minor() int64       { return m.minor }
func (m Money) Currency() Currency { return m.currency }
func (m Money) IsZero() bool       { return m.minor == 0 }
func (m Money) IsPositive() bool   { return m.minor > 0 }
func (m Money) IsNegative() bool   { return m.minor < 0 }

// Decimal 返回十进制表示
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.minor, -m.currency.scale)
}

// String 按币种精度格式化，例如 "6000.00"
func (m Money) String() string {
	return m.Decimal().StringFixed(m.currency.scale)
}

// Add 加法，币种不一致或溢出时报错
func (m Money) Add(o Money) (Money, error) {
	if m.currency != o.currency {
		return Money{}, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.currency, o.currency)
	}
	if (o.minor > 0 && m.minor > math.MaxInt64-o.minor) || (o.minor < 0 && m.minor < math.MinInt64-o.minor) {
		return Money{}, ErrOverflow
	}
	return Money{minor: m.minor + o.minor, currency: m.currency}, nil
}

// Sub 减法
func (m Money) Sub(o Money) (Money, error) {
	if o.minor == math.MinInt64 {
		return Money{}, ErrOverflow
	}
	return m.Add(Money{minor: -o.minor, currency: o.currency})
}

// Compare 比较两个同币种金额，币种不同属于程序错误
func (m Money) Compare(o Money) int {
	if m.currency != o.currency {
		panic(fmt.Sprintf("money: compare %s with %s", m.currency, o.currency))
	}
	switch {
	case m.minor < o.minor:
		return -1
	case m.minor > o.minor:
		return 1
	default:
		return 0
	}
}

func (m Money) Equal(o Money) bool    { return m.currency == o.currency && m.minor == o.minor }
func (m Money) LessThan(o Money) bool { return m.Compare(o) < 0 }
func (m Money) AtLeast(o Money) bool  { return m.Compare(o) >= 0 }

// Percent 计算 m 占 total 的百分比，保留两位小数
func (m Money) Percent(total Money) decimal.Decimal {
	if total.minor == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(m.minor).
		Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(total.minor), 2)
}

// MarshalJSON 序列化为定点字符串，避免浮点精度丢失
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}
