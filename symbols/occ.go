package symbols

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Option 一张期权合约的要素。
type Option struct {
	Underlying string
	Expiry     time.Time
	Call       bool
	Strike     float64
}

// OCC 生成 OCC 格式的期权标的，如 AAPL260116C00150000。
func (o Option) OCC() string {
	putCall := "P"
	if o.Call {
		putCall = "C"
	}
	// 行权价 ×1000，8 位零填充
	strike := int64(o.Strike*1000 + 0.5)
	return fmt.Sprintf("%s%s%s%08d",
		strings.ToUpper(o.Underlying), o.Expiry.Format("060102"), putCall, strike)
}

// ParseOCC 解析 OCC 标的；非期权格式返回 false。
func ParseOCC(symbol string) (Option, bool) {
	// 最短形式：1 字符标的 + 6 位日期 + C/P + 8 位行权价
	if len(symbol) < 16 {
		return Option{}, false
	}
	strikePart := symbol[len(symbol)-8:]
	pc := symbol[len(symbol)-9]
	datePart := symbol[len(symbol)-15 : len(symbol)-9]
	underlying := symbol[:len(symbol)-15]

	if pc != 'C' && pc != 'P' {
		return Option{}, false
	}
	expiry, err := time.Parse("060102", datePart)
	if err != nil {
		return Option{}, false
	}
	strike, err := strconv.ParseInt(strikePart, 10, 64)
	if err != nil {
		return Option{}, false
	}
	return Option{
		Underlying: underlying,
		Expiry:     expiry,
		Call:       pc == 'C',
		Strike:     float64(strike) / 1000,
	}, true
}

// IsOption 判断标的是否为 OCC 期权格式。
func IsOption(symbol string) bool {
	_, ok := ParseOCC(symbol)
	return ok
}
