package protocol

import (
	"fmt"
	"time"
)

// Mode 测量模式（对应仪器的M命令参数）
type Mode int

const (
	ModeDCV Mode = iota
	ModeACV
	ModeOhm
	ModeDCA
	ModeACA
	ModeDiode
	// 以下两种模式仅7150-plus型号支持
	ModeDegC
	ModeDegF
)

var modeNames = []string{"DCV", "ACV", "Ohm", "DCA", "ACA", "Diode", "DegC", "DegF"}

// 各模式对应的Y轴单位标签（用于gnuplot）
var modeLabels = []string{"V", "V", "kOhms", "mA", "mA", "mV", "deg C", "deg F"}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	return modeNames[m]
}

// YLabel 返回该模式测量值的单位标签
func (m Mode) YLabel() string {
	if m < 0 || int(m) >= len(modeLabels) {
		return ""
	}
	return modeLabels[m]
}

// Valid 检查模式编号是否有效，plus表示仪器是7150-plus型号
func (m Mode) Valid(plus bool) bool {
	if plus {
		return m >= ModeDCV && m <= ModeDegF
	}
	return m >= ModeDCV && m <= ModeDiode
}

// Range 量程代码（对应仪器的R命令参数），目前只使用自动量程
type Range int

const RangeAuto Range = 0

// IntegrationCode 积分时间代码（对应仪器的I命令参数）
type IntegrationCode int

const (
	// I0 = 6.7 ms 积分（最快）
	IntegrationFastest IntegrationCode = 0
	// I1 = 40 ms 积分（抑制50 Hz工频噪声）
	IntegrationFast IntegrationCode = 1
	// I3 = 400 ms 积分（默认）
	IntegrationDefault IntegrationCode = 3
	// I4 = 平均模式（最大积分，最慢）
	IntegrationAverage IntegrationCode = 4
)

// SelectIntegrationCode 根据请求的采样频率选择积分时间代码。
// 这是一个经验性取舍：采样越快积分越短。边界使用严格大于，
// 恰好1.5 Hz和10 Hz落入较慢的档位。
func SelectIntegrationCode(freqHz float64) IntegrationCode {
	code := IntegrationDefault
	if freqHz < 0.25 {
		code = IntegrationAverage
	}
	if freqHz > 1.5 {
		code = IntegrationFast
	}
	if freqHz > 10.0 {
		code = IntegrationFastest
	}
	return code
}

// 仪器线路协议常量
const (
	// 设备清除（直接写DC1会报错，所以握手阶段用A）
	CmdDeviceClear = "A\n"
	// U7 = LF作为分隔符, N0 = 详细输出, T1 = 连续跟踪
	CmdStreamInit = "U7N0T1\n"
	// 本地复位后跟设备清除
	CmdReset = "DC1\nA\n"

	// 握手后仪器的稳定等待时间
	SettleDelay = 2 * time.Second

	// 一次读数的长度：15个字符加LF（LF前是CR）
	ReadingLength = 16
)

// ConfigCommand 编码一条复合配置命令。注意7150用"D1"表示关闭显示。
func ConfigCommand(displayOn bool, mode Mode, rng Range, code IntegrationCode) string {
	d := 0
	if !displayOn {
		d = 1
	}
	return fmt.Sprintf("D%dM%dR%dI%d\n", d, int(mode), int(rng), int(code))
}

// Sample 一次采样：每台仪器一条原始读数字符串
type Sample struct {
	Sequence   uint64    `json:"sequence"`
	ElapsedMin float64   `json:"elapsed_min"`
	Addresses  []int     `json:"addresses"`
	Readings   []string  `json:"readings"`
	Timestamp  time.Time `json:"timestamp"`
}
