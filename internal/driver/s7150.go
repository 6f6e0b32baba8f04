// Package driver 实现Solartron 7150数字多用表的协议驱动。
// 生命周期：Connect一次 -> Configure一次 -> 反复ReadOne -> ResetAndClose一次。
package driver

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"s7150duo/internal/transport"
	"s7150duo/pkg/protocol"
)

// Instrument 单台7150仪器
type Instrument struct {
	Addr int
	Mode protocol.Mode
	// Settle 设备清除后的稳定等待时间，默认2秒
	Settle time.Duration

	bus        transport.Bus
	h          transport.Handle
	configured bool
	log        *logrus.Logger
	sleep      func(time.Duration)
}

// New 创建仪器对象，不触碰总线
func New(bus transport.Bus, addr int, mode protocol.Mode, log *logrus.Logger) *Instrument {
	return &Instrument{
		Addr:   addr,
		Mode:   mode,
		Settle: protocol.SettleDelay,
		bus:    bus,
		log:    log,
		sleep:  time.Sleep,
	}
}

// Connect 绑定总线地址并初始化仪器：
// 设备清除，等仪器稳定，然后进入流模式（LF分隔、详细输出、连续跟踪）。
func (d *Instrument) Connect() error {
	if d.h != nil {
		return &ConnectError{Addr: d.Addr, Err: errors.New("仪器已连接")}
	}

	h, err := d.bus.Open(d.Addr)
	if err != nil {
		return &ConnectError{Addr: d.Addr, Err: err}
	}

	if err := h.Write([]byte(protocol.CmdDeviceClear)); err != nil {
		h.Close()
		return &ConnectError{Addr: d.Addr, Err: fmt.Errorf("初始化第1步失败: %w", err)}
	}

	d.sleep(d.Settle)

	if err := h.Write([]byte(protocol.CmdStreamInit)); err != nil {
		h.Close()
		return &ConnectError{Addr: d.Addr, Err: fmt.Errorf("初始化第2步失败: %w", err)}
	}

	d.h = h
	d.log.Infof("仪器已连接: GPIB地址 %d, 模式 %s", d.Addr, d.Mode)
	return nil
}

// Configure 设置显示开关、测量模式、量程和积分时间。
// 积分时间代码由请求的采样频率推导。必须在Connect之后、第一次读数之前调用一次。
func (d *Instrument) Configure(displayOn bool, rng protocol.Range, freqHz float64) error {
	if d.h == nil {
		return &ConfigError{Addr: d.Addr, Err: errors.New("仪器未连接")}
	}

	code := protocol.SelectIntegrationCode(freqHz)
	cmd := protocol.ConfigCommand(displayOn, d.Mode, rng, code)

	if err := d.h.Write([]byte(cmd)); err != nil {
		return &ConfigError{Addr: d.Addr, Err: err}
	}

	d.configured = true
	d.log.Debugf("仪器配置完成: 地址 %d, %.2f Hz -> I%d, 命令 %q", d.Addr, freqHz, code, cmd)
	return nil
}

// ReadOne 读取一个读数。delayTenths > 0 时先挂起delay/10秒再发起读取，
// 0表示自由运行，紧接着上一次读数立即读。
// 仪器每个读数输出15个字符加LF（LF前是CR）；
// 返回值去掉了结尾的控制字节，其余内容原样透传，不解析。
func (d *Instrument) ReadOne(delayTenths int) (string, error) {
	if d.h == nil || !d.configured {
		return "", &ReadError{Addr: d.Addr, Err: errors.New("仪器未就绪")}
	}

	if delayTenths > 0 {
		d.sleep(time.Duration(delayTenths) * 100 * time.Millisecond)
	}

	data, err := d.h.Read(protocol.ReadingLength)
	if err != nil {
		return "", &ReadError{Addr: d.Addr, Err: err}
	}

	return strings.TrimRight(string(data), "\r\n"), nil
}

// ResetAndClose 发送本地复位和设备清除，然后释放句柄。
// 即使写入失败句柄也视为已释放。
func (d *Instrument) ResetAndClose() error {
	if d.h == nil {
		return nil
	}
	h := d.h
	d.h = nil
	d.configured = false

	werr := h.Write([]byte(protocol.CmdReset))
	h.Close()

	if werr != nil {
		return &CloseError{Addr: d.Addr, Err: werr}
	}
	d.log.Infof("仪器已复位并断开: GPIB地址 %d", d.Addr)
	return nil
}

// Open 仪器是否处于已连接状态
func (d *Instrument) Open() bool { return d.h != nil }
