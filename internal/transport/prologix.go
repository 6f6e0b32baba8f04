package transport

import (
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tarm/serial"
)

// Controller Prologix方言的GPIB-USB控制器。
// 整条总线共用一个串口，操作前通过++addr切换目标地址。
type Controller struct {
	port    io.ReadWriteCloser
	log     *logrus.Logger
	curAddr int // 当前寻址的仪器，-1表示未寻址
}

// OpenSerial 打开串口并初始化GPIB控制器
func OpenSerial(portName string, baud int, readTimeout time.Duration, log *logrus.Logger) (*Controller, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        portName,
		Baud:        baud,
		ReadTimeout: readTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("打开串口 %s 失败: %w", portName, err)
	}

	c, err := NewController(port, log)
	if err != nil {
		port.Close()
		return nil, err
	}

	log.Infof("GPIB控制器初始化成功: %s @ %d", portName, baud)
	return c, nil
}

// NewController 在已有的字节流上初始化控制器。
// ++mode 1 = 控制器模式, ++auto 0 = 不自动读回,
// ++eoi 1 = 写入后发EOI, ++eos 3 = 不附加终止符（命令自带LF）。
func NewController(port io.ReadWriteCloser, log *logrus.Logger) (*Controller, error) {
	c := &Controller{
		port:    port,
		log:     log,
		curAddr: -1,
	}

	init := []string{
		"++mode 1",
		"++auto 0",
		"++eoi 1",
		"++eos 3",
		"++read_tmo_ms 1000",
	}
	for _, cmd := range init {
		if err := c.command(cmd); err != nil {
			return nil, fmt.Errorf("控制器初始化失败 (%s): %w", cmd, err)
		}
	}

	return c, nil
}

// Open 绑定到指定GPIB地址
func (c *Controller) Open(addr int) (Handle, error) {
	if addr < 0 || addr > 30 {
		return nil, fmt.Errorf("GPIB地址必须在0到30之间: %d", addr)
	}
	return &gpibHandle{c: c, addr: addr}, nil
}

// Close 关闭串口
func (c *Controller) Close() error {
	// 把仪器交还本地控制
	if err := c.command("++loc"); err != nil {
		c.log.Warnf("++loc 失败: %v", err)
	}
	return c.port.Close()
}

// command 发送一条控制器命令（自动附加LF）
func (c *Controller) command(cmd string) error {
	_, err := c.port.Write([]byte(cmd + "\n"))
	return err
}

// ensureAddr 确保控制器寻址到指定仪器
func (c *Controller) ensureAddr(addr int) error {
	if c.curAddr == addr {
		return nil
	}
	if err := c.command(fmt.Sprintf("++addr %d", addr)); err != nil {
		return fmt.Errorf("切换到地址 %d 失败: %w", addr, err)
	}
	c.curAddr = addr
	return nil
}

// gpibHandle 单台仪器的句柄，所有操作先切换总线地址
type gpibHandle struct {
	c      *Controller
	addr   int
	closed bool
}

func (h *gpibHandle) Write(p []byte) error {
	if h.closed {
		return fmt.Errorf("句柄已关闭 (地址 %d)", h.addr)
	}
	if err := h.c.ensureAddr(h.addr); err != nil {
		return err
	}
	if _, err := h.c.port.Write(p); err != nil {
		return fmt.Errorf("写入地址 %d 失败: %w", h.addr, err)
	}
	return nil
}

func (h *gpibHandle) Read(maxLen int) ([]byte, error) {
	if h.closed {
		return nil, fmt.Errorf("句柄已关闭 (地址 %d)", h.addr)
	}
	if err := h.c.ensureAddr(h.addr); err != nil {
		return nil, err
	}
	if err := h.c.command("++read eoi"); err != nil {
		return nil, fmt.Errorf("发起读取失败 (地址 %d): %w", h.addr, err)
	}

	// 逐字节读到LF或者maxLen为止，不吞掉下一条读数的字节；
	// 串口超时返回0字节
	out := make([]byte, 0, maxLen)
	buf := make([]byte, 1)
	for len(out) < maxLen {
		n, err := h.c.port.Read(buf)
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("读取地址 %d 失败: %w", h.addr, err)
		}
		if n == 0 {
			if len(out) > 0 {
				break
			}
			return nil, fmt.Errorf("读取地址 %d 超时", h.addr)
		}
		out = append(out, buf[0])
		if buf[0] == '\n' {
			break
		}
	}
	return out, nil
}

func (h *gpibHandle) Close() error {
	h.closed = true
	return nil
}
