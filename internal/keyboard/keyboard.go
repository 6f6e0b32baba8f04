// Package keyboard 提供基于原始终端模式的非阻塞按键轮询，
// 作为采集循环的取消信号源。
package keyboard

import (
	"time"

	"github.com/pkg/term"
)

// Keyboard 原始模式下的/dev/tty。用完必须调用Restore恢复终端设置。
type Keyboard struct {
	t *term.Term
}

// Open 把控制终端切换到原始模式
func Open() (*Keyboard, error) {
	t, err := term.Open("/dev/tty", term.RawMode)
	if err != nil {
		return nil, err
	}
	return &Keyboard{t: t}, nil
}

// Poll 非阻塞地查询一次按键。没有按键时返回 (0, false)。
func (k *Keyboard) Poll() (byte, bool) {
	if err := k.t.SetReadTimeout(time.Millisecond); err != nil {
		return 0, false
	}
	buf := make([]byte, 1)
	n, err := k.t.Read(buf)
	if err != nil || n == 0 {
		return 0, false
	}
	return buf[0], true
}

// Wait 阻塞等待任意按键（绘图窗口保持时用）
func (k *Keyboard) Wait() byte {
	for {
		if key, ok := k.Poll(); ok {
			return key
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// Restore 恢复终端原始设置并关闭
func (k *Keyboard) Restore() error {
	if err := k.t.Restore(); err != nil {
		k.t.Close()
		return err
	}
	return k.t.Close()
}
