package driver

import "fmt"

// 驱动层的错误分类。采集循环把这些错误一律视为致命错误，
// 不重试：总线故障后的读数在积分/时序假设上已不可信。

// ConnectError 总线拒绝地址或握手写入失败
type ConnectError struct {
	Addr int
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("连接仪器失败 (GPIB地址 %d): %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// ConfigError 配置命令写入失败
type ConfigError struct {
	Addr int
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("配置仪器失败 (GPIB地址 %d): %v", e.Addr, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ReadError 读数失败
type ReadError struct {
	Addr int
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("读取仪器失败 (GPIB地址 %d): %v", e.Addr, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// CloseError 复位/断开命令写入失败。句柄无论如何都视为已释放。
type CloseError struct {
	Addr int
	Err  error
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("复位仪器失败 (GPIB地址 %d): %v", e.Addr, e.Err)
}

func (e *CloseError) Unwrap() error { return e.Err }
