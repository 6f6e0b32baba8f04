// Package transport 提供仪器总线的字节流抽象。
// 总线是本地的、同步阻塞的，每个句柄同一时刻只有一个在途操作。
package transport

// Handle 绑定到某个总线地址的仪器句柄
type Handle interface {
	// Write 向仪器写入原始字节
	Write(p []byte) error
	// Read 从仪器读取最多maxLen字节
	Read(maxLen int) ([]byte, error)
	// Close 释放句柄
	Close() error
}

// Bus 可寻址的仪器总线
type Bus interface {
	// Open 绑定到指定总线地址（0-30）
	Open(addr int) (Handle, error)
	// Close 关闭整条总线
	Close() error
}
