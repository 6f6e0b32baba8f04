package transport

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

// fakePort 记录所有写入，按预置内容响应读取
type fakePort struct {
	wrote  bytes.Buffer
	toRead bytes.Buffer
	closed bool
}

func (f *fakePort) Write(p []byte) (int, error) { return f.wrote.Write(p) }

func (f *fakePort) Read(p []byte) (int, error) {
	if f.toRead.Len() == 0 {
		return 0, io.EOF
	}
	return f.toRead.Read(p)
}

func (f *fakePort) Close() error {
	f.closed = true
	return nil
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestController(t *testing.T) (*Controller, *fakePort) {
	t.Helper()
	port := &fakePort{}
	c, err := NewController(port, testLogger())
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	port.wrote.Reset() // 丢掉初始化命令，测试只关心后续流量
	return c, port
}

func TestControllerInit(t *testing.T) {
	port := &fakePort{}
	if _, err := NewController(port, testLogger()); err != nil {
		t.Fatalf("NewController: %v", err)
	}

	got := port.wrote.String()
	for _, cmd := range []string{"++mode 1\n", "++auto 0\n", "++eoi 1\n", "++eos 3\n"} {
		if !strings.Contains(got, cmd) {
			t.Errorf("初始化序列缺少 %q, 实际: %q", cmd, got)
		}
	}
}

func TestOpenRejectsBadAddress(t *testing.T) {
	c, _ := newTestController(t)
	for _, addr := range []int{-1, 31, 100} {
		if _, err := c.Open(addr); err == nil {
			t.Errorf("Open(%d) 应该失败", addr)
		}
	}
	if _, err := c.Open(0); err != nil {
		t.Errorf("Open(0): %v", err)
	}
	if _, err := c.Open(30); err != nil {
		t.Errorf("Open(30): %v", err)
	}
}

func TestWriteSwitchesAddressOnce(t *testing.T) {
	c, port := newTestController(t)
	h, err := c.Open(16)
	if err != nil {
		t.Fatal(err)
	}

	if err := h.Write([]byte("A\n")); err != nil {
		t.Fatal(err)
	}
	if err := h.Write([]byte("U7N0T1\n")); err != nil {
		t.Fatal(err)
	}

	got := port.wrote.String()
	want := "++addr 16\nA\nU7N0T1\n"
	if got != want {
		t.Errorf("写入流量 = %q, 期望 %q (同地址只切换一次)", got, want)
	}
}

func TestWriteSwitchesBetweenInstruments(t *testing.T) {
	c, port := newTestController(t)
	h1, _ := c.Open(16)
	h2, _ := c.Open(12)

	h1.Write([]byte("G\n"))
	h2.Write([]byte("G\n"))
	h1.Write([]byte("G\n"))

	got := port.wrote.String()
	want := "++addr 16\nG\n++addr 12\nG\n++addr 16\nG\n"
	if got != want {
		t.Errorf("写入流量 = %q, 期望 %q", got, want)
	}
}

func TestReadIssuesReadCommand(t *testing.T) {
	c, port := newTestController(t)
	h, _ := c.Open(12)
	port.toRead.WriteString(" 1.234567 0 V DC\r\n")

	data, err := h.Read(16)
	if err != nil {
		t.Fatal(err)
	}

	if !strings.HasSuffix(port.wrote.String(), "++read eoi\n") {
		t.Errorf("读取前应发送++read eoi, 实际流量: %q", port.wrote.String())
	}
	if len(data) != 16 {
		t.Errorf("读取了%d字节, 期望16", len(data))
	}
}

func TestReadStopsAtLF(t *testing.T) {
	c, port := newTestController(t)
	h, _ := c.Open(12)
	port.toRead.WriteString("abc\r\nxyz")

	data, err := h.Read(16)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "abc\r\n" {
		t.Errorf("Read = %q, 应在LF处停止", data)
	}
}

func TestReadTimeout(t *testing.T) {
	c, _ := newTestController(t)
	h, _ := c.Open(12)

	if _, err := h.Read(16); err == nil {
		t.Error("无数据时读取应返回超时错误")
	}
}

func TestClosedHandleRefusesIO(t *testing.T) {
	c, _ := newTestController(t)
	h, _ := c.Open(16)
	h.Close()

	if err := h.Write([]byte("G\n")); err == nil {
		t.Error("关闭后的句柄写入应失败")
	}
	if _, err := h.Read(16); err == nil {
		t.Error("关闭后的句柄读取应失败")
	}
}
