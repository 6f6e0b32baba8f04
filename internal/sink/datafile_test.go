package sink

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"s7150duo/pkg/protocol"
)

func newTestFile(t *testing.T) *DataFile {
	t.Helper()
	path := filepath.Join(t.TempDir(), "out.dat")
	d, err := NewDataFile(path, "v1.0.0")
	if err != nil {
		t.Fatalf("NewDataFile: %v", err)
	}
	return d
}

func TestHeaderAndFooter(t *testing.T) {
	d := newTestFile(t)
	start := time.Date(2025, 8, 11, 10, 0, 0, 0, time.UTC)

	if err := d.WriteHeader("测试运行", start); err != nil {
		t.Fatal(err)
	}
	if err := d.WriteFooter(start.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(d.Path())
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)

	for _, want := range []string{
		"# s7150duo v1.0.0\n",
		"# 测试运行\n",
		"# Acquisition start: Mon Aug 11 10:00:00 2025\n",
		"# min\treadout  errflag  unit  mode  unit mode\n",
		"# Acquisition stop: Mon Aug 11 10:01:00 2025\n",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("文件缺少 %q, 实际内容:\n%s", want, text)
		}
	}
}

func TestWriteSampleFormat(t *testing.T) {
	d := newTestFile(t)

	s := &protocol.Sample{
		Sequence:   1,
		ElapsedMin: 0.12345,
		Readings:   []string{"+1.234567 0 VD", "-0.000123 0 AD"},
	}
	if err := d.WriteSample(s); err != nil {
		t.Fatal(err)
	}
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(d.Path())
	want := "0.1235\t+1.234567 0 VD\t-0.000123 0 AD\n"
	if string(data) != want {
		t.Errorf("采样行 = %q, 期望 %q", data, want)
	}
}

// 写入输出端的读数必须与驱动返回的字符串逐字节一致
func TestSampleRoundTrip(t *testing.T) {
	d := newTestFile(t)

	reading := "  1.999999!O DC" // 带错误标志的读数也原样透传
	if err := d.WriteSample(&protocol.Sample{ElapsedMin: 1.0, Readings: []string{reading}}); err != nil {
		t.Fatal(err)
	}
	d.Close()

	data, _ := os.ReadFile(d.Path())
	line := strings.TrimSuffix(string(data), "\n")
	_, got, ok := strings.Cut(line, "\t")
	if !ok || got != reading {
		t.Errorf("回读 = %q, 期望 %q", got, reading)
	}
}

func TestFlushMakesDataVisible(t *testing.T) {
	d := newTestFile(t)

	if err := d.WriteSample(&protocol.Sample{ElapsedMin: 0, Readings: []string{"x"}}); err != nil {
		t.Fatal(err)
	}
	if err := d.Flush(); err != nil {
		t.Fatal(err)
	}

	// 不关闭文件也应能读到已刷新的数据
	data, err := os.ReadFile(d.Path())
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Error("Flush后文件不应为空")
	}
	d.Close()
}

func TestNewDataFileFailure(t *testing.T) {
	_, err := NewDataFile(filepath.Join(t.TempDir(), "no", "such", "dir", "x.dat"), "v1")
	var se *SinkError
	if !errors.As(err, &se) {
		t.Fatalf("期望SinkError, 得到 %v", err)
	}
}
