// Package sink 实现采集数据的各个输出端：
// 追加写的文本数据文件、gnuplot实时绘图管道、可选的Redis发布。
package sink

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"s7150duo/pkg/protocol"
)

// SinkError 持久化输出端打开/写入失败，对会话是致命的
type SinkError struct {
	Path string
	Err  error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("数据文件输出失败 (%s): %v", e.Path, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }

// DataFile 追加写的文本数据文件。
// 每个采样一行：制表符分隔的耗时（分钟）和各仪器的原始读数。
type DataFile struct {
	path    string
	version string
	f       *os.File
	w       *bufio.Writer
}

// NewDataFile 创建（或截断）数据文件
func NewDataFile(path, version string) (*DataFile, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, &SinkError{Path: path, Err: err}
	}
	return &DataFile{
		path:    path,
		version: version,
		f:       f,
		w:       bufio.NewWriter(f),
	}, nil
}

// Path 数据文件路径（gnuplot的plot命令需要）
func (d *DataFile) Path() string { return d.path }

// WriteHeader 在第一个采样之前写文件头
func (d *DataFile) WriteHeader(comment string, start time.Time) error {
	_, err := fmt.Fprintf(d.w, "# s7150duo %s\n# %s\n# Acquisition start: %s\n# min\treadout  errflag  unit  mode  unit mode\n",
		d.version, comment, start.Format(time.ANSIC))
	if err != nil {
		return &SinkError{Path: d.path, Err: err}
	}
	return nil
}

// WriteSample 写一条采样记录，读数字符串原样写入
func (d *DataFile) WriteSample(s *protocol.Sample) error {
	if _, err := fmt.Fprintf(d.w, "%.4f", s.ElapsedMin); err != nil {
		return &SinkError{Path: d.path, Err: err}
	}
	for _, r := range s.Readings {
		if _, err := fmt.Fprintf(d.w, "\t%s", r); err != nil {
			return &SinkError{Path: d.path, Err: err}
		}
	}
	if _, err := fmt.Fprintln(d.w); err != nil {
		return &SinkError{Path: d.path, Err: err}
	}
	return nil
}

// WriteFooter 在最后一个采样之后写终止标记
func (d *DataFile) WriteFooter(stop time.Time) error {
	if _, err := fmt.Fprintf(d.w, "# Acquisition stop: %s\n", stop.Format(time.ANSIC)); err != nil {
		return &SinkError{Path: d.path, Err: err}
	}
	return nil
}

// Flush 把缓冲内容刷到磁盘
func (d *DataFile) Flush() error {
	if err := d.w.Flush(); err != nil {
		return &SinkError{Path: d.path, Err: err}
	}
	return nil
}

// Close 刷新并关闭文件
func (d *DataFile) Close() error {
	if err := d.w.Flush(); err != nil {
		d.f.Close()
		return &SinkError{Path: d.path, Err: err}
	}
	if err := d.f.Close(); err != nil {
		return &SinkError{Path: d.path, Err: err}
	}
	return nil
}
