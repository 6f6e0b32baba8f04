// Package acquire 实现双仪器采集会话的状态机：
// Idle -> Opening -> Configuring -> Sampling -> Draining -> Closed，
// 采样阶段的任何致命错误直接跳到Closed。
// 整个会话单线程同步运行，取消信号按迭代轮询，从不抢占。
package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"s7150duo/internal/driver"
	"s7150duo/internal/monitor"
	"s7150duo/pkg/protocol"
)

// State 会话状态
type State int

const (
	StateIdle State = iota
	StateOpening
	StateConfiguring
	StateSampling
	StateDraining
	StateClosed
)

var stateNames = []string{"Idle", "Opening", "Configuring", "Sampling", "Draining", "Closed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// DataSink 持久化输出端。写入失败对会话是致命的。
type DataSink interface {
	WriteHeader(comment string, start time.Time) error
	WriteSample(s *protocol.Sample) error
	WriteFooter(stop time.Time) error
	Flush() error
}

// PlotSink 实时绘图输出端。失败只会降级，不会终止会话。
type PlotSink interface {
	Setup(addrs []int, modes []protocol.Mode) error
	Replot() error
}

// Publisher 可选的采样流发布端
type Publisher interface {
	Publish(ctx context.Context, s *protocol.Sample) error
}

// KeyPoller 非阻塞按键查询。'q'和ESC是停止请求，其他按键忽略。
type KeyPoller interface {
	Poll() (byte, bool)
}

// 停止键
const (
	KeyQuit   byte = 'q'
	KeyEscape byte = 27
)

// Options 会话参数
type Options struct {
	// 请求的采样间隔，单位0.1秒，0表示自由运行
	DelayTenths int
	// 每多少个采样强制刷新数据文件并重绘
	Cadence int
	// 超过该分钟数后自动停止，0表示不限时
	TimeoutMin float64
	// 数据文件头里的注释文本
	Comment string
	// 是否保持仪器显示开启
	DisplayOn bool
}

// Session 一次采集会话。所有输出端句柄由会话独占，只在循环线程里写。
type Session struct {
	// Plot 可为nil（无绘图运行）
	Plot PlotSink
	// Publisher 可为nil
	Publisher Publisher
	// Keys 可为nil（无键盘取消源）
	Keys KeyPoller
	// Progress 每个采样写一行进度，可为nil
	Progress io.Writer

	instruments []*driver.Instrument
	opts        Options
	file        DataSink
	log         *logrus.Logger

	state State
	count uint64
	now   func() time.Time
}

// NewSession 创建会话。instruments必须是1或2台尚未连接的仪器。
func NewSession(instruments []*driver.Instrument, opts Options, file DataSink, log *logrus.Logger) *Session {
	return &Session{
		instruments: instruments,
		opts:        opts,
		file:        file,
		log:         log,
		state:       StateIdle,
		now:         time.Now,
	}
}

// State 当前会话状态
func (s *Session) State() State { return s.state }

// Count 已持久化的采样数
func (s *Session) Count() uint64 { return s.count }

// effectiveDelay 双仪器时把请求的间隔平分：循环在一次迭代里顺序读两台仪器，
// 两次挂起加起来应接近请求的总间隔。整数十分之一秒语义，10 -> 每台5。
func effectiveDelay(delayTenths, instruments int) int {
	if instruments > 1 {
		return delayTenths / 2
	}
	return delayTenths
}

// requestFrequency 由每台仪器的有效间隔推出请求频率。
// 自由运行时为+Inf，落入最快的积分档。
func requestFrequency(effDelayTenths int) float64 {
	if effDelayTenths <= 0 {
		return math.Inf(1)
	}
	return 10.0 / float64(effDelayTenths)
}

// Run 执行整个会话。返回nil表示正常停止且所有仪器关闭成功。
func (s *Session) Run(ctx context.Context) error {
	// Opening: 按固定顺序连接
	s.state = StateOpening
	for i, inst := range s.instruments {
		if err := inst.Connect(); err != nil {
			// 对称清理已连接的仪器，不让它们留在跟踪模式
			for _, prev := range s.instruments[:i] {
				if cerr := prev.ResetAndClose(); cerr != nil {
					s.log.Errorf("清理仪器失败: %v", cerr)
				}
			}
			s.state = StateClosed
			return err
		}
	}

	// Configuring
	s.state = StateConfiguring
	eff := effectiveDelay(s.opts.DelayTenths, len(s.instruments))
	freq := requestFrequency(eff)
	for _, inst := range s.instruments {
		if err := inst.Configure(s.opts.DisplayOn, protocol.RangeAuto, freq); err != nil {
			return s.fatal(err)
		}
	}

	if err := s.file.WriteHeader(s.opts.Comment, s.now()); err != nil {
		return s.fatal(err)
	}
	if s.Plot != nil {
		if err := s.Plot.Setup(s.addresses(), s.modes()); err != nil {
			s.log.Warnf("绘图初始化失败, 继续无绘图运行: %v", err)
			s.Plot = nil
		}
	}

	if err := s.sample(ctx, eff); err != nil {
		return s.fatal(err)
	}

	// Draining: 正常停止才写终止标记和最终绘图
	s.state = StateDraining
	stop := s.now()
	if err := s.file.WriteFooter(stop); err != nil {
		return s.fatal(err)
	}
	if err := s.file.Flush(); err != nil {
		return s.fatal(err)
	}
	if s.Plot != nil {
		if err := s.Plot.Replot(); err != nil {
			s.log.Warnf("最终绘图失败: %v", err)
		}
	}

	return s.closeAll()
}

// sample 采样主循环。返回非nil表示致命错误；正常停止返回nil。
func (s *Session) sample(ctx context.Context, eff int) error {
	s.state = StateSampling

	var t0 time.Time
	readings := make([]string, len(s.instruments))

	for {
		// 顺序读取：仪器1严格先于仪器2
		for i, inst := range s.instruments {
			begin := time.Now()
			r, err := inst.ReadOne(eff)
			if err != nil {
				monitor.ReadErrors.Inc()
				return err
			}
			monitor.ReadDuration.Observe(time.Since(begin).Seconds())
			monitor.ReadsTotal.WithLabelValues(strconv.Itoa(inst.Addr)).Inc()
			readings[i] = r
		}

		now := s.now()
		if t0.IsZero() {
			// 计时从第一次成功读数开始
			t0 = now
		}
		elapsed := now.Sub(t0).Minutes()

		s.count++
		sample := &protocol.Sample{
			Sequence:   s.count,
			ElapsedMin: elapsed,
			Addresses:  s.addresses(),
			Readings:   append([]string(nil), readings...),
			Timestamp:  now,
		}

		if err := s.file.WriteSample(sample); err != nil {
			return err
		}
		monitor.SamplesTotal.Inc()
		monitor.ElapsedMinutes.Set(elapsed)

		if s.Publisher != nil {
			if err := s.Publisher.Publish(ctx, sample); err != nil {
				s.log.Warnf("发布采样失败: %v", err)
			}
		}
		if s.Progress != nil {
			fmt.Fprintf(s.Progress, "%10d %10.2f min    %s\r",
				s.count, elapsed, strings.Join(readings, "\t"))
		}

		// 每cadence个采样强制落盘并重绘
		if s.opts.Cadence > 0 && s.count%uint64(s.opts.Cadence) == 0 {
			if err := s.file.Flush(); err != nil {
				return err
			}
			monitor.FlushesTotal.Inc()
			if s.Plot != nil {
				if err := s.Plot.Replot(); err != nil {
					s.log.Warnf("重绘失败, 继续无绘图运行: %v", err)
					s.Plot = nil
				}
			}
		}

		// 停止条件：限时（严格大于）、按键、上层取消。
		// 都在整个迭代完成后才生效，读数从不中途放弃。
		if s.opts.TimeoutMin > 0 && elapsed > s.opts.TimeoutMin {
			s.log.Infof("达到限时 %.2f 分钟, 停止采集", s.opts.TimeoutMin)
			return nil
		}
		if s.Keys != nil {
			if key, ok := s.Keys.Poll(); ok {
				if key == KeyQuit || key == KeyEscape {
					s.log.Info("收到停止按键")
					return nil
				}
			}
		}
		if ctx.Err() != nil {
			s.log.Info("上层取消, 停止采集")
			return nil
		}
	}
}

// fatal 致命错误路径：跳过Draining直接关闭所有仪器，返回原始错误
func (s *Session) fatal(err error) error {
	if cerr := s.closeAll(); cerr != nil {
		s.log.Errorf("错误善后时关闭仪器失败: %v", cerr)
	}
	return err
}

// closeAll 关闭所有还打开的仪器。一台失败不影响关闭另一台，
// 但只要有失败会话整体就算失败。
func (s *Session) closeAll() error {
	s.state = StateClosed
	var errs []error
	for _, inst := range s.instruments {
		if !inst.Open() {
			continue
		}
		if err := inst.ResetAndClose(); err != nil {
			s.log.Errorf("关闭仪器失败: %v", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Session) addresses() []int {
	addrs := make([]int, len(s.instruments))
	for i, inst := range s.instruments {
		addrs[i] = inst.Addr
	}
	return addrs
}

func (s *Session) modes() []protocol.Mode {
	modes := make([]protocol.Mode, len(s.instruments))
	for i, inst := range s.instruments {
		modes[i] = inst.Mode
	}
	return modes
}
