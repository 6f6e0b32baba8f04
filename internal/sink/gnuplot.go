package sink

import (
	"fmt"
	"io"
	"os/exec"

	"github.com/sirupsen/logrus"
	"s7150duo/pkg/protocol"
)

// Gnuplot 通过管道驱动的实时绘图进程。
// 启动失败不致命：会话降级为无绘图继续运行。
type Gnuplot struct {
	cmd      *exec.Cmd
	in       io.WriteCloser
	datafile string
	log      *logrus.Logger

	addrs []int
	modes []protocol.Mode
}

// NewGnuplot 启动gnuplot进程并连接其标准输入
func NewGnuplot(path, datafile string, log *logrus.Logger) (*Gnuplot, error) {
	cmd := exec.Command(path)
	in, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("创建gnuplot管道失败: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("启动gnuplot失败: %w", err)
	}

	return &Gnuplot{
		cmd:      cmd,
		in:       in,
		datafile: datafile,
		log:      log,
	}, nil
}

// Setup 发送一次性的绘图设置命令（标题、网格、坐标轴标签）
func (g *Gnuplot) Setup(addrs []int, modes []protocol.Mode) error {
	g.addrs = addrs
	g.modes = modes

	_, err := fmt.Fprintf(g.in, "set mouse;set mouse labels; set style data lines; set title '%s'\n", g.datafile)
	if err != nil {
		return err
	}
	if _, err = fmt.Fprintf(g.in, "set grid xt; set grid yt; set xlabel 'min'; set ylabel '%s'\n", g.modes[0].YLabel()); err != nil {
		return err
	}
	if len(g.modes) > 1 {
		if _, err = fmt.Fprintf(g.in, "set y2label '%s'; set y2tics\n", g.modes[1].YLabel()); err != nil {
			return err
		}
	}
	return nil
}

// Replot 重新发出绘图命令。读数字符串里的空格把一行拆成多列，
// 第一台仪器的数值在第2列，第二台在第5列。
func (g *Gnuplot) Replot() error {
	var err error
	if len(g.addrs) > 1 {
		_, err = fmt.Fprintf(g.in, "plot '%s' using 1:2 title '%d: %s', '' using 1:5 title '%d: %s'\n",
			g.datafile, g.addrs[0], g.modes[0].YLabel(), g.addrs[1], g.modes[1].YLabel())
	} else {
		_, err = fmt.Fprintf(g.in, "plot '%s' using 1:2 title '%d: %s'\n",
			g.datafile, g.addrs[0], g.modes[0].YLabel())
	}
	return err
}

// Close 关闭管道并等待gnuplot退出
func (g *Gnuplot) Close() error {
	g.in.Close()
	if err := g.cmd.Wait(); err != nil {
		g.log.Debugf("gnuplot退出: %v", err)
	}
	return nil
}
