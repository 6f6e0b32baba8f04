package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"s7150duo/internal/acquire"
	"s7150duo/internal/config"
	"s7150duo/internal/driver"
	"s7150duo/internal/keyboard"
	"s7150duo/internal/monitor"
	"s7150duo/internal/sink"
	"s7150duo/internal/transport"
	"s7150duo/pkg/protocol"
)

var (
	Version   = "1.0.0"
	BuildTime = "unknown"
)

// 退出码与老版本保持一致
const (
	exitUsage      = 1
	exitFile       = 4
	exitInstrument = 5
)

func main() {
	os.Exit(run())
}

func run() int {
	// 命令行参数
	configFile := flag.String("config", "configs/config.yaml", "配置文件路径")
	showVersion := flag.Bool("version", false, "显示版本信息")
	addr1 := flag.Int("a", 16, "仪器1的GPIB地址 (0-30)")
	addr2 := flag.Int("A", 12, "仪器2的GPIB地址 (0-30, -1表示只用一台仪器)")
	mode1 := flag.Int("m", 0, "仪器1测量模式 (0=DCV 1=ACV 2=Ohm 3=DCA 4=ACA 5=Diode, plus型号: 6=DegC 7=DegF)")
	mode2 := flag.Int("M", 3, "仪器2测量模式")
	delay := flag.Int("t", 10, "采样间隔, 单位0.1秒 (0-600, 0=自由运行)")
	timeout := flag.Float64("T", 0, "采集限时, 分钟 (0=不限时)")
	cadence := flag.Int("w", 100, "每多少个采样强制写盘并重绘")
	noDisplay := flag.Bool("d", false, "关闭仪器显示")
	noGraph := flag.Bool("n", false, "禁用实时绘图")
	force := flag.Bool("f", false, "强制覆盖已有数据文件")
	comment := flag.String("c", "", "写入文件头的注释文本")
	flag.Parse()

	if *showVersion {
		fmt.Printf("s7150duo v%s (Build: %s)\n", Version, BuildTime)
		return 0
	}

	fmt.Fprintf(os.Stderr, "\ns7150duo - 双Solartron 7150 GPIB数据采集 v%s\n\n", Version)

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "请指定数据文件。'-h' 查看帮助。")
		return exitUsage
	}
	datafile := flag.Arg(0)

	// 参数检查
	if *addr1 < 0 || *addr1 > 30 || *addr2 > 30 {
		fmt.Fprintln(os.Stderr, "错误: GPIB地址必须在0到30之间。")
		return exitUsage
	}
	if *addr2 >= 0 && *addr1 == *addr2 {
		fmt.Fprintln(os.Stderr, "错误: 两台仪器必须使用不同的GPIB地址。")
		return exitUsage
	}
	if *delay < 0 || *delay > 600 {
		fmt.Fprintln(os.Stderr, "错误: 采样间隔必须是0到600 (1/10秒)。")
		return exitUsage
	}
	if *timeout < 0 {
		fmt.Fprintln(os.Stderr, "错误: 限时必须为正数。")
		return exitUsage
	}
	if *cadence < 1 {
		fmt.Fprintln(os.Stderr, "错误: 刷新间隔必须至少为1。")
		return exitUsage
	}

	// 加载配置
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v, 使用默认配置\n", err)
		cfg = config.GetDefaultConfig()
	}

	m1, m2 := protocol.Mode(*mode1), protocol.Mode(*mode2)
	if !m1.Valid(cfg.Instrument.Plus) || (*addr2 >= 0 && !m2.Valid(cfg.Instrument.Plus)) {
		if cfg.Instrument.Plus {
			fmt.Fprintln(os.Stderr, "错误: 测量模式必须是0到7。")
		} else {
			fmt.Fprintln(os.Stderr, "错误: 测量模式必须是0到5。")
		}
		return exitUsage
	}

	// 初始化日志
	log := setupLogger(cfg.Log)
	log.Infof("s7150duo v%s 启动中...", Version)

	// 数据文件已存在且未指定-f时询问
	if _, err := os.Stat(datafile); err == nil && !*force {
		fmt.Fprintf(os.Stderr, "\a文件 '%s' 已存在 - 覆盖? [Y/*] ", datafile)
		var answer string
		fmt.Scanln(&answer)
		if answer != "Y" && answer != "y" {
			return exitUsage
		}
	}

	// 监控
	if cfg.Monitor.Enabled {
		mon := monitor.NewMonitor(log)
		mon.StartMetricsServer(cfg.Monitor.MetricsPort)
	}

	// 打开仪器总线
	bus, err := transport.OpenSerial(cfg.Bus.Port, cfg.Bus.Baud, cfg.Bus.ReadTimeout, log)
	if err != nil {
		log.Errorf("打开仪器总线失败: %v", err)
		return exitInstrument
	}
	defer bus.Close()

	// 数据文件输出端
	file, err := sink.NewDataFile(datafile, "v"+Version)
	if err != nil {
		log.Errorf("%v", err)
		return exitFile
	}
	defer file.Close()

	// 实时绘图: 启动失败只降级, 不退出
	var plot *sink.Gnuplot
	if !*noGraph {
		plot, err = sink.NewGnuplot(cfg.Plot.Gnuplot, datafile, log)
		if err != nil {
			log.Warnf("无法启动gnuplot, 继续无绘图运行: %v", err)
			plot = nil
		}
	}

	// 构建仪器列表
	instruments := []*driver.Instrument{driver.New(bus, *addr1, m1, log)}
	if *addr2 >= 0 {
		instruments = append(instruments, driver.New(bus, *addr2, m2, log))
	}

	sess := acquire.NewSession(instruments, acquire.Options{
		DelayTenths: *delay,
		Cadence:     *cadence,
		TimeoutMin:  *timeout,
		Comment:     *comment,
		DisplayOn:   !*noDisplay,
	}, file, log)
	if plot != nil {
		sess.Plot = plot
		defer plot.Close()
	}
	sess.Progress = os.Stdout

	// 可选的Redis发布
	if cfg.Redis.Enabled {
		pub, err := sink.NewPublisher(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.Channel,
			cfg.Redis.DB, cfg.Redis.PoolSize, datafile, log)
		if err != nil {
			log.Warnf("Redis发布不可用: %v", err)
		} else {
			sess.Publisher = pub
			defer pub.Close()
		}
	}

	// 键盘取消源: 原始模式必须在所有退出路径上恢复
	kb, err := keyboard.Open()
	if err != nil {
		log.Warnf("无法切换终端到原始模式, 按键停止不可用: %v", err)
	} else {
		sess.Keys = kb
		defer kb.Restore()
	}

	// SIGINT/SIGTERM也按正常停止处理, 在迭代边界生效
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	printSummary(instruments, *delay, *cadence, *timeout, datafile, *comment)

	if err := sess.Run(ctx); err != nil {
		log.Errorf("采集失败: %v", err)
		return exitInstrument
	}

	fmt.Printf("\n采集完成, 共 %d 个采样。\n", sess.Count())

	// 绘图窗口保持到任意按键
	if plot != nil && kb != nil {
		fmt.Println("按任意键关闭绘图窗口并退出。")
		kb.Wait()
	}

	return 0
}

func printSummary(instruments []*driver.Instrument, delay, cadence int, timeout float64, datafile, comment string) {
	if len(instruments) > 1 {
		fmt.Printf("\n GPIB地址 :  %d 和 %d", instruments[0].Addr, instruments[1].Addr)
	} else {
		fmt.Printf("\n GPIB地址 :  %d", instruments[0].Addr)
	}
	fmt.Printf("\n 数据文件 :  %s", datafile)
	if comment != "" {
		fmt.Printf("\n     注释 :  %s", comment)
	}
	fmt.Printf("\n 采样间隔 :  %.1f s", float64(delay)/10.0)
	fmt.Printf("\n 刷新间隔 :  %d", cadence)
	if timeout > 0 {
		fmt.Printf("\n 采集限时 :  %g min", timeout)
	}
	fmt.Printf("\n     停止 :  按 'q' 或 ESC。\n")
	fmt.Printf("\n      计数         耗时      读数\n")
}

func setupLogger(cfg config.LogConfig) *logrus.Logger {
	log := logrus.New()

	// 日志默认走stderr, 不和采样进度行抢stdout
	log.SetOutput(os.Stderr)

	// 设置日志级别
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	// 设置日志格式
	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	// 设置输出
	if cfg.Output == "file" && cfg.FilePath != "" {
		file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err == nil {
			log.SetOutput(file)
		} else {
			log.Warnf("打开日志文件失败: %v, 使用标准错误输出", err)
		}
	}

	return log
}
