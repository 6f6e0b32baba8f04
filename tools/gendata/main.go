package main

import (
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
)

// 生成7150风格的读数字符串和数据文件，用于离线测试gnuplot绘图
// 和下游解析，不需要真实仪器。

var units = map[int][2]string{
	0: {"V", "DC"},
	1: {"V", "AC"},
	2: {"kO", "hm"},
	3: {"mA", "DC"},
	4: {"mA", "AC"},
	5: {"mV", "DC"},
}

func main() {
	mode1 := flag.Int("m", 0, "仪器1测量模式 (0-5)")
	mode2 := flag.Int("M", 3, "仪器2测量模式 (0-5)")
	value := flag.Float64("value", 1.234567, "基准测量值")
	noise := flag.Float64("noise", 0.001, "叠加的随机噪声幅度")
	count := flag.Int("count", 10, "生成的采样数")
	delay := flag.Float64("t", 1.0, "采样间隔 (秒)")
	file := flag.Bool("file", false, "输出完整数据文件 (带文件头) 而不是逐条读数")
	flag.Parse()

	if *file {
		fmt.Println("# s7150duo gendata")
		fmt.Println("#")
		fmt.Println("# Acquisition start: (synthetic)")
		fmt.Println("# min\treadout  errflag  unit  mode  unit mode")
		for i := 0; i < *count; i++ {
			min := float64(i) * *delay / 60.0
			fmt.Printf("%.4f\t%s\t%s\n", min,
				reading(*value, *noise, *mode1),
				reading(math.Sin(float64(i)/10.0)**value, *noise, *mode2))
		}
		return
	}

	for i := 0; i < *count; i++ {
		r := reading(*value, *noise, *mode1)
		fmt.Printf("读数 %d:\n", i+1)
		fmt.Printf("  字符串:   %q\n", r)
		fmt.Printf("  线路字节: % x\n", []byte(r+"\r\n"))
	}
}

// reading 生成一条仪器格式的读数：数值、错误标志、单位、模式，共14个字符
func reading(value, noise float64, mode int) string {
	v := value + (rand.Float64()-0.5)*2*noise
	u, ok := units[mode]
	if !ok {
		fmt.Fprintf(os.Stderr, "无效模式: %d\n", mode)
		os.Exit(1)
	}
	return fmt.Sprintf("%+9.6f 0 %s%s", v, u[0], u[1])[:14]
}
