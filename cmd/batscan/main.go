package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/d-singer/batdetect2-CLI/internal/app/run"
	"github.com/d-singer/batdetect2-CLI/internal/config"
	"github.com/d-singer/batdetect2-CLI/internal/detect"
	"github.com/d-singer/batdetect2-CLI/internal/domain"
	"github.com/d-singer/batdetect2-CLI/internal/infra/fsx"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage()
		return
	}

	switch args[0] {
	case "run":
		if code := runCmd(args[1:]); code != 0 {
			os.Exit(code)
		}
	default:
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
}

func runCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printRunUsage()
			return 0
		}
	}

	ra, err := parseRunArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printRunUsage()
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}
	cwdAbs, _ := filepath.Abs(cwd)

	eff, err := config.LoadEffective(cwd, config.CLIArgs{
		AudioRoot:    ra.AudioRoot,
		OutputDir:    ra.OutputDir,
		OutputDirSet: ra.OutputDirSet,
		BatchSize:    ra.BatchSize,
		BatchSizeSet: ra.BatchSizeSet,
	})
	if err != nil {
		emitReport(reportForConfigError(cwdAbs, err))
		return 1
	}

	// 输出目录同时承载运行锁与工件：两次运行并发写同一目录会破坏
	// “批次序号单调续接”的前提，所以在做任何事之前先抢锁。
	if err := os.MkdirAll(eff.OutputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "创建输出目录失败：%v\n", err)
		return 1
	}
	lock := flock.New(filepath.Join(eff.OutputDir, ".batscan.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		fmt.Fprintf(os.Stderr, "获取运行锁失败：%v\n", err)
		return 1
	}
	if !locked {
		fmt.Fprintf(os.Stderr, "另一个 batscan 正在写入 %s（锁文件 .batscan.lock 被占用）\n", eff.OutputDir)
		return 1
	}
	defer func() { _ = lock.Unlock() }()

	factory := detect.NewCLI(detect.WithBinary(eff.Command))

	progressW, interactive := pickProgressWriter()
	var obs run.Observer
	if interactive {
		obs = newProgressUI(progressW)
	}

	rr := run.ExecuteWithObserver(context.Background(), eff, factory, obs)

	if err := writeReportFile(eff.OutputDir, rr); err != nil {
		fmt.Fprintf(os.Stderr, "写入 report.json 失败：%v\n", err)
		emitReport(rr)
		return 1
	}

	emitReport(rr)
	if interactive {
		emitLocations(progressW, eff)
	}
	if rr.Summary.Failed == 0 {
		return 0
	}
	return 1
}

type runArgs struct {
	AudioRoot string

	OutputDir    string
	OutputDirSet bool

	BatchSize    int
	BatchSizeSet bool
}

func parseRunArgs(args []string) (runArgs, error) {
	ra := runArgs{}

	setBatchSize := func(v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("--batch-size 需要一个整数，实际是 %q", v)
		}
		ra.BatchSize = n
		ra.BatchSizeSet = true
		return nil
	}

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--output-dir":
			if i+1 >= len(args) {
				return runArgs{}, fmt.Errorf("--output-dir 需要一个值")
			}
			i++
			ra.OutputDir = args[i]
			ra.OutputDirSet = true
		case strings.HasPrefix(a, "--output-dir="):
			ra.OutputDir = strings.TrimPrefix(a, "--output-dir=")
			ra.OutputDirSet = true
		case a == "--batch-size":
			if i+1 >= len(args) {
				return runArgs{}, fmt.Errorf("--batch-size 需要一个值")
			}
			i++
			if err := setBatchSize(args[i]); err != nil {
				return runArgs{}, err
			}
		case strings.HasPrefix(a, "--batch-size="):
			if err := setBatchSize(strings.TrimPrefix(a, "--batch-size=")); err != nil {
				return runArgs{}, err
			}
		case strings.HasPrefix(a, "-"):
			return runArgs{}, fmt.Errorf("未知参数 %q", a)
		default:
			if ra.AudioRoot != "" {
				return runArgs{}, fmt.Errorf("重复的 audio-root：%q 与 %q", ra.AudioRoot, a)
			}
			ra.AudioRoot = a
		}
	}

	if ra.OutputDirSet && strings.TrimSpace(ra.OutputDir) == "" {
		return runArgs{}, fmt.Errorf("--output-dir 不能为空")
	}

	return ra, nil
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage() {
	fmt.Fprint(os.Stdout, `用法：
  batscan run [audio-root] [--output-dir DIR] [--batch-size N]

命令：
  run    扫描 audio-root 下的 WAV 录音，分批调用 batdetect2 并按文件夹合并结果

使用 "batscan run --help" 查看详细说明。
`)
}

func printRunUsage() {
	fmt.Fprint(os.Stdout, `用法：
  batscan run [audio-root] [--output-dir DIR] [--batch-size N]

参数：
  audio-root    录音根目录（未指定则读当前目录下 batscan.json 的 audio_root）
  --output-dir  工件输出目录（默认 02_BATDETECT2，相对当前目录解析）
  --batch-size  每批处理的文件数（默认 100）
  -h, --help    显示帮助

说明：
  重复运行会跳过已有结果的文件；中断后重跑从上次的批次工件续接。
`)
}

func emitReport(rr domain.RunReport) {
	if isTTY(os.Stdout) {
		fmt.Fprintf(os.Stdout, "完成：processed=%d skipped=%d failed=%d\n",
			rr.Summary.Processed, rr.Summary.Skipped, rr.Summary.Failed,
		)
		if t := renderUnitTable(rr.Units); t != "" {
			fmt.Fprintln(os.Stdout, t)
		}
		for _, u := range rr.Units {
			if u.Status != domain.StatusFailed {
				continue
			}
			key := u.Unit
			if key == "" {
				key = "<run>"
			}
			fmt.Fprintf(os.Stderr, "%s %s: %s\n", key, u.ErrorCode, u.ErrorMsg)
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（摘要走 stderr）。
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(rr)
	fmt.Fprintf(os.Stderr, "完成：processed=%d skipped=%d failed=%d\n",
		rr.Summary.Processed, rr.Summary.Skipped, rr.Summary.Failed,
	)
}

func reportForConfigError(cwdAbs string, err error) domain.RunReport {
	now := time.Now().UTC()
	rr := domain.RunReport{
		AudioRoot:  cwdAbs,
		StartedAt:  now,
		FinishedAt: now,
		Units: []domain.UnitResult{{
			Status:    domain.StatusFailed,
			ErrorCode: config.Code(err),
			ErrorMsg:  err.Error(),
			Warnings:  []string{},
		}},
	}
	rr.Finalize()
	return rr
}

func writeReportFile(outputDir string, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return fsx.WriteFileAtomicReplace(outputDir, "report.json", b)
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(os.Stderr) {
		return os.Stderr, true
	}
	// 某些环境（例如仅重定向 stderr）下，stdout 仍是 TTY：退化输出到 stdout。
	if isTTY(os.Stdout) {
		return os.Stdout, true
	}
	return nil, false
}

func emitLocations(w io.Writer, eff config.EffectiveConfig) {
	if w == nil {
		return
	}
	fmt.Fprintf(w, "artifacts: %s\n", eff.OutputDir)
	fmt.Fprintf(w, "report: %s\n", filepath.Join(eff.OutputDir, "report.json"))
}
