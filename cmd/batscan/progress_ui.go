package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/d-singer/batdetect2-CLI/internal/app/run"
	"github.com/d-singer/batdetect2-CLI/internal/config"
	"github.com/d-singer/batdetect2-CLI/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是一个“简洁版”的交互终端进度输出。
//
// 设计目标：
// - 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出契约
// - 事件驱动：run 层只发事件，CLI 决定如何展示
// - keepalive：批次内长时间无文件完成时也会定期输出一行，降低等待焦虑
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	unit       string
	unitsDone  int
	unitsTotal int
	fileDone   int
	fileTotal  int

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	now := time.Now()

	p.mu.Lock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	fmt.Fprintf(p.w, "[%s] batscan run\n", now.Format("15:04:05"))
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  audio_root: %s\n", eff.AudioRoot)
	fmt.Fprintf(p.w, "  output_dir: %s\n", eff.OutputDir)
	fmt.Fprintf(p.w, "  batch_size: %d\n", eff.BatchSize)
	fmt.Fprintf(p.w, "  workers: %d\n", eff.Workers)
	fmt.Fprintf(p.w, "  command: %s\n", eff.Command)
	fmt.Fprintf(p.w, "  detection_threshold: %g\n", eff.DetectionThreshold)
	if eff.TimeExpansionFactor != 1 {
		fmt.Fprintf(p.w, "  time_expansion_factor: %d\n", eff.TimeExpansionFactor)
	}
	fmt.Fprintf(p.w, "  exclude_dirs: %s + 固定排除输出目录\n", formatStringListJSON(eff.ExcludeDirs))

	fmt.Fprintln(p.w, "输出:")
	fmt.Fprintf(p.w, "  artifacts: %s\n", eff.OutputDir)
	fmt.Fprintf(p.w, "  report: %s\n", filepath.Join(eff.OutputDir, "report.json"))
	fmt.Fprintln(p.w)

	p.lastPrinted = time.Now()
	p.mu.Unlock()
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "scan":
		fmt.Fprintf(p.w, "扫描: files=%d units=%d (%s)\n\n",
			intField(fields, "files"), intField(fields, "units"), formatShortDuration(dur),
		)
	default:
		// 兜底：未知阶段也不要静默（便于调试/演进）。
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnUnitStart(idx, total int, unit string, files, resumed, remaining, batches int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.unit = unit
	p.unitsTotal = total
	p.fileDone = 0
	p.fileTotal = remaining

	if resumed > 0 {
		fmt.Fprintf(p.w, "[%d/%d] %s files=%d 续跑已覆盖=%d 待处理=%d batches=%d\n",
			idx, total, unit, files, resumed, remaining, batches,
		)
	} else {
		fmt.Fprintf(p.w, "[%d/%d] %s files=%d batches=%d\n",
			idx, total, unit, files, batches,
		)
	}
	p.lastPrinted = time.Now()

	if remaining > 0 && !p.tickerStarted {
		p.startTickerLocked()
	}
}

func (p *progressUI) OnFileDone(unit string, done, total int) {
	// 单文件完成不逐行打印（一批可能有上百个文件）；只更新 keepalive 用的计数。
	p.mu.Lock()
	p.unit = unit
	p.fileDone = done
	p.fileTotal = total
	p.mu.Unlock()
}

func (p *progressUI) OnBatchDone(unit string, seq, files int, artifactName string, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.w, "  批次 %d：files=%d -> %s (%s)\n",
		seq, files, artifactName, formatShortDuration(dur),
	)
	p.fileDone = 0
	p.fileTotal = 0
	p.lastPrinted = time.Now()
}

func (p *progressUI) OnWarning(unit, path, msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	loc := path
	if loc == "" {
		loc = unit
	}
	fmt.Fprintf(p.w, "  警告 %s: %s\n", loc, truncate(msg, 160))
	p.lastPrinted = time.Now()
}

func (p *progressUI) OnUnitDone(idx, total int, res domain.UnitResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.unitsDone = idx
	p.unitsTotal = total

	status := strings.ToUpper(res.Status)
	switch res.Status {
	case domain.StatusProcessed:
		status = "OK"
	case domain.StatusSkipped:
		status = "SKIP"
	case domain.StatusFailed:
		status = "FAIL"
	}

	switch res.Status {
	case domain.StatusFailed:
		fmt.Fprintf(p.w, "[%d/%d] %s %s %s: %s (%s)\n",
			idx, total, res.Unit, status, res.ErrorCode, truncate(res.ErrorMsg, 160), formatShortDuration(dur),
		)
	case domain.StatusSkipped:
		fmt.Fprintf(p.w, "[%d/%d] %s %s (结果已齐全，无需调用模型) (%s)\n",
			idx, total, res.Unit, status, formatShortDuration(dur),
		)
	default:
		fmt.Fprintf(p.w, "[%d/%d] %s %s batches=%d records=%d (%s)\n",
			idx, total, res.Unit, status, res.Batches, res.Records, formatShortDuration(dur),
		)
	}

	p.lastPrinted = time.Now()

	// 最后一个单元完成：停止 ticker，避免在结束打印后又冒出 keepalive。
	if p.tickerStarted && p.unitsDone >= p.unitsTotal {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

func (p *progressUI) OnProgress(done, total int, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.w, "进度: files=%d/%d elapsed=%s\n", done, total, formatElapsed(elapsed))
	p.lastPrinted = time.Now()
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 6 * time.Second
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				// 已完成：安全退出（OnUnitDone 会 close stopCh，但这里也做兜底）。
				if p.unitsTotal > 0 && p.unitsDone >= p.unitsTotal {
					p.mu.Unlock()
					return
				}

				if p.fileTotal > 0 && time.Since(p.lastPrinted) > threshold {
					elapsed := time.Since(p.startedAt)
					fmt.Fprintf(p.w, "进度: %s files=%d/%d elapsed=%s\n",
						p.unit, p.fileDone, p.fileTotal, formatElapsed(elapsed),
					)
					p.lastPrinted = time.Now()
				}
				p.mu.Unlock()
			case <-p.stopCh:
				return
			}
		}
	}()
}

func formatStringListJSON(xs []string) string {
	// json.Marshal(nil slice) => "null"；对用户更友好的是 "[]"
	if xs == nil {
		xs = []string{}
	}
	b, err := json.Marshal(xs)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	v, ok := fields[key]
	if !ok {
		return 0
	}
	switch x := v.(type) {
	case int:
		return x
	case int32:
		return int(x)
	case int64:
		return int(x)
	case uint:
		return int(x)
	case uint32:
		return int(x)
	case uint64:
		return int(x)
	default:
		return 0
	}
}
