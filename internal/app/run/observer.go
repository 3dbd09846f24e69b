package run

import (
	"time"

	"github.com/d-singer/batdetect2-CLI/internal/config"
	"github.com/d-singer/batdetect2-CLI/internal/domain"
)

// Observer 用于把“运行进度/阶段/单元结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - Observer 的实现必须并发安全：事件可能来自多个 goroutine。
type Observer interface {
	// OnStart 在 ExecuteWithObserver 开始时调用（应尽量早，保证用户 1 秒内看到输出）。
	OnStart(eff config.EffectiveConfig)
	// OnPhaseDone 在阶段结束时调用（用于打印阶段统计与耗时）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnUnitStart 在进入一个工作单元时调用（含续跑统计与批次规划结果）。
	OnUnitStart(idx, total int, unit string, files, resumed, remaining, batches int)
	// OnFileDone 在当前批内每完成一个文件时调用（完成顺序无任何保证）。
	OnFileDone(unit string, done, total int)
	// OnBatchDone 在一个批次工件落盘后调用。
	OnBatchDone(unit string, seq, files int, artifactName string, dur time.Duration)
	// OnWarning 对应可恢复故障（坏工件、删除失败等），带定位上下文。
	OnWarning(unit, path, msg string)
	// OnUnitDone 在某个单元处理完成时调用（用于每单元的一行输出）。
	OnUnitDone(idx, total int, res domain.UnitResult, dur time.Duration)
	// OnProgress 用于 keepalive（通常由 CLI 自己 ticker 触发；run 层不强制调用）。
	OnProgress(done, total int, elapsed time.Duration)
}
