package run

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/d-singer/batdetect2-CLI/internal/app"
	"github.com/d-singer/batdetect2-CLI/internal/app/planner"
	"github.com/d-singer/batdetect2-CLI/internal/artifact"
	"github.com/d-singer/batdetect2-CLI/internal/config"
	"github.com/d-singer/batdetect2-CLI/internal/detect"
	"github.com/d-singer/batdetect2-CLI/internal/domain"
	"github.com/d-singer/batdetect2-CLI/internal/scan"
)

// Execute 执行一次完整运行（全部工作单元），并返回对外稳定的 RunReport。
// 该函数尽量把错误“降级”为单元级失败（单个单元失败不影响其他单元）。
func Execute(ctx context.Context, eff config.EffectiveConfig, factory detect.Factory) domain.RunReport {
	return ExecuteWithObserver(ctx, eff, factory, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度/阶段信息（由上层决定是否启用）。
//
// 单元之间、单元内批次之间都是串行的：并发只存在于单个批次的执行内部。
// 这样一个单元崩溃不会丢掉此前单元已合并的成果，续跑从同一状态机重新进入。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, factory detect.Factory, obs Observer) domain.RunReport {
	started := time.Now().UTC()

	if obs != nil {
		obs.OnStart(eff)
	}

	rr := domain.RunReport{
		AudioRoot: eff.AudioRoot,
		OutputDir: eff.OutputDir,
		BatchSize: eff.BatchSize,
		StartedAt: started,
		Units:     make([]domain.UnitResult, 0, 16),
	}

	// 输入根缺失是启动期致命错误：不做任何部分工作。
	if fi, err := os.Stat(eff.AudioRoot); err != nil || !fi.IsDir() {
		msg := fmt.Sprintf("audio root 不存在或不是目录：%q", eff.AudioRoot)
		if err != nil {
			msg = fmt.Sprintf("audio root 不可用：%v", err)
		}
		rr.Units = append(rr.Units, syntheticFailed(domain.ErrCodeAudioRootMissing, msg))
		return finalize(&rr)
	}

	if err := os.MkdirAll(eff.OutputDir, 0o755); err != nil {
		rr.Units = append(rr.Units, syntheticFailed(domain.ErrCodeIOFailed, fmt.Sprintf("创建输出目录失败：%v", err)))
		return finalize(&rr)
	}

	scanStarted := time.Now()
	files, err := scan.ScanAudio(eff.AudioRoot, excludeDirs(eff))
	if err != nil {
		rr.Units = append(rr.Units, syntheticFailed(domain.ErrCodeIOFailed, fmt.Sprintf("扫描失败：%v", err)))
		return finalize(&rr)
	}
	scanDur := time.Since(scanStarted)

	units := app.GroupByFolder(files)

	if obs != nil {
		obs.OnPhaseDone("scan", map[string]any{
			"files": len(files),
			"units": len(units),
		}, scanDur)
	}

	store := artifact.New(eff.OutputDir)
	for i, unit := range units {
		unitStarted := time.Now()
		res := execUnit(ctx, eff, store, factory, i+1, len(units), unit, files, obs)
		rr.Units = append(rr.Units, res)
		if obs != nil {
			obs.OnUnitDone(i+1, len(units), res, time.Since(unitStarted))
		}
	}

	return finalize(&rr)
}

func finalize(rr *domain.RunReport) domain.RunReport {
	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	return *rr
}

// excludeDirs 把位于 audio root 之下的输出目录也排除掉，避免把工件当输入。
func excludeDirs(eff config.EffectiveConfig) []string {
	return append(append([]string(nil), eff.ExcludeDirs...), eff.OutputDir)
}

func syntheticFailed(code, msg string) domain.UnitResult {
	return domain.UnitResult{
		Unit:      "",
		Status:    domain.StatusFailed,
		ErrorCode: code,
		ErrorMsg:  msg,
		Warnings:  []string{},
	}
}

// execUnit 对一个工作单元走完整状态机：
// 续跑扫描 -> 批次规划 -> (执行批次 -> 写批次工件)* -> 合并。
func execUnit(ctx context.Context, eff config.EffectiveConfig, store artifact.Store, factory detect.Factory, idx, total int, unit domain.WorkUnit, files []domain.AudioFile, obs Observer) domain.UnitResult {
	res := domain.UnitResult{
		Unit:     unit.ID,
		Status:   domain.StatusProcessed,
		Files:    len(unit.FileIdx),
		Warnings: []string{},
	}

	warn := func(path string, err error) {
		msg := fmt.Sprintf("工件不可用（按空集处理）：%s: %v", path, err)
		res.Warnings = append(res.Warnings, msg)
		if obs != nil {
			obs.OnWarning(unit.ID, path, msg)
		}
	}

	processed, err := store.ProcessedSet(unit.ID, warn)
	if err != nil {
		return failUnit(res, fmt.Sprintf("续跑扫描失败：%v", err))
	}
	startSeq, err := store.NextSeq(unit.ID)
	if err != nil {
		return failUnit(res, fmt.Sprintf("枚举批次工件失败：%v", err))
	}

	unitFiles := make([]domain.AudioFile, 0, len(unit.FileIdx))
	for _, idx := range unit.FileIdx {
		unitFiles = append(unitFiles, files[idx])
	}

	plan := planner.Build(unitFiles, processed, startSeq, eff.BatchSize)
	res.Resumed = len(unitFiles) - len(plan.Remaining)

	if obs != nil {
		obs.OnUnitStart(idx, total, unit.ID, len(unitFiles), res.Resumed, len(plan.Remaining), len(plan.Batches))
	}

	// 没有剩余文件：跳过执行，直接合并（覆盖“上次写完批次但没合并就被打断”的情况）。
	if len(plan.Remaining) == 0 {
		rows, merged, err := store.Merge(unit.ID, warn)
		if err != nil {
			return failUnit(res, fmt.Sprintf("合并失败：%v", err))
		}
		res.Records = rows
		if !merged {
			res.Status = domain.StatusSkipped
		}
		return res
	}

	for bi, batch := range plan.Batches {
		batchStarted := time.Now()
		rows := execBatch(ctx, eff, factory, unit.ID, batch, obs)

		seq := plan.StartSeq + bi
		name, err := store.WriteBatch(unit.ID, seq, plan.PadWidth, rows)
		if err != nil {
			// 已写出的批次保留在磁盘上，下次运行续跑。
			return failUnit(res, fmt.Sprintf("写入批次工件失败（seq=%d）：%v", seq, err))
		}
		res.Batches++
		if obs != nil {
			obs.OnBatchDone(unit.ID, seq, len(batch), name, time.Since(batchStarted))
		}
	}

	rows, _, err := store.Merge(unit.ID, warn)
	if err != nil {
		return failUnit(res, fmt.Sprintf("合并失败：%v", err))
	}
	res.Records = rows
	return res
}

func failUnit(res domain.UnitResult, msg string) domain.UnitResult {
	res.Status = domain.StatusFailed
	res.ErrorCode = domain.ErrCodeIOFailed
	res.ErrorMsg = msg
	return res
}

// execBatch 用有界 worker 池执行一个批次，返回该批全部结果行。
//
// - 每个 worker 启动时通过 Factory 构建一次私有分类器（配置不跨 worker 共享）
// - 单文件失败降级为错误哨兵行，不影响同批其他文件
// - 结果按完成顺序收集：行自带文件标识，顺序无意义
func execBatch(ctx context.Context, eff config.EffectiveConfig, factory detect.Factory, unitID string, batch []domain.AudioFile, obs Observer) []domain.Row {
	workers := eff.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(batch) {
		workers = len(batch)
	}

	opts := detect.Options{
		DetectionThreshold:  eff.DetectionThreshold,
		TimeExpansionFactor: eff.TimeExpansionFactor,
	}

	jobs := make(chan domain.AudioFile)
	results := make(chan []domain.Row, len(batch))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			w, werr := factory.NewWorker(opts)
			for f := range jobs {
				if werr != nil {
					results <- []domain.Row{domain.ErrorRow(f.Name, fmt.Errorf("初始化分类器失败：%w", werr))}
					continue
				}
				dets, err := w.Classify(ctx, f.AbsPath)
				results <- domain.RowsFor(f.Name, dets, err)
			}
		}()
	}

	go func() {
		for _, f := range batch {
			jobs <- f
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	out := make([]domain.Row, 0, len(batch))
	done := 0
	for rows := range results {
		done++
		out = append(out, rows...)
		if obs != nil {
			obs.OnFileDone(unitID, done, len(batch))
		}
	}
	return out
}
