package planner

import (
	"sort"
	"strconv"

	"github.com/d-singer/batdetect2-CLI/internal/domain"
)

// Plan 是一个工作单元的确定性批次规划（不做任何写入）。
type Plan struct {
	// Remaining 是尚未处理的文件，按规范序（文件名字典序）排列。
	Remaining []domain.AudioFile
	// StartSeq 是本次运行的首个批次序号（续接既有工件，见 Build）。
	StartSeq int
	// PadWidth 是工件命名的零填充宽度，覆盖本次运行结束后的最大序号。
	PadWidth int
	// Batches 是 Remaining 的连续等宽切分（末批允许更小）。
	// 第 i 批对应序号 StartSeq+i。
	Batches [][]domain.AudioFile
}

// Build 基于单元的全量文件与续跑集合计算批次规划。
//
// 契约：
// - 规范序是文件名字典序（同名按 RelPath），跨运行确定，保证批次内容可复现
// - processed 中的文件标识（base name）被剔除
// - startSeq 由调用方按“已有批次工件最大序号+1，否则 0”给出
// - ceil(len(Remaining)/batchSize) 个批次，顺序拼接还原 Remaining
func Build(files []domain.AudioFile, processed map[string]struct{}, startSeq, batchSize int) Plan {
	if batchSize < 1 {
		batchSize = 1
	}

	ordered := append([]domain.AudioFile(nil), files...)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Name != ordered[j].Name {
			return ordered[i].Name < ordered[j].Name
		}
		return ordered[i].RelPath < ordered[j].RelPath
	})

	remaining := make([]domain.AudioFile, 0, len(ordered))
	for _, f := range ordered {
		if _, ok := processed[f.Name]; ok {
			continue
		}
		remaining = append(remaining, f)
	}

	numBatches := (len(remaining) + batchSize - 1) / batchSize
	batches := make([][]domain.AudioFile, 0, numBatches)
	for start := 0; start < len(remaining); start += batchSize {
		end := start + batchSize
		if end > len(remaining) {
			end = len(remaining)
		}
		batches = append(batches, remaining[start:end])
	}

	return Plan{
		Remaining: remaining,
		StartSeq:  startSeq,
		PadWidth:  len(strconv.Itoa(startSeq + numBatches)),
		Batches:   batches,
	}
}
