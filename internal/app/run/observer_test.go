package run

import (
	"sync"
	"time"

	"github.com/d-singer/batdetect2-CLI/internal/config"
	"github.com/d-singer/batdetect2-CLI/internal/domain"
)

// recordingObserver 记录收到的事件，供测试断言（必须并发安全）。
type recordingObserver struct {
	mu sync.Mutex

	starts   int
	phases   []string
	batches  []int // 按落盘顺序记录的批次序号
	warnings []string
}

func (o *recordingObserver) OnStart(config.EffectiveConfig) {
	o.mu.Lock()
	o.starts++
	o.mu.Unlock()
}

func (o *recordingObserver) OnPhaseDone(name string, _ map[string]any, _ time.Duration) {
	o.mu.Lock()
	o.phases = append(o.phases, name)
	o.mu.Unlock()
}

func (o *recordingObserver) OnUnitStart(_, _ int, _ string, _, _, _, _ int) {}

func (o *recordingObserver) OnFileDone(string, int, int) {}

func (o *recordingObserver) OnBatchDone(_ string, seq, _ int, _ string, _ time.Duration) {
	o.mu.Lock()
	o.batches = append(o.batches, seq)
	o.mu.Unlock()
}

func (o *recordingObserver) OnWarning(_, _ string, msg string) {
	o.mu.Lock()
	o.warnings = append(o.warnings, msg)
	o.mu.Unlock()
}

func (o *recordingObserver) OnUnitDone(_, _ int, _ domain.UnitResult, _ time.Duration) {}

func (o *recordingObserver) OnProgress(int, int, time.Duration) {}

func (o *recordingObserver) batchSeqs() []int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]int(nil), o.batches...)
}
