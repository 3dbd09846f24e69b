// Package detect 把推理调用隔离为不透明协作方：对核心流程而言，
// 分类就是 classify(file) -> 检测行 | 失败，特征提取与模型细节都在这道边界之外。
package detect

import (
	"context"
	"fmt"

	"github.com/d-singer/batdetect2-CLI/internal/domain"
)

// Options 是推理配置。每个池内 worker 在启动时以它构建一次私有实例，
// 之后在 worker 生命周期内不可变、不跨 worker 共享。
type Options struct {
	DetectionThreshold  float64
	TimeExpansionFactor int
}

// Worker 是单个池内工作协程持有的分类器实例。
//
// 约束：
// - Classify 返回该文件的全部检测；空切片表示“成功但无叫声”
// - 返回错误由调用方降级为该文件的错误哨兵行，不中止批次
// - 实现无须并发安全：一个 Worker 只被一个协程使用
type Worker interface {
	Classify(ctx context.Context, absPath string) ([]domain.Detection, error)
}

// Factory 在 worker 启动时构建其私有 Worker。
// 昂贵的初始化（加载配置、预构建参数）应放在 NewWorker 里做一次，
// 而不是每个文件做一次。
type Factory interface {
	NewWorker(opts Options) (Worker, error)
}

// Error 是分类阶段的可追溯错误（进入哨兵行的 error: <msg>）。
type Error struct {
	File string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("classify %s: %v", e.File, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
