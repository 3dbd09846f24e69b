package domain

import (
	"sort"
	"time"
)

const (
	StatusProcessed = "processed"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
)

const (
	ErrCodeAudioRootMissing  = "audio_root_missing"
	ErrCodeIOFailed          = "io_failed"
	ErrCodeConfigNotFound    = "config_not_found"
	ErrCodeConfigInvalid     = "config_invalid"
	ErrCodeConfigMissingRoot = "config_missing_root"
)

// RunReport 是对外稳定输出（report.json / stdout JSON）的结构。
type RunReport struct {
	AudioRoot string `json:"audio_root"`
	OutputDir string `json:"output_dir"`
	BatchSize int    `json:"batch_size"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Units   []UnitResult  `json:"units"`
}

type ReportSummary struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// UnitResult 是一个工作单元的最终结果。
//
// - Resumed：因已有工件而跳过的文件数（续跑命中）
// - Batches：本次新写出的批次工件数
// - Records：合并后最终工件的总行数（未触发合并时为 0）
type UnitResult struct {
	Unit   string `json:"unit"`
	Status string `json:"status"`

	Files   int `json:"files"`
	Resumed int `json:"resumed"`
	Batches int `json:"batches"`
	Records int `json:"records"`

	ErrorCode string   `json:"error_code"`
	ErrorMsg  string   `json:"error_msg"`
	Warnings  []string `json:"warnings"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) units 稳定排序：按 unit 字典序；unit=="" 的合成条目排在最后
// 3) summary 由 units 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Units, func(i, j int) bool {
		a := r.Units[i].Unit
		b := r.Units[j].Unit
		if a == "" && b == "" {
			return false
		}
		if a == "" {
			return false
		}
		if b == "" {
			return true
		}
		return a < b
	})

	var s ReportSummary
	for _, u := range r.Units {
		switch u.Status {
		case StatusProcessed:
			s.Processed++
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		}
	}
	r.Summary = s
}
