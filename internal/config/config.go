package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	// ErrCodeNotFound 表示无参运行但 cwd 下没有 batscan.json。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeMissingRoot 表示无参运行但配置文件缺少 audio_root 字段。
	ErrCodeMissingRoot = "config_missing_root"
)

const (
	// DefaultOutputDir 是结果工件目录的默认值（相对 cwd）。
	DefaultOutputDir = "02_BATDETECT2"
	// DefaultBatchSize 是每批处理文件数的默认值。
	DefaultBatchSize = 100
	// DefaultDetectionThreshold 是分类器检测阈值的默认值。
	DefaultDetectionThreshold = 0.1
	// DefaultTimeExpansionFactor 是录音时间扩展系数的默认值。
	DefaultTimeExpansionFactor = 1
	// DefaultCommand 是外部分类器可执行文件的默认名。
	DefaultCommand = "batdetect2"
)

// CLIArgs 只包含 CLI 暴露的三项入口（audio-root/output-dir/batch-size），
// 并保留“是否显式指定”的信息，保证覆盖优先级可实现。
type CLIArgs struct {
	AudioRoot string

	OutputDir    string
	OutputDirSet bool

	BatchSize    int
	BatchSizeSet bool
}

// FileConfig 对应 batscan.json 的解析结构。
// 指针字段用于区分“未配置”与“配置为零值”。
type FileConfig struct {
	AudioRoot           string   `json:"audio_root"`
	OutputDir           string   `json:"output_dir"`
	BatchSize           *int     `json:"batch_size"`
	Workers             int      `json:"workers"`
	DetectionThreshold  *float64 `json:"detection_threshold"`
	TimeExpansionFactor *int     `json:"time_expansion_factor"`
	Command             string   `json:"command"`
	ExcludeDirs         []string `json:"exclude_dirs"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置
// （实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	AudioRoot string
	OutputDir string

	BatchSize int
	// Workers 是单批内的并发度（默认 可用核数-1，至少 1）。
	Workers int

	DetectionThreshold  float64
	TimeExpansionFactor int
	// Command 是外部分类器可执行文件（每个 worker 以同一配置各自持有实例）。
	Command string

	ExcludeDirs []string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeMissingRoot:
		return fmt.Sprintf("%s：配置文件 %q 缺少必填字段 audio_root", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 按约定发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 audio-root：尝试读取 <audio-root>/batscan.json（可选）
// 2) CLI 未提供：必须读取 <cwd>/batscan.json（必选），且其中必须包含 audio_root
//
// 覆盖优先级（固定）：
// - audio_root：CLI > config
// - output_dir：CLI > config > 默认 02_BATDETECT2
// - batch_size：CLI > config > 默认 100
// - 其他字段：仅由 config 控制（CLI 不暴露）
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	if strings.TrimSpace(cli.AudioRoot) != "" {
		// CLI 给了 audio-root：配置文件可选，位置固定在 <audio-root>/batscan.json。
		rootAbs := absCleanFrom(cwdAbs, cli.AudioRoot)
		cfgPath := filepath.Join(rootAbs, "batscan.json")

		fc, _, err := readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		return merge(cwdAbs, rootAbs, cli, fc, cfgPath)
	}

	// CLI 没给 audio-root：必须读取 <cwd>/batscan.json，且其中必须包含 audio_root。
	cfgPath := filepath.Join(cwdAbs, "batscan.json")
	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists {
		return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
	}
	if strings.TrimSpace(fc.AudioRoot) == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingRoot, Path: cfgPath}
	}

	rootAbs := absCleanFrom(cwdAbs, fc.AudioRoot)
	return merge(cwdAbs, rootAbs, cli, fc, cfgPath)
}

func merge(cwdAbs, rootAbs string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	// output_dir：CLI > config > 默认；相对路径以 cwd 为基准。
	outputDir := DefaultOutputDir
	if cli.OutputDirSet {
		outputDir = cli.OutputDir
	} else if strings.TrimSpace(fc.OutputDir) != "" {
		outputDir = fc.OutputDir
	}
	if strings.TrimSpace(outputDir) == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("output_dir 不能为空")}
	}
	outputDir = absCleanFrom(cwdAbs, outputDir)

	// batch_size：CLI > config > 默认；必须 >= 1。
	batchSize := DefaultBatchSize
	if cli.BatchSizeSet {
		batchSize = cli.BatchSize
	} else if fc.BatchSize != nil {
		batchSize = *fc.BatchSize
	}
	if batchSize < 1 {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("batch_size 必须 >= 1，实际是 %d", batchSize)}
	}

	// workers：默认 可用核数-1（至少 1）；范围建议 [1, 64]，超出截断。
	workers := fc.Workers
	if workers == 0 {
		workers = runtime.NumCPU() - 1
	}
	if workers < 1 {
		workers = 1
	}
	if workers > 64 {
		workers = 64
	}

	threshold := DefaultDetectionThreshold
	if fc.DetectionThreshold != nil {
		threshold = *fc.DetectionThreshold
	}
	if threshold <= 0 || threshold > 1 {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("detection_threshold 必须在 (0, 1] 内，实际是 %v", threshold)}
	}

	timeExpansion := DefaultTimeExpansionFactor
	if fc.TimeExpansionFactor != nil {
		timeExpansion = *fc.TimeExpansionFactor
	}
	if timeExpansion < 1 {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("time_expansion_factor 必须 >= 1，实际是 %d", timeExpansion)}
	}

	command := strings.TrimSpace(fc.Command)
	if command == "" {
		command = DefaultCommand
	}

	return EffectiveConfig{
		AudioRoot:           rootAbs,
		OutputDir:           outputDir,
		BatchSize:           batchSize,
		Workers:             workers,
		DetectionThreshold:  threshold,
		TimeExpansionFactor: timeExpansion,
		Command:             command,
		ExcludeDirs:         append([]string(nil), fc.ExcludeDirs...),
	}, nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 JSON 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := json.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
