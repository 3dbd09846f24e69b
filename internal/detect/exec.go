package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"

	"github.com/d-singer/batdetect2-CLI/internal/domain"
)

// 测试通过替换它来伪造外部进程。
var commandContext = exec.CommandContext

// CLI 通过外部 batdetect2 可执行文件完成单文件推理。
//
// 调用约定：`<binary> detect <file> --detection-threshold T
// --time-expansion-factor F --json`，stdout 输出一个 JSON 数组，
// 每个元素是一条检测的扁平对象（字段由模型定义）。
type CLI struct {
	binary string
}

// CLIOption 配置 CLI。
type CLIOption func(*CLI)

// WithBinary 覆盖默认的可执行文件名。
func WithBinary(binary string) CLIOption {
	return func(c *CLI) {
		if strings.TrimSpace(binary) != "" {
			c.binary = binary
		}
	}
}

// NewCLI 构建默认配置的 CLI 工厂。
func NewCLI(opts ...CLIOption) *CLI {
	c := &CLI{binary: "batdetect2"}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewWorker 为一个池内协程构建私有分类器。
// 参数模板在这里拼一次（对应“配置每 worker 只初始化一次”的约定）。
func (c *CLI) NewWorker(opts Options) (Worker, error) {
	if strings.TrimSpace(c.binary) == "" {
		return nil, errors.New("分类器可执行文件名为空")
	}
	if opts.DetectionThreshold <= 0 || opts.DetectionThreshold > 1 {
		return nil, fmt.Errorf("detection_threshold 必须在 (0, 1] 内，实际是 %v", opts.DetectionThreshold)
	}
	if opts.TimeExpansionFactor < 1 {
		return nil, fmt.Errorf("time_expansion_factor 必须 >= 1，实际是 %d", opts.TimeExpansionFactor)
	}

	return &cliWorker{
		binary: c.binary,
		args: []string{
			"detect",
			"--detection-threshold", strconv.FormatFloat(opts.DetectionThreshold, 'g', -1, 64),
			"--time-expansion-factor", strconv.Itoa(opts.TimeExpansionFactor),
			"--json",
		},
	}, nil
}

type cliWorker struct {
	binary string
	args   []string
}

func (w *cliWorker) Classify(ctx context.Context, absPath string) ([]domain.Detection, error) {
	args := make([]string, 0, len(w.args)+1)
	args = append(args, w.args[0], absPath)
	args = append(args, w.args[1:]...)

	var stdout, stderr bytes.Buffer
	cmd := commandContext(ctx, w.binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			err = fmt.Errorf("%w：%s", err, firstLine(msg))
		}
		return nil, &Error{File: absPath, Err: err}
	}

	dets, err := parseDetections(stdout.Bytes())
	if err != nil {
		return nil, &Error{File: absPath, Err: err}
	}
	return dets, nil
}

// parseDetections 把 stdout 的 JSON 数组转为字符串化的检测行。
// 字段值允许任意标量；嵌套结构不属于约定，按 JSON 原文保留。
func parseDetections(out []byte) ([]domain.Detection, error) {
	out = bytes.TrimSpace(out)
	if len(out) == 0 {
		return nil, nil
	}

	var raw []map[string]any
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, fmt.Errorf("解析检测输出失败：%w", err)
	}

	dets := make([]domain.Detection, 0, len(raw))
	for _, obj := range raw {
		d := make(domain.Detection, len(obj))
		// 遍历顺序不影响结果，这里排序只为错误信息可复现。
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			d[k] = stringifyValue(obj[k])
		}
		dets = append(dets, d)
	}
	return dets, nil
}

func stringifyValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
