package main

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/d-singer/batdetect2-CLI/internal/domain"
)

func TestCLI_NoTTY_StdoutOnlyRunReportJSON(t *testing.T) {
	// 这个测试锁定对外契约：stdout 非 TTY 时只能输出一个 RunReport JSON（进度/配置必须走 stderr 或直接禁用）。
	root := t.TempDir()
	out := filepath.Join(t.TempDir(), "02_BATDETECT2")

	// 空的 audio root（没有 WAV）：流程完整走完且不需要真实的 batdetect2 可执行文件。
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("读取 cwd 失败：%v", err)
	}
	repoRoot := filepath.Clean(filepath.Join(wd, "..", ".."))

	cmd := exec.Command("go", "run", "./cmd/batscan", "run", root, "--output-dir", out)
	cmd.Dir = repoRoot

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		t.Fatalf("命令执行失败：%v\nstderr=%s\nstdout=%s", err, stderr.String(), stdout.String())
	}

	// stdout 必须是单个 JSON。
	var rr domain.RunReport
	if err := json.Unmarshal(stdout.Bytes(), &rr); err != nil {
		t.Fatalf("stdout 不是合法的 RunReport JSON：%v\nstdout=%q", err, stdout.String())
	}
	if strings.Contains(stdout.String(), "配置（生效）") || strings.Contains(stdout.String(), "进度:") {
		t.Fatalf("stdout 不应包含进度/配置输出：%q", stdout.String())
	}

	// stderr 至少应包含最终摘要行。
	if !strings.Contains(stderr.String(), "完成：processed=") {
		t.Fatalf("stderr 缺少完成摘要：%q", stderr.String())
	}

	// report.json 必须落在输出目录。
	if _, err := os.Stat(filepath.Join(out, "report.json")); err != nil {
		t.Fatalf("report.json 缺失：%v", err)
	}
	// 运行锁文件应已创建（解锁后保留是预期行为）。
	if _, err := os.Stat(filepath.Join(out, ".batscan.lock")); err != nil {
		t.Fatalf("锁文件缺失：%v", err)
	}
}
