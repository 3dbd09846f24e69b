// Package artifact 把“文件系统即数据库”的两类工件隔离在一个小接口面后面：
// 待合并批次工件（temp_batch_<seq>_<unit>.csv）与最终工件（batdetect2_<unit>.csv）。
// 续跑扫描、批次写入与合并都只经由 Store，上层规划逻辑不感知磁盘布局。
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/d-singer/batdetect2-CLI/internal/domain"
)

const (
	batchPrefix = "temp_batch_"
	finalPrefix = "batdetect2_"
	csvExt      = ".csv"
)

// Store 提供输出目录下工件的读写。
// 工件名唯一由 (unit, seq) 决定，单元串行执行保证同名不会并发写。
type Store struct {
	Dir string
}

func New(dir string) Store {
	return Store{Dir: filepath.Clean(strings.TrimSpace(dir))}
}

// FinalPath 返回单元最终工件的绝对路径。
func (s Store) FinalPath(unit string) string {
	return filepath.Join(s.Dir, finalPrefix+unit+csvExt)
}

// BatchName 返回批次工件文件名（序号零填充到 pad 位）。
func (s Store) BatchName(unit string, seq, pad int) string {
	return fmt.Sprintf("%s%0*d_%s%s", batchPrefix, pad, seq, unit, csvExt)
}

// BatchRef 指向一个已存在的批次工件。
type BatchRef struct {
	Seq  int
	Name string
	Path string
}

// ListBatches 枚举单元的全部批次工件，按序号升序。
// 输出目录不存在视为“无工件”；无法解析序号的文件名被静默跳过
// （parse 不了的名字不属于本层的命名空间）。
func (s Store) ListBatches(unit string) ([]BatchRef, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	refs := make([]BatchRef, 0, 4)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		seq, ok := parseBatchSeq(name, unit)
		if !ok {
			continue
		}
		refs = append(refs, BatchRef{
			Seq:  seq,
			Name: name,
			Path: filepath.Join(s.Dir, name),
		})
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].Seq < refs[j].Seq })
	return refs, nil
}

// NextSeq 返回单元的下一个批次序号：max(既有序号)+1，无既有工件时为 0。
// 每次运行重新推导，保证跨进程重启单调递增、永不撞名。
func (s Store) NextSeq(unit string) (int, error) {
	refs, err := s.ListBatches(unit)
	if err != nil {
		return 0, err
	}
	next := 0
	for _, r := range refs {
		if r.Seq+1 > next {
			next = r.Seq + 1
		}
	}
	return next, nil
}

// WriteBatch 把一批结果行写为新的批次工件，返回工件文件名。
//
// - 同名工件已存在 => 失败（序号由规划层保证不撞；这里兜底 O_EXCL）
// - 写入刻意不走原子替换：写一半留下的坏工件由续跑扫描容忍并重做
func (s Store) WriteBatch(unit string, seq, pad int, rows []domain.Row) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", err
	}

	name := s.BatchName(unit, seq, pad)
	f, err := os.OpenFile(filepath.Join(s.Dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", err
	}

	if err := writeCSV(f, rows); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return name, nil
}

// parseBatchSeq 从 "temp_batch_<seq>_<unit>.csv" 中解析序号。
// unit 本身可以含下划线，所以按前后缀剥离而不是按 '_' 切分；
// 中段必须是纯数字（宽度不限，兼容不同 pad 宽度的历史工件）。
func parseBatchSeq(name, unit string) (int, bool) {
	suffix := "_" + unit + csvExt
	if !strings.HasPrefix(name, batchPrefix) || !strings.HasSuffix(name, suffix) {
		return 0, false
	}
	mid := name[len(batchPrefix) : len(name)-len(suffix)]
	if mid == "" {
		return 0, false
	}
	seq := 0
	for _, c := range mid {
		if c < '0' || c > '9' {
			return 0, false
		}
		seq = seq*10 + int(c-'0')
	}
	return seq, true
}
