package app

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/d-singer/batdetect2-CLI/internal/domain"
)

func audio(rel string) domain.AudioFile {
	abs := filepath.Join("/data", rel)
	return domain.AudioFile{
		AbsPath: abs,
		RelPath: rel,
		Name:    filepath.Base(rel),
		Dir:     filepath.Dir(abs),
	}
}

func TestGroupByFolder_SortedUnitsAndFiles(t *testing.T) {
	files := []domain.AudioFile{
		audio(filepath.Join("PLOT_B", "b2.wav")),
		audio(filepath.Join("PLOT_A", "a1.wav")),
		audio(filepath.Join("PLOT_B", "b1.wav")),
	}

	units := GroupByFolder(files)
	if len(units) != 2 {
		t.Fatalf("期望 2 个单元，实际 %d", len(units))
	}
	if units[0].ID != "PLOT_A" || units[1].ID != "PLOT_B" {
		t.Fatalf("单元排序不符合契约：%v %v", units[0].ID, units[1].ID)
	}
	// PLOT_B 内按文件名排序：b1 在 b2 前（输入顺序相反）。
	if diff := cmp.Diff([]int{2, 0}, units[1].FileIdx); diff != "" {
		t.Fatalf("单元内文件序不符合契约 (-want +got):\n%s", diff)
	}
}

func TestGroupByFolder_SameFolderNameCollapses(t *testing.T) {
	// 不同子树下的同名目录聚合为同一单元（既有语义，刻意保留）。
	files := []domain.AudioFile{
		audio(filepath.Join("site1", "PLOT_A", "a.wav")),
		audio(filepath.Join("site2", "PLOT_A", "b.wav")),
	}

	units := GroupByFolder(files)
	if len(units) != 1 {
		t.Fatalf("期望同名目录聚合为 1 个单元，实际 %d", len(units))
	}
	if units[0].ID != "PLOT_A" || len(units[0].FileIdx) != 2 {
		t.Fatalf("聚合结果不符合预期：%+v", units[0])
	}
}
