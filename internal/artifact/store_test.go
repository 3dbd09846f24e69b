package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/d-singer/batdetect2-CLI/internal/domain"
)

func TestWriteBatch_RefusesOverwrite(t *testing.T) {
	s := New(t.TempDir())
	rows := []domain.Row{domain.NoCallsRow("a.wav")}

	name, err := s.WriteBatch("PLOT_A", 0, 1, rows)
	if err != nil {
		t.Fatalf("首次写入失败：%v", err)
	}
	if name != "temp_batch_0_PLOT_A.csv" {
		t.Fatalf("工件名不符合预期：%q", name)
	}

	if _, err := s.WriteBatch("PLOT_A", 0, 1, rows); !os.IsExist(err) {
		t.Fatalf("期望 O_EXCL 拒绝覆盖，实际 err=%v", err)
	}
}

func TestBatchName_ZeroPadded(t *testing.T) {
	s := New(t.TempDir())
	if got := s.BatchName("HE_WZ_23", 3, 2); got != "temp_batch_03_HE_WZ_23.csv" {
		t.Fatalf("零填充命名不符合预期：%q", got)
	}
}

func TestListBatches_ParsesAndSkipsForeignNames(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	// unit 含下划线；pad 宽度不一致的历史工件也要能解析。
	writeFile(t, dir, "temp_batch_10_HE_WZ_23.csv", "filename\n")
	writeFile(t, dir, "temp_batch_2_HE_WZ_23.csv", "filename\n")
	// 不属于本层命名空间的文件：跳过。
	writeFile(t, dir, "temp_batch_xx_HE_WZ_23.csv", "")
	writeFile(t, dir, "temp_batch_01_OTHER.csv", "filename\n")
	writeFile(t, dir, "batdetect2_HE_WZ_23.csv", "filename\n")
	// 中段含非数字（其实是别的 unit 的撞后缀名）：跳过。
	writeFile(t, dir, "temp_batch_01_B_HE_WZ_23.csv", "filename\n")

	refs, err := s.ListBatches("HE_WZ_23")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("期望 2 个批次工件，实际 %d：%+v", len(refs), refs)
	}
	if refs[0].Seq != 2 || refs[1].Seq != 10 {
		t.Fatalf("必须按序号升序：%+v", refs)
	}
}

func TestNextSeq_MonotonicContinuation(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	next, err := s.NextSeq("PLOT_A")
	if err != nil || next != 0 {
		t.Fatalf("无工件时期望 0，实际 %d err=%v", next, err)
	}

	writeFile(t, dir, "temp_batch_0_PLOT_A.csv", "filename\n")
	writeFile(t, dir, "temp_batch_1_PLOT_A.csv", "filename\n")

	next, err = s.NextSeq("PLOT_A")
	if err != nil || next != 2 {
		t.Fatalf("期望 max+1=2，实际 %d err=%v", next, err)
	}
}

func TestListBatches_MissingDirIsEmpty(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "不存在"))
	refs, err := s.ListBatches("PLOT_A")
	if err != nil || len(refs) != 0 {
		t.Fatalf("目录不存在应视为无工件：refs=%v err=%v", refs, err)
	}
}

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("写文件失败：%v", err)
	}
}
