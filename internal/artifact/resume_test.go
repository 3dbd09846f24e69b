package artifact

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/d-singer/batdetect2-CLI/internal/app/planner"
	"github.com/d-singer/batdetect2-CLI/internal/domain"
)

func sorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func TestProcessedSet_UnionOfFinalAndBatches(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	writeFile(t, dir, "batdetect2_PLOT_A.csv", "filename,class\na.wav,no_calls_detected\n")
	writeFile(t, dir, "temp_batch_0_PLOT_A.csv", "filename,class\nb.wav,no_calls_detected\nb.wav,no_calls_detected\n")
	writeFile(t, dir, "temp_batch_1_PLOT_A.csv", "filename,class\nc.wav,error: boom\n")
	// 别的单元不计入。
	writeFile(t, dir, "temp_batch_0_PLOT_B.csv", "filename,class\nz.wav,no_calls_detected\n")

	got, err := s.ProcessedSet("PLOT_A", nil)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if diff := cmp.Diff([]string{"a.wav", "b.wav", "c.wav"}, sorted(got)); diff != "" {
		t.Fatalf("续跑集合不符合预期 (-want +got):\n%s", diff)
	}
}

func TestProcessedSet_NormalizesToBaseName(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	// 历史工件里 filename 可能是绝对/相对路径：统一按 base name 去重。
	writeFile(t, dir, "batdetect2_PLOT_A.csv", "filename,class\n/data/PLOT_A/a.wav,no_calls_detected\nsub/b.wav,no_calls_detected\n")

	got, err := s.ProcessedSet("PLOT_A", nil)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if diff := cmp.Diff([]string{"a.wav", "b.wav"}, sorted(got)); diff != "" {
		t.Fatalf("base name 规约不符合预期 (-want +got):\n%s", diff)
	}
}

func TestProcessedSet_CorruptArtifactContributesNothing(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	writeFile(t, dir, "temp_batch_0_PLOT_A.csv", "filename,class\na.wav,no_calls_detected\n")
	// 行宽不齐：整个工件按“空集 + 告警”处理。
	writeFile(t, dir, "temp_batch_1_PLOT_A.csv", "filename,class\nb.wav,x,多出来的列\nc.wav\n")
	// 缺 filename 列同理。
	writeFile(t, dir, "batdetect2_PLOT_A.csv", "class\nno_calls_detected\n")

	var warned []string
	got, err := s.ProcessedSet("PLOT_A", func(path string, err error) {
		warned = append(warned, path)
	})
	if err != nil {
		t.Fatalf("坏工件不应中止扫描：%v", err)
	}
	if diff := cmp.Diff([]string{"a.wav"}, sorted(got)); diff != "" {
		t.Fatalf("坏工件必须贡献空集 (-want +got):\n%s", diff)
	}
	if len(warned) != 2 {
		t.Fatalf("期望 2 条告警，实际 %d：%v", len(warned), warned)
	}

	// 幂等：同样的磁盘状态再次扫描结果一致。
	again, err := s.ProcessedSet("PLOT_A", nil)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if diff := cmp.Diff(sorted(got), sorted(again)); diff != "" {
		t.Fatalf("续跑扫描必须幂等 (-want +got):\n%s", diff)
	}
}

// 一个在行边界被打断的批次工件能正常解析，但只覆盖部分文件：
// 续跑集合少算，缺的文件被重做；工件里已有的行在合并时原样保留。
// at-least-once 语义：宁可重做，不丢数据。
func TestPartialBatchArtifact_MissedFilesRedoneWithoutLoss(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	// 批次 0 本应覆盖 a.wav 和 b.wav，写到 b 之前进程被杀。
	writeFile(t, dir, "temp_batch_0_PLOT_A.csv", "filename,class\na.wav,Pipistrellus pipistrellus\n")

	var warned []string
	processed, err := s.ProcessedSet("PLOT_A", func(path string, err error) {
		warned = append(warned, path)
	})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	// 工件本身是合法 CSV：不告警，但集合少算了 b.wav。
	if len(warned) != 0 {
		t.Fatalf("可解析的部分工件不应告警：%v", warned)
	}
	if diff := cmp.Diff([]string{"a.wav"}, sorted(processed)); diff != "" {
		t.Fatalf("续跑集合不符合预期 (-want +got):\n%s", diff)
	}

	// 规划：只有 b.wav 需要重做，序号续接在 1。
	files := []domain.AudioFile{
		{Name: "a.wav", RelPath: "PLOT_A/a.wav"},
		{Name: "b.wav", RelPath: "PLOT_A/b.wav"},
	}
	startSeq, err := s.NextSeq("PLOT_A")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	plan := planner.Build(files, processed, startSeq, 10)
	if len(plan.Remaining) != 1 || plan.Remaining[0].Name != "b.wav" || plan.StartSeq != 1 {
		t.Fatalf("规划不符合预期：remaining=%+v startSeq=%d", plan.Remaining, plan.StartSeq)
	}

	// 重做批次落盘后合并：部分工件的既有行与重做行都在，什么都没丢。
	if _, err := s.WriteBatch("PLOT_A", plan.StartSeq, plan.PadWidth, []domain.Row{
		{Filename: "b.wav", Fields: map[string]string{"class": "no_calls_detected"}},
	}); err != nil {
		t.Fatalf("写重做批次失败：%v", err)
	}
	rows, merged, err := s.Merge("PLOT_A", func(path string, err error) {
		t.Fatalf("不期望告警：%s: %v", path, err)
	})
	if err != nil || !merged || rows != 2 {
		t.Fatalf("合并结果不符合预期：rows=%d merged=%v err=%v", rows, merged, err)
	}
	lines := readLines(t, s.FinalPath("PLOT_A"))
	want := []string{"filename,class", "a.wav,Pipistrellus pipistrellus", "b.wav,no_calls_detected"}
	if diff := cmp.Diff(want, lines); diff != "" {
		t.Fatalf("最终工件内容不符合预期 (-want +got):\n%s", diff)
	}
}
