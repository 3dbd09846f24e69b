package artifact

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/d-singer/batdetect2-CLI/internal/domain"
	"github.com/d-singer/batdetect2-CLI/internal/infra/fsx"
)

// 通过可替换的函数指针，让测试能稳定模拟批次删除失败。
var removeFunc = os.Remove

// Merge 把单元的全部待合并批次工件按序号拼接进最终工件，然后删除已消费的批次。
//
// 契约：
// - 无待合并批次 => no-op（merged=false）
// - 最终工件已存在 => 其既有行排在最前（跨运行可加合并；两次分批合并
//   与一次整体合并得到相同的行集合）
// - 坏批次工件贡献空集并 warn（其文件已在本次批中重做过，丢它不丢数据）
// - 最终工件原子写入；写入成功后才删除批次，单个删除失败仅 warn
//   （遗留批次不会触发重做，但下次合并会把它再拼接一遍：允许重复行，不丢行）
//
// 返回合并后最终工件的总行数。
func (s Store) Merge(unit string, warn func(path string, err error)) (rows int, merged bool, err error) {
	refs, err := s.ListBatches(unit)
	if err != nil {
		return 0, false, err
	}
	if len(refs) == 0 {
		return 0, false, nil
	}

	all := make([]domain.Row, 0, 256)

	final := s.FinalPath(unit)
	if _, serr := os.Stat(final); serr == nil {
		prior, rerr := readRows(final)
		if rerr != nil {
			// 坏最终工件：它的内容无法保留，但合并继续（新行不能丢）。
			warnIf(warn, final, rerr)
		} else {
			all = append(all, prior...)
		}
	} else if !os.IsNotExist(serr) {
		warnIf(warn, final, serr)
	}

	for _, ref := range refs {
		batchRows, rerr := readRows(ref.Path)
		if rerr != nil {
			warnIf(warn, ref.Path, rerr)
			continue
		}
		all = append(all, batchRows...)
	}

	var buf bytes.Buffer
	if err := writeCSV(&buf, all); err != nil {
		return 0, false, err
	}
	if err := fsx.WriteFileAtomicReplace(s.Dir, filepath.Base(final), buf.Bytes()); err != nil {
		return 0, false, err
	}

	// 最终工件已落盘：批次工件从这一刻起是多余的。
	for _, ref := range refs {
		if derr := removeFunc(ref.Path); derr != nil {
			warnIf(warn, ref.Path, derr)
		}
	}
	return len(all), true, nil
}
