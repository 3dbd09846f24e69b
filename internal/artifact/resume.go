package artifact

import "os"

// ProcessedSet 是续跑扫描：返回单元在最终工件与全部待合并批次工件中
// 已出现过的文件标识并集。
//
// 契约：
// - 某个工件坏了/读不了 => 该工件贡献空集并走 warn 回调，扫描继续
// - 同一磁盘状态下重复扫描结果一致（best-effort 且幂等）
// - 只有输出目录本身不可枚举才返回错误
//
// 已知极限：一个在行边界被打断的批次工件能正常解析但少算续跑集合，
// 缺的文件会被重做；at-least-once 语义下可接受，不在此纠正。
func (s Store) ProcessedSet(unit string, warn func(path string, err error)) (map[string]struct{}, error) {
	processed := make(map[string]struct{}, 64)

	final := s.FinalPath(unit)
	if _, err := os.Stat(final); err == nil {
		names, rerr := readFilenames(final)
		if rerr != nil {
			warnIf(warn, final, rerr)
		} else {
			for n := range names {
				processed[n] = struct{}{}
			}
		}
	} else if !os.IsNotExist(err) {
		warnIf(warn, final, err)
	}

	refs, err := s.ListBatches(unit)
	if err != nil {
		return nil, err
	}
	for _, ref := range refs {
		names, rerr := readFilenames(ref.Path)
		if rerr != nil {
			warnIf(warn, ref.Path, rerr)
			continue
		}
		for n := range names {
			processed[n] = struct{}{}
		}
	}
	return processed, nil
}

func warnIf(warn func(path string, err error), path string, err error) {
	if warn != nil {
		warn(path, err)
	}
}
