package app

import (
	"path/filepath"
	"sort"

	"github.com/d-singer/batdetect2-CLI/internal/domain"
)

// GroupByFolder 把录音文件按父目录聚合为工作单元（WorkUnit 只存 file index）。
//
// - 单元 ID 取父目录的 base name（与既有工件命名兼容）
// - units 稳定排序：按 ID 字典序
// - 单元内 FileIdx 稳定排序：按 Name 字典序（批次规划的规范序），Name 相同按 RelPath
//
// 已知约束：不同子树下同名目录会聚合为同一单元（保持既有语义，不在此“修正”）。
func GroupByFolder(files []domain.AudioFile) []domain.WorkUnit {
	index := make(map[string]int, 16)
	units := make([]domain.WorkUnit, 0, 16)

	for i := range files {
		id := filepath.Base(files[i].Dir)
		if idx, ok := index[id]; ok {
			units[idx].FileIdx = append(units[idx].FileIdx, i)
			continue
		}
		index[id] = len(units)
		units = append(units, domain.WorkUnit{
			ID:      id,
			FileIdx: []int{i},
		})
	}

	sort.Slice(units, func(i, j int) bool { return units[i].ID < units[j].ID })
	for i := range units {
		idx := units[i].FileIdx
		sort.Slice(idx, func(a, b int) bool {
			fa, fb := files[idx[a]], files[idx[b]]
			if fa.Name != fb.Name {
				return fa.Name < fb.Name
			}
			return fa.RelPath < fb.RelPath
		})
	}
	return units
}
