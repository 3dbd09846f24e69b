package scan

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/d-singer/batdetect2-CLI/internal/domain"
)

// ScanAudio 扫描 root 下的 WAV 录音文件，并应用目录排除规则。
//
// 规则（硬约束）：
// - excludeDirs 均视为相对 root 的路径（若是绝对路径，则按绝对路径处理）；
//   调用方应把位于 root 之下的输出目录也放进来，避免把工件当成输入
// - 只认 .wav（扩展名大小写不敏感）
//
// 注意：扫描阶段只做 stat（DirEntry.Info），不读文件内容。
func ScanAudio(root string, excludeDirs []string) ([]domain.AudioFile, error) {
	root = filepath.Clean(root)
	excluded := buildExcluded(root, excludeDirs)

	files := make([]domain.AudioFile, 0, 256)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		// 统一的排除判断：目录用 SkipDir，文件则直接跳过。
		if isExcluded(path, excluded) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}

		name := d.Name()
		if strings.ToLower(filepath.Ext(name)) != ".wav" {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		files = append(files, domain.AudioFile{
			AbsPath: path,
			RelPath: rel,
			Name:    name,
			Dir:     filepath.Dir(path),
			Size:    info.Size(),
			ModUnix: info.ModTime().Unix(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 强制稳定输出，避免不同平台/文件系统行为差异带来的不确定性。
	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

func buildExcluded(root string, excludeDirs []string) []string {
	excluded := make([]string, 0, len(excludeDirs))
	for _, x := range excludeDirs {
		x = strings.TrimSpace(x)
		if x == "" {
			continue
		}
		if filepath.IsAbs(x) {
			excluded = append(excluded, filepath.Clean(x))
			continue
		}
		// x 是相对路径：相对 root。
		excluded = append(excluded, filepath.Clean(filepath.Join(root, x)))
	}

	// 排除列表排序后，isExcluded 的行为更可预测（且便于测试）。
	sort.Strings(excluded)
	return excluded
}

func isExcluded(path string, excluded []string) bool {
	path = filepath.Clean(path)
	for _, base := range excluded {
		if isUnder(path, base) {
			return true
		}
	}
	return false
}

func isUnder(path, base string) bool {
	if path == base {
		return true
	}
	sep := string(filepath.Separator)
	return strings.HasPrefix(path, base+sep)
}
