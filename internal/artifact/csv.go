package artifact

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/d-singer/batdetect2-CLI/internal/domain"
)

// writeCSV 按“列并集”表头写出结果行。
// 行间允许稀疏列，缺失字段写空串；表头顺序由 domain.ColumnsOf 确定。
func writeCSV(w io.Writer, rows []domain.Row) error {
	cols := domain.ColumnsOf(rows)

	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return err
	}

	record := make([]string, len(cols))
	for _, r := range rows {
		for i, c := range cols {
			if c == domain.ColFilename {
				record[i] = r.Filename
				continue
			}
			record[i] = r.Fields[c]
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// readRows 读取一个工件的全部结果行。
//
// 任何结构问题（缺 filename 列、行宽不齐、空文件）都作为错误返回；
// 调用方按“坏工件贡献空集”的约定降级处理，这里不做部分恢复。
func readRows(path string) ([]domain.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("读表头失败：%w", err)
	}

	fileCol := -1
	for i, c := range header {
		if strings.TrimSpace(c) == domain.ColFilename {
			fileCol = i
			break
		}
	}
	if fileCol < 0 {
		return nil, fmt.Errorf("工件缺少 %s 列", domain.ColFilename)
	}

	rows := make([]domain.Row, 0, 64)
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		fields := make(map[string]string, len(header))
		for i, c := range header {
			if i == fileCol || i >= len(record) {
				continue
			}
			// 空串即“该行没有这一列”，解码时丢弃以保持稀疏对称。
			if record[i] == "" {
				continue
			}
			fields[strings.TrimSpace(c)] = record[i]
		}
		rows = append(rows, domain.Row{
			Filename: record[fileCol],
			Fields:   fields,
		})
	}
	return rows, nil
}

// readFilenames 读取一个工件中出现过的文件标识集合（统一规约为 base name）。
func readFilenames(path string) (map[string]struct{}, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		name := strings.TrimSpace(r.Filename)
		if name == "" {
			continue
		}
		// 历史工件可能存的是相对/绝对路径：统一取 base name 去重。
		set[filepath.Base(name)] = struct{}{}
	}
	return set, nil
}
