package domain

import (
	"fmt"
	"sort"
	"strings"
)

// 结果表的保留列名。
const (
	// ColFilename 是文件标识列，所有行必有。
	ColFilename = "filename"
	// ColClass 既承载模型的分类字段，也承载哨兵值。
	ColClass = "class"
)

// ClassNoCalls 表示“处理成功但没有检测到叫声”的哨兵值。
const ClassNoCalls = "no_calls_detected"

// errClassPrefix 是错误哨兵值的前缀（class = "error: <msg>"）。
const errClassPrefix = "error: "

// Detection 是分类器返回的一条检测（字段由模型定义，这里不做 schema 约束）。
// 值统一字符串化，便于与 CSV 工件互转。
type Detection map[string]string

// Row 是结果表中的一行：
// - 检测行：Fields 为模型字段（允许稀疏，行间列并集容忍缺列）
// - 哨兵行：Fields 只含 class（no_calls_detected 或 error: <msg>）
//
// 不变量：Filename 不为空；每个被处理的文件至少产出一行。
type Row struct {
	Filename string
	Fields   map[string]string
}

// NoCallsRow 构造“无检测”哨兵行。
func NoCallsRow(filename string) Row {
	return Row{
		Filename: filename,
		Fields:   map[string]string{ColClass: ClassNoCalls},
	}
}

// ErrorRow 构造“处理失败”哨兵行。
func ErrorRow(filename string, err error) Row {
	msg := "unknown"
	if err != nil {
		msg = strings.TrimSpace(err.Error())
	}
	return Row{
		Filename: filename,
		Fields:   map[string]string{ColClass: errClassPrefix + msg},
	}
}

// RowsFor 把一次分类结果规范化为“至少一行”的结果行：
// - err != nil：一条错误哨兵行（单文件失败不向上传播）
// - 无检测：一条 no_calls_detected 哨兵行
// - 有检测：逐条检测行，filename 由本函数统一补齐
func RowsFor(filename string, dets []Detection, err error) []Row {
	if err != nil {
		return []Row{ErrorRow(filename, err)}
	}
	if len(dets) == 0 {
		return []Row{NoCallsRow(filename)}
	}

	rows := make([]Row, 0, len(dets))
	for _, d := range dets {
		fields := make(map[string]string, len(d))
		for k, v := range d {
			k = strings.TrimSpace(k)
			if k == "" || k == ColFilename {
				// filename 由行结构承载，不允许模型字段覆盖。
				continue
			}
			fields[k] = v
		}
		rows = append(rows, Row{Filename: filename, Fields: fields})
	}
	if len(rows) == 0 {
		// 全部字段被丢弃时仍必须至少产出一行。
		return []Row{NoCallsRow(filename)}
	}
	return rows
}

// ColumnsOf 计算行集合的列并集：filename 首列，其余按字典序。
// 顺序确定性是工件可复现的前提（同样的行集合 => 同样的表头）。
func ColumnsOf(rows []Row) []string {
	seen := make(map[string]struct{}, 8)
	for _, r := range rows {
		for k := range r.Fields {
			if k == ColFilename {
				continue
			}
			seen[k] = struct{}{}
		}
	}

	cols := make([]string, 0, len(seen)+1)
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return append([]string{ColFilename}, cols...)
}

// String 便于日志/测试输出定位单行。
func (r Row) String() string {
	return fmt.Sprintf("{%s %v}", r.Filename, r.Fields)
}
