package main

import (
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/d-singer/batdetect2-CLI/internal/domain"
)

// renderUnitTable 把单元结果渲染为终端表格（仅用于交互式 stdout）。
func renderUnitTable(units []domain.UnitResult) string {
	rows := make([][]string, 0, len(units))
	for _, u := range units {
		name := u.Unit
		if name == "" {
			name = "<run>"
		}
		rows = append(rows, []string{
			name,
			u.Status,
			strconv.Itoa(u.Files),
			strconv.Itoa(u.Resumed),
			strconv.Itoa(u.Batches),
			strconv.Itoa(u.Records),
		})
	}
	if len(rows) == 0 {
		return ""
	}
	headers := []string{"单元", "状态", "文件", "续跑", "批次", "行数"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight}
	return renderTable(headers, rows, aligns)
}

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}
