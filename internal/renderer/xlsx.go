package renderer

import (
	"fmt"
	"io"
	"query-visualizer/internal/record"

	"github.com/xuri/excelize/v2"
)

// SheetName 导出工作表名称
const SheetName = "Results"

// WriteXLSX 把原始结果表导出为 Excel 工作簿
// 数值写为数字单元格，其余值使用表格中的字符串形式。
func WriteXLSX(w io.Writer, rs record.ResultSet) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := rs.Schema()
	for col, h := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return fmt.Errorf("write header %s: %w", h, err)
		}
	}

	for i, row := range rs.Rows {
		for col, h := range header {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(SheetName, cell, cellValue(row[h])); err != nil {
				return fmt.Errorf("write row %d: %w", i, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func cellValue(v any) any {
	switch v.(type) {
	case string, nil:
		return record.Format(v)
	}
	if n, ok := record.Number(v); ok {
		return n
	}
	return record.Format(v)
}
