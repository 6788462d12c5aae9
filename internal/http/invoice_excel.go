package httpapi

import (
	"bytes"
	"fmt"

	"remediation-engine/internal/service"

	"github.com/xuri/excelize/v2"
)

// InvoiceExportHeader 开票预览导出表头
var InvoiceExportHeader = []string{
	"Room",
	"Item",
	"Description",
	"Quantity",
	"Unit Price",
	"Amount",
	"Overridden",
}

const invoiceSheetName = "Invoice"

// GenerateInvoicePreviewExport 把开票预览写成 Excel（每行一个开票行，末尾合计）
func GenerateInvoicePreviewExport(preview *service.InvoicePreview) ([]byte, error) {
	f := excelize.NewFile()
	// WriteTo 之前不能 Close

	index, err := f.NewSheet(invoiceSheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	moneyFmt := "#,##0.00"
	moneyStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &moneyFmt})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create money style: %w", err)
	}

	for col, header := range InvoiceExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(invoiceSheetName, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(invoiceSheetName, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
	}

	columnWidths := []float64{20, 28, 48, 12, 14, 14, 12}
	for i, width := range columnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(invoiceSheetName, col, col, width); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	row := 2
	for _, line := range preview.LineItems {
		overridden := "No"
		if line.Overridden {
			overridden = "Yes"
		}
		values := []any{line.Room, line.Name, line.Description, line.Quantity, line.UnitPrice, line.Amount, overridden}
		if err := setRow(f, row, values); err != nil {
			f.Close()
			return nil, err
		}
		row++
	}

	// 合计行
	if err := setRow(f, row, []any{"Total", nil, nil, nil, nil, preview.Total, nil}); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.SetCellStyle(invoiceSheetName, "E2", fmt.Sprintf("F%d", row), moneyStyle); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to set money style: %w", err)
	}

	if err := f.SetPanes(invoiceSheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}

// setRow 按列顺序写入一行；nil 跳过
func setRow(f *excelize.File, row int, values []any) error {
	for i, v := range values {
		if v == nil {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(invoiceSheetName, cell, v); err != nil {
			return fmt.Errorf("failed to set cell %s: %w", cell, err)
		}
	}
	return nil
}
