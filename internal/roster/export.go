package roster

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/chartmann1590/Business-Simulator-sub002/internal/repository"
)

// EmployeeExportHeader 导出表头（包含运行时状态列）
var EmployeeExportHeader = []string{
	"Name",
	"Department",
	"Title",
	"Role",
	"Floor",
	"Home Room",
	"Current Room",
	"Activity State",
	"Sleep State",
	"Hired At",
}

// GenerateImportTemplate 生成空白导入模板
func GenerateImportTemplate() ([]byte, error) {
	f := excelize.NewFile()

	if err := writeSheet(f, employeeSheet, EmployeeHeader, nil); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeSheet(f, dependentSheet, DependentHeader, nil); err != nil {
		f.Close()
		return nil, err
	}
	f.DeleteSheet("Sheet1")

	return flush(f)
}

// ExportWorkbook 导出当前在职员工与家属花名册
func ExportWorkbook(ctx context.Context, r *repository.Repos) ([]byte, error) {
	agents, err := r.Agents.ListActiveAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	deps, err := r.Dependents.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list dependents: %w", err)
	}

	names := make(map[string]string, len(agents))
	employeeRows := make([][]any, 0, len(agents))
	for _, a := range agents {
		names[a.AgentID] = a.Name
		employeeRows = append(employeeRows, []any{
			a.Name,
			a.Department,
			a.Title,
			a.Role,
			a.Floor,
			a.HomeRoom,
			a.CurrentRoom,
			string(a.ActivityState),
			string(a.SleepState),
			a.HiredAt.Format("2006-01-02 15:04:05"),
		})
	}

	dependentRows := make([][]any, 0, len(deps))
	for _, d := range deps {
		owner := names[d.AgentID]
		if owner == "" {
			// 家属归属的员工已离职，导出时仍保留记录
			owner = d.AgentID
		}
		dependentRows = append(dependentRows, []any{owner, d.Name, string(d.Kind)})
	}

	f := excelize.NewFile()
	if err := writeSheet(f, employeeSheet, EmployeeExportHeader, employeeRows); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeSheet(f, dependentSheet, DependentHeader, dependentRows); err != nil {
		f.Close()
		return nil, err
	}
	f.DeleteSheet("Sheet1")

	return flush(f)
}

// writeSheet 写入一个带样式表头和冻结首行的工作表
func writeSheet(f *excelize.File, sheetName string, headers []string, rows [][]any) error {
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}

		colName, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(sheetName, colName, colName, 20); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for rowIdx, row := range rows {
		for colIdx, value := range row {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
	}

	// 冻结表头
	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze panes: %w", err)
	}
	return nil
}

// flush 把工作簿写入内存并关闭句柄
func flush(f *excelize.File) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close workbook: %w", err)
	}
	return buf.Bytes(), nil
}
