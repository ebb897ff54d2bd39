package roster

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/chartmann1590/Business-Simulator-sub002/internal/clock"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/domain"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/narrative"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/repository"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/rooms"
)

func buildWorkbook(t *testing.T, employees [][]any, dependents [][]any) []byte {
	t.Helper()

	f := excelize.NewFile()
	writeTestSheet(t, f, employeeSheet, EmployeeHeader, employees)
	if dependents != nil {
		writeTestSheet(t, f, dependentSheet, DependentHeader, dependents)
	}
	f.DeleteSheet("Sheet1")

	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return buf.Bytes()
}

func writeTestSheet(t *testing.T, f *excelize.File, sheet string, header []string, rows [][]any) {
	t.Helper()

	_, err := f.NewSheet(sheet)
	require.NoError(t, err)
	for col, h := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		require.NoError(t, err)
		require.NoError(t, f.SetCellValue(sheet, cell, h))
	}
	for rowIdx, row := range rows {
		for colIdx, value := range row {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, value))
		}
	}
}

func testImporter(t *testing.T) (*Importer, *repository.MemoryStore) {
	t.Helper()

	registry := rooms.NewRegistry(2)
	generator := narrative.NewClient("", "", time.Second, zap.NewNop())
	clk := clock.NewFixed(time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC), time.UTC)
	return NewImporter(registry, generator, clk, zap.NewNop()), repository.NewMemoryStore()
}

func TestImportWorkbook(t *testing.T) {
	importer, store := testImporter(t)
	r := store.Repos()

	data := buildWorkbook(t,
		[][]any{
			{"Avery Bennett", "Engineering", "Engineer", "Employee", 1},
			{"Jordan Calloway", "Sales", "Account Manager", "Manager", 2},
			{"Morgan Dalton", "Support", "Agent", "", ""},
		},
		[][]any{
			{"Avery Bennett", "Rowan Bennett", "family"},
			{"Avery Bennett", "Biscuit", "pet"},
			{"Nobody Known", "Ghost", "family"},
		},
	)

	result, err := importer.ImportWorkbook(context.Background(), r, data)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 3, result.Hired)
	assert.Equal(t, 2, result.Dependents)
	// 挂靠到未知员工的家属被跳过
	assert.Equal(t, 1, result.SkippedCount)
	assert.Empty(t, result.Errors)

	agents, err := r.Agents.ListActiveAgents(context.Background())
	require.NoError(t, err)
	require.Len(t, agents, 3)
	for _, agent := range agents {
		assert.Equal(t, domain.ActivityIdle, agent.ActivityState)
		assert.NotEmpty(t, agent.HomeRoom)
		assert.Equal(t, agent.HomeRoom, agent.CurrentRoom)
		require.NoError(t, agent.CheckInvariants())
	}
}

func TestImportSkipsDuplicateNames(t *testing.T) {
	importer, store := testImporter(t)
	r := store.Repos()

	data := buildWorkbook(t, [][]any{
		{"Avery Bennett", "Engineering", "Engineer", "Employee", 1},
		{"avery bennett", "Sales", "Account Manager", "Employee", 1},
	}, nil)

	result, err := importer.ImportWorkbook(context.Background(), r, data)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Hired)
	assert.Equal(t, 1, result.SkippedCount)
}

func TestImportAssignsFloorsRoundRobin(t *testing.T) {
	importer, store := testImporter(t)
	r := store.Repos()

	// 楼层留空时在 1、2 层之间轮转
	data := buildWorkbook(t, [][]any{
		{"Avery Bennett", "Engineering", "Engineer", "Employee", ""},
		{"Jordan Calloway", "Engineering", "Engineer", "Employee", ""},
		{"Morgan Dalton", "Engineering", "Engineer", "Employee", ""},
	}, nil)

	result, err := importer.ImportWorkbook(context.Background(), r, data)
	require.NoError(t, err)
	require.Equal(t, 3, result.Hired)

	agents, err := r.Agents.ListActiveAgents(context.Background())
	require.NoError(t, err)

	floors := map[int]int{}
	for _, agent := range agents {
		floors[agent.Floor]++
	}
	assert.Equal(t, 2, floors[1])
	assert.Equal(t, 1, floors[2])
}

func TestImportRejectsInvalidNames(t *testing.T) {
	importer, store := testImporter(t)
	r := store.Repos()

	data := buildWorkbook(t, [][]any{
		{"Robert 42", "Engineering", "Engineer", "Employee", 1},
	}, nil)

	result, err := importer.ImportWorkbook(context.Background(), r, data)
	require.NoError(t, err)
	assert.Zero(t, result.Hired)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "invalid name")
}

func TestExportWorkbookRoundTrip(t *testing.T) {
	importer, store := testImporter(t)
	r := store.Repos()

	data := buildWorkbook(t,
		[][]any{{"Avery Bennett", "Engineering", "Engineer", "Employee", 1}},
		[][]any{{"Avery Bennett", "Biscuit", "pet"}},
	)
	_, err := importer.ImportWorkbook(context.Background(), r, data)
	require.NoError(t, err)

	out, err := ExportWorkbook(context.Background(), r)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(employeeSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Avery Bennett", rows[1][0])

	depRows, err := f.GetRows(dependentSheet)
	require.NoError(t, err)
	require.Len(t, depRows, 2)
	assert.Equal(t, "Biscuit", depRows[1][1])
}

func TestGenerateImportTemplate(t *testing.T) {
	data, err := GenerateImportTemplate()
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(employeeSheet)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, EmployeeHeader, rows[0])
}
