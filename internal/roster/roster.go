package roster

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/chartmann1590/Business-Simulator-sub002/internal/clock"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/domain"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/narrative"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/repository"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/rooms"
)

const (
	employeeSheet  = "Employees"
	dependentSheet = "Dependents"
)

// EmployeeHeader 员工表表头
var EmployeeHeader = []string{
	"Name",
	"Department",
	"Title",
	"Role",
	"Floor",
}

// DependentHeader 家属表表头（Agent Name 关联员工）
var DependentHeader = []string{
	"Agent Name",
	"Name",
	"Kind",
}

// ImportResult 导入结果统计
type ImportResult struct {
	Total        int      `json:"total"`
	Hired        int      `json:"hired"`
	Dependents   int      `json:"dependents"`
	SkippedCount int      `json:"skipped_count"`
	Skipped      []string `json:"skipped"`
	Errors       []string `json:"errors"`
}

// Importer 从 Excel 花名册雇佣员工与登记家属
type Importer struct {
	registry  *rooms.Registry
	generator narrative.Generator
	clk       *clock.Clock
	logger    *zap.Logger

	nextFloor int
}

// NewImporter 创建花名册导入器
func NewImporter(registry *rooms.Registry, generator narrative.Generator, clk *clock.Clock, logger *zap.Logger) *Importer {
	return &Importer{
		registry:  registry,
		generator: generator,
		clk:       clk,
		logger:    logger,
	}
}

// ImportWorkbook 解析工作簿并通过仓储雇佣员工
// 姓名冲突的行跳过，单行错误不中断整体导入
func (i *Importer) ImportWorkbook(ctx context.Context, r *repository.Repos, data []byte) (*ImportResult, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse Excel file: %w", err)
	}
	defer f.Close()

	result := &ImportResult{}

	existing, err := r.Agents.ListAgentNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list existing agent names: %w", err)
	}
	taken := make(map[string]bool, len(existing))
	for _, name := range existing {
		taken[strings.ToLower(name)] = true
	}

	// Agent Name -> agent_id，供家属表关联
	hiredIDs := map[string]string{}

	sheet := employeeSheet
	if idx, err := f.GetSheetIndex(employeeSheet); err != nil || idx < 0 {
		sheet = f.GetSheetName(0)
	}
	if sheet == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) >= 2 {
		headerMap := headerIndex(rows[0])
		for rowIdx := 1; rowIdx < len(rows); rowIdx++ {
			result.Total++
			agent, skip, err := i.parseEmployee(ctx, rows[rowIdx], headerMap, taken)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", rowIdx+1, err))
				continue
			}
			if skip != "" {
				result.SkippedCount++
				result.Skipped = append(result.Skipped, skip)
				continue
			}

			id, err := r.Agents.CreateAgent(ctx, agent)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", rowIdx+1, err))
				continue
			}
			taken[strings.ToLower(agent.Name)] = true
			hiredIDs[strings.ToLower(agent.Name)] = id
			result.Hired++

			if _, err := r.Activities.AppendActivity(ctx, &domain.Activity{
				ActivityType: domain.ActivityTypeHired,
				AgentID:      id,
				Description:  fmt.Sprintf("%s joined %s as %s", agent.Name, agent.Department, agent.Title),
			}); err != nil {
				i.logger.Warn("Failed to append hire activity", zap.Error(err))
			}
		}
	}

	if err := i.importDependents(ctx, r, f, hiredIDs, result); err != nil {
		return nil, err
	}

	i.logger.Info("Roster import finished",
		zap.Int("total", result.Total),
		zap.Int("hired", result.Hired),
		zap.Int("dependents", result.Dependents),
		zap.Int("skipped", result.SkippedCount),
		zap.Int("errors", len(result.Errors)),
	)
	return result, nil
}

// parseEmployee 解析一行员工数据并分配工位
// 返回的 skip 非空表示该行被跳过及原因
func (i *Importer) parseEmployee(ctx context.Context, row []string, headerMap map[string]int, taken map[string]bool) (*domain.Agent, string, error) {
	name := cellValue(row, headerMap, "Name")
	if name == "" {
		// 空姓名行由名称服务补一个不冲突的
		var existing []string
		for n := range taken {
			existing = append(existing, n)
		}
		name = i.generator.GenerateUniqueName(ctx, existing)
	}
	if taken[strings.ToLower(name)] {
		return nil, fmt.Sprintf("%s: name already on roster", name), nil
	}
	if !i.generator.ValidateName(ctx, name) {
		return nil, "", fmt.Errorf("invalid name %q", name)
	}

	floor := i.pickFloor(cellValue(row, headerMap, "Floor"))
	homeRoom := i.registry.DefaultOverflow(floor)
	for _, room := range i.registry.Rooms() {
		if room.Floor == floor && room.BaseName == "Office" {
			homeRoom = domain.RoomKey(room.BaseName, room.Floor)
			break
		}
	}

	department := cellValue(row, headerMap, "Department")
	if department == "" {
		department = "General"
	}
	title := cellValue(row, headerMap, "Title")
	if title == "" {
		title = "Associate"
	}
	role := cellValue(row, headerMap, "Role")
	if role == "" {
		role = "Employee"
	}

	now := i.clk.NowUTC()
	return &domain.Agent{
		Name:          name,
		Department:    department,
		Title:         title,
		Role:          role,
		ActivityState: domain.ActivityIdle,
		SleepState:    domain.SleepAwake,
		CurrentRoom:   homeRoom,
		HomeRoom:      homeRoom,
		Floor:         floor,
		Status:        domain.AgentStatusActive,
		HiredAt:       now,
		UpdatedAt:     now,
	}, "", nil
}

// pickFloor 解析楼层，缺省时在各层之间轮转
func (i *Importer) pickFloor(raw string) int {
	if raw != "" {
		if floor, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && floor >= 1 && floor <= i.registry.Floors() {
			return floor
		}
	}
	floor := i.nextFloor%i.registry.Floors() + 1
	i.nextFloor++
	return floor
}

func (i *Importer) importDependents(ctx context.Context, r *repository.Repos, f *excelize.File, hiredIDs map[string]string, result *ImportResult) error {
	idx, err := f.GetSheetIndex(dependentSheet)
	if err != nil || idx < 0 {
		return nil
	}
	rows, err := f.GetRows(dependentSheet)
	if err != nil {
		return fmt.Errorf("failed to read dependent rows: %w", err)
	}
	if len(rows) < 2 {
		return nil
	}

	headerMap := headerIndex(rows[0])
	for rowIdx := 1; rowIdx < len(rows); rowIdx++ {
		row := rows[rowIdx]
		agentName := cellValue(row, headerMap, "Agent Name")
		name := cellValue(row, headerMap, "Name")
		if agentName == "" || name == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("dependents row %d: agent name and name are required", rowIdx+1))
			continue
		}
		agentID, ok := hiredIDs[strings.ToLower(agentName)]
		if !ok {
			// 只挂靠本次导入的员工，避免误关联
			result.SkippedCount++
			result.Skipped = append(result.Skipped, fmt.Sprintf("%s: agent %s not in this import", name, agentName))
			continue
		}

		kind := domain.DependentKind(strings.ToLower(cellValue(row, headerMap, "Kind")))
		if kind != domain.DependentFamily && kind != domain.DependentPet {
			kind = domain.DependentFamily
		}

		if _, err := r.Dependents.CreateDependent(ctx, &domain.Dependent{
			AgentID:         agentID,
			Name:            name,
			Kind:            kind,
			SleepState:      domain.SleepAwake,
			CurrentLocation: domain.LocationInside,
			UpdatedAt:       i.clk.NowUTC(),
		}); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("dependents row %d: %v", rowIdx+1, err))
			continue
		}
		result.Dependents++
	}
	return nil
}

func headerIndex(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, h := range header {
		m[strings.TrimSpace(h)] = i
	}
	return m
}

func cellValue(row []string, headerMap map[string]int, column string) string {
	idx, ok := headerMap[column]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
