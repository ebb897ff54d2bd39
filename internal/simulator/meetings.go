package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/chartmann1590/Business-Simulator-sub002/internal/clock"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/domain"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/narrative"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/repository"
	"github.com/chartmann1590/Business-Simulator-sub002/internal/rooms"

	"go.uber.org/zap"
)

// 会议参与人数范围
const (
	meetingMinParticipants = 2
	meetingMaxParticipants = 4
)

// Meetings 会议生命周期管理器
type Meetings struct {
	registry   *rooms.Registry
	movement   *Movement
	clk        *clock.Clock
	generator  narrative.Generator
	maxMinutes int
	rng        *rand.Rand
	logger     *zap.Logger
}

// NewMeetings 创建会议管理器
func NewMeetings(registry *rooms.Registry, movement *Movement, clk *clock.Clock, generator narrative.Generator, maxMinutes int, rng *rand.Rand, logger *zap.Logger) *Meetings {
	return &Meetings{
		registry:   registry,
		movement:   movement,
		clk:        clk,
		generator:  generator,
		maxMinutes: maxMinutes,
		rng:        rng,
		logger:     logger,
	}
}

// Generate 尝试生成一场新会议
// 不变式：一个参与者同一时间至多一场未结束会议；人数不超过会议室容量
// 条件不满足（可用人数不足、会议室没空位）时返回 nil，不算错误
func (m *Meetings) Generate(ctx context.Context, r *repository.Repos) (*domain.Meeting, error) {
	agents, err := r.Agents.ListActiveAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load agents for meeting generation: %w", err)
	}

	// 按楼层分组可参会员工
	byFloor := map[int][]*domain.Agent{}
	for _, agent := range agents {
		if !canJoinSession(agent) {
			continue
		}
		busy, err := r.Sessions.HasActiveMeeting(ctx, agent.AgentID)
		if err != nil {
			m.logger.Warn("Failed to check active meeting",
				zap.String("agent_id", agent.AgentID),
				zap.Error(err),
			)
			continue
		}
		if busy {
			continue
		}
		// 培训中的员工不进会议候选
		inTraining, err := r.Sessions.HasActiveTraining(ctx, agent.AgentID)
		if err != nil || inTraining {
			continue
		}
		byFloor[agent.Floor] = append(byFloor[agent.Floor], agent)
	}

	for floor := 1; floor <= m.registry.Floors(); floor++ {
		candidates := byFloor[floor]
		if len(candidates) < meetingMinParticipants {
			continue
		}

		room := domain.RoomKey(MeetingRoomBaseName, floor)
		capacity := m.registry.Capacity(room)
		if capacity == 0 {
			continue
		}
		occupancy, err := m.registry.Occupancy(ctx, r.Agents, room)
		if err != nil {
			return nil, fmt.Errorf("failed to check meeting room occupancy: %w", err)
		}
		free := capacity - occupancy
		if free < meetingMinParticipants {
			continue
		}

		count := meetingMinParticipants + m.rng.Intn(meetingMaxParticipants-meetingMinParticipants+1)
		if count > len(candidates) {
			count = len(candidates)
		}
		if count > free {
			count = free
		}

		participantIDs := make([]string, 0, count)
		for _, agent := range candidates[:count] {
			participantIDs = append(participantIDs, agent.AgentID)
		}

		meeting := &domain.Meeting{
			Topic:          m.generator.GenerateText(ctx, fmt.Sprintf("meeting topic for floor %d", floor)),
			Room:           room,
			Floor:          floor,
			Status:         domain.SessionScheduled,
			ParticipantIDs: participantIDs,
			StartTime:      m.clk.NowUTC(),
		}
		if _, err := r.Sessions.CreateMeeting(ctx, meeting); err != nil {
			return nil, fmt.Errorf("failed to create meeting: %w", err)
		}
		return meeting, nil
	}
	return nil, nil
}

// Sweep 推进会议生命周期：
// scheduled 到点转 in_progress 并召集参与者；in_progress 超时转 completed 并疏散滞留者
func (m *Meetings) Sweep(ctx context.Context, r *repository.Repos) (SweepResult, error) {
	var result SweepResult
	now := m.clk.NowUTC()

	scheduled, err := r.Sessions.ListMeetingsByStatus(ctx, domain.SessionScheduled)
	if err != nil {
		return result, fmt.Errorf("failed to list scheduled meetings: %w", err)
	}
	for _, meeting := range scheduled {
		if now.Before(meeting.StartTime.UTC()) {
			continue
		}
		meeting.Status = domain.SessionInProgress
		if err := r.Sessions.UpdateMeeting(ctx, meeting); err != nil {
			m.logger.Error("Failed to start meeting",
				zap.String("meeting_id", meeting.MeetingID),
				zap.Error(err),
			)
			continue
		}
		m.summonParticipants(ctx, r, meeting)
		logSessionActivity(ctx, r, domain.ActivityTypeMeetingStart, "",
			fmt.Sprintf("Meeting started in %s: %s", meeting.Room, meeting.Topic),
			mustJSON(map[string]any{"meeting_id": meeting.MeetingID, "participants": len(meeting.ParticipantIDs)}),
			m.logger,
		)
		result.Started++
	}

	inProgress, err := r.Sessions.ListMeetingsByStatus(ctx, domain.SessionInProgress)
	if err != nil {
		return result, fmt.Errorf("failed to list in-progress meetings: %w", err)
	}
	for _, meeting := range inProgress {
		elapsed := domain.Elapsed(now, meeting.StartTime)
		if elapsed < time.Duration(m.maxMinutes)*time.Minute {
			// 未超时：继续把走到会议室的参与者拉进会议
			m.summonParticipants(ctx, r, meeting)
			continue
		}

		endTime := now
		duration := durationMinutes(meeting.StartTime, endTime)
		meeting.Status = domain.SessionCompleted
		meeting.EndTime = &endTime
		meeting.DurationMins = &duration
		if err := r.Sessions.UpdateMeeting(ctx, meeting); err != nil {
			m.logger.Error("Failed to complete meeting",
				zap.String("meeting_id", meeting.MeetingID),
				zap.Error(err),
			)
			continue
		}
		for _, agentID := range meeting.ParticipantIDs {
			relocateOutOf(ctx, r, m.movement, agentID, meeting.Room, m.logger)
		}
		logSessionActivity(ctx, r, domain.ActivityTypeMeetingEnd, "",
			fmt.Sprintf("Meeting ended in %s after %d minutes", meeting.Room, duration),
			mustJSON(map[string]any{"meeting_id": meeting.MeetingID, "duration_minutes": duration}),
			m.logger,
		)
		result.Completed++
	}
	return result, nil
}

// summonParticipants 把参与者带进会议室；记录缺失的参与者只告警跳过
func (m *Meetings) summonParticipants(ctx context.Context, r *repository.Repos, meeting *domain.Meeting) {
	for _, agentID := range meeting.ParticipantIDs {
		agent, err := r.Agents.GetAgent(ctx, agentID)
		if err != nil {
			m.logger.Warn("Meeting participant missing, skipping",
				zap.String("meeting_id", meeting.MeetingID),
				zap.String("agent_id", agentID),
				zap.Error(err),
			)
			continue
		}
		if agent.ActivityState == domain.ActivityInMeeting {
			continue
		}
		if agent.Walking() {
			// 在路上；到达后下一轮扫描落座
			continue
		}
		if !canJoinSession(agent) {
			continue
		}
		if err := sendToSessionRoom(ctx, r, agent, meeting.Room, (*domain.Agent).EnterMeeting); err != nil {
			m.logger.Warn("Failed to summon meeting participant",
				zap.String("agent_id", agentID),
				zap.Error(err),
			)
		}
	}
}

func mustJSON(v map[string]any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
