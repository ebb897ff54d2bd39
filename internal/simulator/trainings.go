package simulator

import (
	"context"
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

// Trainings 培训生命周期管理器
type Trainings struct {
	registry   *rooms.Registry
	movement   *Movement
	clk        *clock.Clock
	generator  narrative.Generator
	maxMinutes int
	rng        *rand.Rand
	logger     *zap.Logger
}

// NewTrainings 创建培训管理器
func NewTrainings(registry *rooms.Registry, movement *Movement, clk *clock.Clock, generator narrative.Generator, maxMinutes int, rng *rand.Rand, logger *zap.Logger) *Trainings {
	return &Trainings{
		registry:   registry,
		movement:   movement,
		clk:        clk,
		generator:  generator,
		maxMinutes: maxMinutes,
		rng:        rng,
		logger:     logger,
	}
}

// Generate 尝试为一名员工安排培训
// 不变式：一个员工同一时间至多一场未结束培训
func (t *Trainings) Generate(ctx context.Context, r *repository.Repos) (*domain.TrainingSession, error) {
	agents, err := r.Agents.ListActiveAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load agents for training generation: %w", err)
	}

	// 随机起点遍历，避免总是同一个员工被培训
	if len(agents) == 0 {
		return nil, nil
	}
	offset := t.rng.Intn(len(agents))
	for i := range agents {
		agent := agents[(offset+i)%len(agents)]
		if !canJoinSession(agent) {
			continue
		}
		busy, err := r.Sessions.HasActiveTraining(ctx, agent.AgentID)
		if err != nil {
			t.logger.Warn("Failed to check active training",
				zap.String("agent_id", agent.AgentID),
				zap.Error(err),
			)
			continue
		}
		if busy {
			continue
		}
		// 已被会议占用的员工不再安排培训
		inMeeting, err := r.Sessions.HasActiveMeeting(ctx, agent.AgentID)
		if err != nil || inMeeting {
			continue
		}

		room := domain.RoomKey(TrainingRoomBaseName, agent.Floor)
		hasSpace, err := t.registry.HasSpace(ctx, r.Agents, room, agent.AgentID)
		if err != nil || !hasSpace {
			continue
		}

		session := &domain.TrainingSession{
			AgentID:   agent.AgentID,
			Topic:     t.generator.GenerateText(ctx, fmt.Sprintf("training topic for %s", agent.Department)),
			Room:      room,
			Floor:     agent.Floor,
			Status:    domain.SessionScheduled,
			StartTime: t.clk.NowUTC(),
		}
		if _, err := r.Sessions.CreateTraining(ctx, session); err != nil {
			return nil, fmt.Errorf("failed to create training session: %w", err)
		}
		return session, nil
	}
	return nil, nil
}

// Sweep 推进培训生命周期：到点开课，超时结课并疏散滞留学员
func (t *Trainings) Sweep(ctx context.Context, r *repository.Repos) (SweepResult, error) {
	var result SweepResult
	now := t.clk.NowUTC()

	scheduled, err := r.Sessions.ListTrainingsByStatus(ctx, domain.SessionScheduled)
	if err != nil {
		return result, fmt.Errorf("failed to list scheduled trainings: %w", err)
	}
	for _, session := range scheduled {
		if now.Before(session.StartTime.UTC()) {
			continue
		}
		session.Status = domain.SessionInProgress
		if err := r.Sessions.UpdateTraining(ctx, session); err != nil {
			t.logger.Error("Failed to start training",
				zap.String("session_id", session.SessionID),
				zap.Error(err),
			)
			continue
		}
		t.summonTrainee(ctx, r, session)
		logSessionActivity(ctx, r, domain.ActivityTypeTrainingStart, session.AgentID,
			fmt.Sprintf("Training started in %s: %s", session.Room, session.Topic),
			mustJSON(map[string]any{"session_id": session.SessionID}),
			t.logger,
		)
		result.Started++
	}

	inProgress, err := r.Sessions.ListTrainingsByStatus(ctx, domain.SessionInProgress)
	if err != nil {
		return result, fmt.Errorf("failed to list in-progress trainings: %w", err)
	}
	for _, session := range inProgress {
		elapsed := domain.Elapsed(now, session.StartTime)
		if elapsed < time.Duration(t.maxMinutes)*time.Minute {
			t.summonTrainee(ctx, r, session)
			continue
		}

		endTime := now
		duration := durationMinutes(session.StartTime, endTime)
		session.Status = domain.SessionCompleted
		session.EndTime = &endTime
		session.DurationMins = &duration
		if err := r.Sessions.UpdateTraining(ctx, session); err != nil {
			t.logger.Error("Failed to complete training",
				zap.String("session_id", session.SessionID),
				zap.Error(err),
			)
			continue
		}
		relocateOutOf(ctx, r, t.movement, session.AgentID, session.Room, t.logger)
		logSessionActivity(ctx, r, domain.ActivityTypeTrainingEnd, session.AgentID,
			fmt.Sprintf("Training ended in %s after %d minutes", session.Room, duration),
			mustJSON(map[string]any{"session_id": session.SessionID, "duration_minutes": duration}),
			t.logger,
		)
		result.Completed++
	}
	return result, nil
}

// summonTrainee 把学员带进培训教室
func (t *Trainings) summonTrainee(ctx context.Context, r *repository.Repos, session *domain.TrainingSession) {
	agent, err := r.Agents.GetAgent(ctx, session.AgentID)
	if err != nil {
		t.logger.Warn("Trainee missing, skipping",
			zap.String("session_id", session.SessionID),
			zap.String("agent_id", session.AgentID),
			zap.Error(err),
		)
		return
	}
	if agent.ActivityState == domain.ActivityInTraining || agent.Walking() {
		return
	}
	if !canJoinSession(agent) {
		return
	}
	if err := sendToSessionRoom(ctx, r, agent, session.Room, (*domain.Agent).EnterTraining); err != nil {
		t.logger.Warn("Failed to summon trainee",
			zap.String("agent_id", session.AgentID),
			zap.Error(err),
		)
	}
}
