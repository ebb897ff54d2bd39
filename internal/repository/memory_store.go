package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chartmann1590/Business-Simulator-sub002/internal/domain"

	"github.com/google/uuid"
)

// MemoryStore keeps the whole simulation state in process memory.
// Used by unit tests and as the degraded mode when Postgres is unavailable
// at startup. RunTick snapshots the state and restores it on failure so the
// all-or-nothing tick semantics match the Postgres store.
type MemoryStore struct {
	mu sync.RWMutex

	agents      map[string]domain.Agent
	dependents  map[string]domain.Dependent
	meetings    map[string]domain.Meeting
	trainings   map[string]domain.TrainingSession
	clockEvents map[string]domain.ClockEvent
	activities  []domain.Activity

	repos *Repos
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		agents:      map[string]domain.Agent{},
		dependents:  map[string]domain.Dependent{},
		meetings:    map[string]domain.Meeting{},
		trainings:   map[string]domain.TrainingSession{},
		clockEvents: map[string]domain.ClockEvent{},
	}
	s.repos = &Repos{
		Agents:     &memoryAgentsRepo{store: s},
		Dependents: &memoryDependentsRepo{store: s},
		Sessions:   &memorySessionsRepo{store: s},
		Activities: &memoryActivitiesRepo{store: s},
	}
	return s
}

var _ Store = (*MemoryStore)(nil)

// Repos 内存仓库集合
func (s *MemoryStore) Repos() *Repos {
	return s.repos
}

// RunTick runs fn against the live state; on error the pre-tick snapshot is
// restored, so a failed tick leaves no partial state behind.
func (s *MemoryStore) RunTick(ctx context.Context, fn func(ctx context.Context, r *Repos) error) error {
	s.mu.Lock()
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if err := fn(ctx, s.repos); err != nil {
		s.mu.Lock()
		s.restoreLocked(snapshot)
		s.mu.Unlock()
		return err
	}
	return nil
}

// Close 内存存储无资源可释放
func (s *MemoryStore) Close() error {
	return nil
}

type memorySnapshot struct {
	agents      map[string]domain.Agent
	dependents  map[string]domain.Dependent
	meetings    map[string]domain.Meeting
	trainings   map[string]domain.TrainingSession
	clockEvents map[string]domain.ClockEvent
	activities  []domain.Activity
}

func (s *MemoryStore) snapshotLocked() memorySnapshot {
	snap := memorySnapshot{
		agents:      make(map[string]domain.Agent, len(s.agents)),
		dependents:  make(map[string]domain.Dependent, len(s.dependents)),
		meetings:    make(map[string]domain.Meeting, len(s.meetings)),
		trainings:   make(map[string]domain.TrainingSession, len(s.trainings)),
		clockEvents: make(map[string]domain.ClockEvent, len(s.clockEvents)),
		activities:  make([]domain.Activity, len(s.activities)),
	}
	for k, v := range s.agents {
		snap.agents[k] = v
	}
	for k, v := range s.dependents {
		snap.dependents[k] = v
	}
	for k, v := range s.meetings {
		v.ParticipantIDs = append([]string(nil), v.ParticipantIDs...)
		snap.meetings[k] = v
	}
	for k, v := range s.trainings {
		snap.trainings[k] = v
	}
	for k, v := range s.clockEvents {
		snap.clockEvents[k] = v
	}
	copy(snap.activities, s.activities)
	return snap
}

func (s *MemoryStore) restoreLocked(snap memorySnapshot) {
	s.agents = snap.agents
	s.dependents = snap.dependents
	s.meetings = snap.meetings
	s.trainings = snap.trainings
	s.clockEvents = snap.clockEvents
	s.activities = snap.activities
}

// --- Agents ---

type memoryAgentsRepo struct {
	store *MemoryStore
}

var _ AgentsRepository = (*memoryAgentsRepo)(nil)

func (r *memoryAgentsRepo) GetAgent(_ context.Context, agentID string) (*domain.Agent, error) {
	if agentID == "" {
		return nil, fmt.Errorf("agent_id is required")
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	agent, ok := r.store.agents[agentID]
	if !ok {
		return nil, fmt.Errorf("agent not found: %s", agentID)
	}
	return &agent, nil
}

func (r *memoryAgentsRepo) ListActiveAgents(_ context.Context) ([]*domain.Agent, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var agents []*domain.Agent
	for _, a := range r.store.agents {
		if a.Status != domain.AgentStatusActive {
			continue
		}
		agent := a
		agents = append(agents, &agent)
	}
	sort.Slice(agents, func(i, j int) bool {
		if agents[i].HiredAt.Equal(agents[j].HiredAt) {
			return agents[i].AgentID < agents[j].AgentID
		}
		return agents[i].HiredAt.Before(agents[j].HiredAt)
	})
	return agents, nil
}

func (r *memoryAgentsRepo) ListAgentNames(_ context.Context) ([]string, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var names []string
	for _, a := range r.store.agents {
		names = append(names, a.Name)
	}
	sort.Strings(names)
	return names, nil
}

func (r *memoryAgentsRepo) CreateAgent(_ context.Context, agent *domain.Agent) (string, error) {
	if agent == nil {
		return "", fmt.Errorf("agent is required")
	}
	if agent.Name == "" {
		return "", fmt.Errorf("name is required")
	}
	if agent.HomeRoom == "" {
		return "", fmt.Errorf("home_room is required")
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if agent.AgentID == "" {
		agent.AgentID = uuid.NewString()
	}
	if agent.Status == "" {
		agent.Status = domain.AgentStatusActive
	}
	if agent.ActivityState == "" {
		agent.ActivityState = domain.ActivityIdle
	}
	if agent.SleepState == "" {
		agent.SleepState = domain.SleepAwake
	}
	if agent.CurrentRoom == "" {
		agent.CurrentRoom = agent.HomeRoom
	}
	now := time.Now().UTC()
	if agent.HiredAt.IsZero() {
		agent.HiredAt = now
	}
	agent.UpdatedAt = now

	r.store.agents[agent.AgentID] = *agent
	return agent.AgentID, nil
}

func (r *memoryAgentsRepo) UpdateAgentState(_ context.Context, agent *domain.Agent) error {
	if agent == nil || agent.AgentID == "" {
		return fmt.Errorf("agent with agent_id is required")
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.agents[agent.AgentID]; !ok {
		return fmt.Errorf("agent not found: %s", agent.AgentID)
	}
	agent.UpdatedAt = time.Now().UTC()
	r.store.agents[agent.AgentID] = *agent
	return nil
}

func (r *memoryAgentsRepo) DeactivateAgent(_ context.Context, agentID string) error {
	if agentID == "" {
		return fmt.Errorf("agent_id is required")
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	agent, ok := r.store.agents[agentID]
	if !ok {
		return fmt.Errorf("agent not found: %s", agentID)
	}
	agent.Deactivate()
	agent.UpdatedAt = time.Now().UTC()
	r.store.agents[agentID] = agent
	return nil
}

func (r *memoryAgentsRepo) CountInRoom(_ context.Context, room string, excludingAgentID string) (int, error) {
	if room == "" {
		return 0, fmt.Errorf("room is required")
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	count := 0
	for _, a := range r.store.agents {
		if a.Status != domain.AgentStatusActive {
			continue
		}
		if excludingAgentID != "" && a.AgentID == excludingAgentID {
			continue
		}
		if strings.EqualFold(a.CurrentRoom, room) {
			count++
		}
	}
	return count, nil
}

func (r *memoryAgentsRepo) CountSleeping(_ context.Context) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	count := 0
	for _, a := range r.store.agents {
		if a.Status == domain.AgentStatusActive && a.SleepState == domain.SleepSleeping {
			count++
		}
	}
	return count, nil
}

// --- Dependents ---

type memoryDependentsRepo struct {
	store *MemoryStore
}

var _ DependentsRepository = (*memoryDependentsRepo)(nil)

func (r *memoryDependentsRepo) ListByAgent(_ context.Context, agentID string) ([]*domain.Dependent, error) {
	if agentID == "" {
		return nil, fmt.Errorf("agent_id is required")
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var deps []*domain.Dependent
	for _, d := range r.store.dependents {
		if d.AgentID != agentID {
			continue
		}
		dep := d
		deps = append(deps, &dep)
	}
	sort.Slice(deps, func(i, j int) bool { return deps[i].DependentID < deps[j].DependentID })
	return deps, nil
}

func (r *memoryDependentsRepo) ListAll(_ context.Context) ([]*domain.Dependent, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var deps []*domain.Dependent
	for _, d := range r.store.dependents {
		owner, ok := r.store.agents[d.AgentID]
		if !ok || owner.Status != domain.AgentStatusActive {
			continue
		}
		dep := d
		deps = append(deps, &dep)
	}
	sort.Slice(deps, func(i, j int) bool { return deps[i].DependentID < deps[j].DependentID })
	return deps, nil
}

func (r *memoryDependentsRepo) CreateDependent(_ context.Context, dep *domain.Dependent) (string, error) {
	if dep == nil {
		return "", fmt.Errorf("dependent is required")
	}
	if dep.AgentID == "" {
		return "", fmt.Errorf("agent_id is required")
	}
	if dep.Name == "" {
		return "", fmt.Errorf("name is required")
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if dep.DependentID == "" {
		dep.DependentID = uuid.NewString()
	}
	if dep.Kind == "" {
		dep.Kind = domain.DependentFamily
	}
	if dep.SleepState == "" {
		dep.SleepState = domain.SleepAwake
	}
	if dep.CurrentLocation == "" {
		dep.CurrentLocation = domain.LocationInside
	}
	dep.UpdatedAt = time.Now().UTC()

	r.store.dependents[dep.DependentID] = *dep
	return dep.DependentID, nil
}

func (r *memoryDependentsRepo) UpdateDependentState(_ context.Context, dep *domain.Dependent) error {
	if dep == nil || dep.DependentID == "" {
		return fmt.Errorf("dependent with dependent_id is required")
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.dependents[dep.DependentID]; !ok {
		return fmt.Errorf("dependent not found: %s", dep.DependentID)
	}
	dep.UpdatedAt = time.Now().UTC()
	r.store.dependents[dep.DependentID] = *dep
	return nil
}

func (r *memoryDependentsRepo) CountSleeping(_ context.Context) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	count := 0
	for _, d := range r.store.dependents {
		owner, ok := r.store.agents[d.AgentID]
		if !ok || owner.Status != domain.AgentStatusActive {
			continue
		}
		if d.SleepState == domain.SleepSleeping {
			count++
		}
	}
	return count, nil
}

// --- Sessions ---

type memorySessionsRepo struct {
	store *MemoryStore
}

var _ SessionsRepository = (*memorySessionsRepo)(nil)

func (r *memorySessionsRepo) CreateMeeting(_ context.Context, m *domain.Meeting) (string, error) {
	if m == nil {
		return "", fmt.Errorf("meeting is required")
	}
	if len(m.ParticipantIDs) == 0 {
		return "", fmt.Errorf("participant_ids are required")
	}
	if m.Room == "" {
		return "", fmt.Errorf("room is required")
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if m.MeetingID == "" {
		m.MeetingID = uuid.NewString()
	}
	if m.Status == "" {
		m.Status = domain.SessionScheduled
	}
	now := time.Now().UTC()
	if m.StartTime.IsZero() {
		m.StartTime = now
	}
	m.CreatedAt = now

	stored := *m
	stored.ParticipantIDs = append([]string(nil), m.ParticipantIDs...)
	r.store.meetings[m.MeetingID] = stored
	return m.MeetingID, nil
}

func (r *memorySessionsRepo) ListMeetingsByStatus(_ context.Context, status domain.SessionStatus) ([]*domain.Meeting, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var meetings []*domain.Meeting
	for _, m := range r.store.meetings {
		if m.Status != status {
			continue
		}
		meeting := m
		meeting.ParticipantIDs = append([]string(nil), m.ParticipantIDs...)
		meetings = append(meetings, &meeting)
	}
	sort.Slice(meetings, func(i, j int) bool {
		if meetings[i].StartTime.Equal(meetings[j].StartTime) {
			return meetings[i].MeetingID < meetings[j].MeetingID
		}
		return meetings[i].StartTime.Before(meetings[j].StartTime)
	})
	return meetings, nil
}

func (r *memorySessionsRepo) HasActiveMeeting(_ context.Context, agentID string) (bool, error) {
	if agentID == "" {
		return false, fmt.Errorf("agent_id is required")
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, m := range r.store.meetings {
		if m.Status != domain.SessionScheduled && m.Status != domain.SessionInProgress {
			continue
		}
		for _, id := range m.ParticipantIDs {
			if id == agentID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (r *memorySessionsRepo) UpdateMeeting(_ context.Context, m *domain.Meeting) error {
	if m == nil || m.MeetingID == "" {
		return fmt.Errorf("meeting with meeting_id is required")
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.meetings[m.MeetingID]; !ok {
		return fmt.Errorf("meeting not found: %s", m.MeetingID)
	}
	stored := *m
	stored.ParticipantIDs = append([]string(nil), m.ParticipantIDs...)
	r.store.meetings[m.MeetingID] = stored
	return nil
}

func (r *memorySessionsRepo) CreateTraining(_ context.Context, t *domain.TrainingSession) (string, error) {
	if t == nil {
		return "", fmt.Errorf("training session is required")
	}
	if t.AgentID == "" {
		return "", fmt.Errorf("agent_id is required")
	}
	if t.Room == "" {
		return "", fmt.Errorf("room is required")
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if t.SessionID == "" {
		t.SessionID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = domain.SessionScheduled
	}
	now := time.Now().UTC()
	if t.StartTime.IsZero() {
		t.StartTime = now
	}
	t.CreatedAt = now

	r.store.trainings[t.SessionID] = *t
	return t.SessionID, nil
}

func (r *memorySessionsRepo) ListTrainingsByStatus(_ context.Context, status domain.SessionStatus) ([]*domain.TrainingSession, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var sessions []*domain.TrainingSession
	for _, t := range r.store.trainings {
		if t.Status != status {
			continue
		}
		session := t
		sessions = append(sessions, &session)
	}
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].StartTime.Equal(sessions[j].StartTime) {
			return sessions[i].SessionID < sessions[j].SessionID
		}
		return sessions[i].StartTime.Before(sessions[j].StartTime)
	})
	return sessions, nil
}

func (r *memorySessionsRepo) HasActiveTraining(_ context.Context, agentID string) (bool, error) {
	if agentID == "" {
		return false, fmt.Errorf("agent_id is required")
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, t := range r.store.trainings {
		if t.AgentID != agentID {
			continue
		}
		if t.Status == domain.SessionScheduled || t.Status == domain.SessionInProgress {
			return true, nil
		}
	}
	return false, nil
}

func (r *memorySessionsRepo) UpdateTraining(_ context.Context, t *domain.TrainingSession) error {
	if t == nil || t.SessionID == "" {
		return fmt.Errorf("training session with session_id is required")
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.trainings[t.SessionID]; !ok {
		return fmt.Errorf("training session not found: %s", t.SessionID)
	}
	r.store.trainings[t.SessionID] = *t
	return nil
}

func (r *memorySessionsRepo) CreateClockEvent(_ context.Context, e *domain.ClockEvent) (string, error) {
	if e == nil {
		return "", fmt.Errorf("clock event is required")
	}
	if e.AgentID == "" {
		return "", fmt.Errorf("agent_id is required")
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.Status == "" {
		e.Status = domain.SessionInProgress
	}
	if e.StartTime.IsZero() {
		e.StartTime = time.Now().UTC()
	}

	r.store.clockEvents[e.EventID] = *e
	return e.EventID, nil
}

func (r *memorySessionsRepo) ListOpenClockEvents(_ context.Context) ([]*domain.ClockEvent, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var events []*domain.ClockEvent
	for _, e := range r.store.clockEvents {
		if e.Status != domain.SessionInProgress {
			continue
		}
		event := e
		events = append(events, &event)
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].StartTime.Equal(events[j].StartTime) {
			return events[i].EventID < events[j].EventID
		}
		return events[i].StartTime.Before(events[j].StartTime)
	})
	return events, nil
}

func (r *memorySessionsRepo) HasOpenClockEvent(_ context.Context, agentID string) (bool, error) {
	if agentID == "" {
		return false, fmt.Errorf("agent_id is required")
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, e := range r.store.clockEvents {
		if e.AgentID == agentID && e.Status == domain.SessionInProgress {
			return true, nil
		}
	}
	return false, nil
}

func (r *memorySessionsRepo) CountOpenClockEvents(_ context.Context) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	count := 0
	for _, e := range r.store.clockEvents {
		if e.Status == domain.SessionInProgress {
			count++
		}
	}
	return count, nil
}

func (r *memorySessionsRepo) UpdateClockEvent(_ context.Context, e *domain.ClockEvent) error {
	if e == nil || e.EventID == "" {
		return fmt.Errorf("clock event with event_id is required")
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.clockEvents[e.EventID]; !ok {
		return fmt.Errorf("clock event not found: %s", e.EventID)
	}
	r.store.clockEvents[e.EventID] = *e
	return nil
}

// --- Activities ---

type memoryActivitiesRepo struct {
	store *MemoryStore
}

var _ ActivitiesRepository = (*memoryActivitiesRepo)(nil)

func (r *memoryActivitiesRepo) AppendActivity(_ context.Context, a *domain.Activity) (string, error) {
	if a == nil {
		return "", fmt.Errorf("activity is required")
	}
	if a.ActivityType == "" {
		return "", fmt.Errorf("activity_type is required")
	}
	if a.Description == "" {
		return "", fmt.Errorf("description is required")
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if a.ActivityID == "" {
		a.ActivityID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	r.store.activities = append(r.store.activities, *a)
	return a.ActivityID, nil
}

func (r *memoryActivitiesRepo) ListRecentActivities(_ context.Context, limit int) ([]*domain.Activity, error) {
	if limit <= 0 {
		limit = 50
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	start := len(r.store.activities) - limit
	if start < 0 {
		start = 0
	}
	recent := r.store.activities[start:]

	// newest first, matching the Postgres ordering
	activities := make([]*domain.Activity, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		a := recent[i]
		activities = append(activities, &a)
	}
	return activities, nil
}
