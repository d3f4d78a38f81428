// Package servicetest provides in-memory implementations of the service
// store interfaces for tests.
package servicetest

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"studybuddy-backend/internal/models"
)

// DB is an in-memory stand-in for the postgres repositories. Reads return
// copies so tests observe only what was explicitly saved.
type DB struct {
	mu        sync.Mutex
	users     map[uuid.UUID]*models.User
	courses   map[uuid.UUID]*models.Course
	materials []*models.Material
	plans     map[uuid.UUID]*models.StudyPlan
	sessions  map[uuid.UUID]*models.StudySession
	jobs      map[uuid.UUID]*models.Job
	logs      []*models.StudyLog
	clock     time.Time
}

func NewDB() *DB {
	return &DB{
		users:    make(map[uuid.UUID]*models.User),
		courses:  make(map[uuid.UUID]*models.Course),
		plans:    make(map[uuid.UUID]*models.StudyPlan),
		sessions: make(map[uuid.UUID]*models.StudySession),
		jobs:     make(map[uuid.UUID]*models.Job),
		clock:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Store bundles one store of each kind over a shared DB.
type Store struct {
	DB        *DB
	Users     Users
	Courses   Courses
	Materials Materials
	Plans     *Plans
	Sessions  Sessions
	Jobs      Jobs
	Logs      StudyLogs
	Tokens    *Tokens
	Publisher *Publisher
}

func New() *Store {
	db := NewDB()
	return &Store{
		DB:        db,
		Users:     Users{db},
		Courses:   Courses{db},
		Materials: Materials{db},
		Plans:     &Plans{db: db},
		Sessions:  Sessions{db},
		Jobs:      Jobs{db},
		Logs:      StudyLogs{db},
		Tokens:    &Tokens{tokens: make(map[string]uuid.UUID)},
		Publisher: &Publisher{},
	}
}

// SessionCount reports how many sessions are stored across all plans.
func (db *DB) SessionCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.sessions)
}

// tick returns strictly increasing timestamps for created_at ordering.
func (db *DB) tick() time.Time {
	db.clock = db.clock.Add(time.Second)
	return db.clock
}

func clone[T any](v *T) *T {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	out := new(T)
	if err := json.Unmarshal(b, out); err != nil {
		panic(err)
	}
	return out
}

// cloneSession keeps the fields hidden from JSON.
func cloneSession(s *models.StudySession) *models.StudySession {
	out := clone(s)
	out.ReminderSentAt = s.ReminderSentAt
	return out
}

type Users struct{ db *DB }

func (f Users) Create(_ context.Context, u *models.User) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, existing := range f.db.users {
		if existing.Email == u.Email || existing.Username == u.Username {
			return &pgconn.PgError{Code: "23505"}
		}
	}
	u.ID = uuid.New()
	u.CreatedAt = f.db.tick()
	f.db.users[u.ID] = clone(u)
	f.db.users[u.ID].PasswordHash = u.PasswordHash
	return nil
}

func (f Users) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, u := range f.db.users {
		if u.Email == email {
			out := clone(u)
			out.PasswordHash = u.PasswordHash
			return out, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f Users) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	u, ok := f.db.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := clone(u)
	out.PasswordHash = u.PasswordHash
	return out, nil
}

func (f Users) UpdateProfile(_ context.Context, id uuid.UUID, profile json.RawMessage) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	u, ok := f.db.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	u.ProfileData = profile
	return nil
}

type Courses struct{ db *DB }

func (f Courses) Create(_ context.Context, c *models.Course) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	c.ID = uuid.New()
	c.CreatedAt = f.db.tick()
	f.db.courses[c.ID] = clone(c)
	return nil
}

func (f Courses) GetByID(_ context.Context, id uuid.UUID) (*models.Course, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	c, ok := f.db.courses[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return clone(c), nil
}

func (f Courses) ListByUser(_ context.Context, userID uuid.UUID) ([]*models.Course, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	out := []*models.Course{}
	for _, c := range f.db.courses {
		if c.UserID == userID {
			out = append(out, clone(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f Courses) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	list, _ := f.ListByUser(ctx, userID)
	return len(list), nil
}

func (f Courses) UpdateOutline(_ context.Context, id uuid.UUID, outline models.CourseOutline) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	c, ok := f.db.courses[id]
	if !ok {
		return pgx.ErrNoRows
	}
	c.Outline = outline
	return nil
}

type Materials struct{ db *DB }

func (f Materials) Create(_ context.Context, m *models.Material) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	m.ID = uuid.New()
	m.UploadedAt = f.db.tick()
	f.db.materials = append(f.db.materials, clone(m))
	return nil
}

func (f Materials) GetByID(_ context.Context, id uuid.UUID) (*models.Material, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, m := range f.db.materials {
		if m.ID == id {
			return clone(m), nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f Materials) ListByCourse(_ context.Context, courseID uuid.UUID) ([]*models.Material, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	out := []*models.Material{}
	for _, m := range f.db.materials {
		if m.CourseID == courseID {
			out = append(out, clone(m))
		}
	}
	// week_number ASC NULLS LAST, then upload order.
	sort.SliceStable(out, func(i, j int) bool {
		wi, wj := out[i].WeekNumber, out[j].WeekNumber
		switch {
		case wi == nil && wj == nil:
			return false
		case wi == nil:
			return false
		case wj == nil:
			return true
		default:
			return *wi < *wj
		}
	})
	return out, nil
}

type Plans struct {
	db *DB
	// FailCreate simulates a storage failure mid-transaction.
	FailCreate error
}

func (f *Plans) CreateWithSessions(_ context.Context, plan *models.StudyPlan, sessions []*models.StudySession) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if f.FailCreate != nil {
		return f.FailCreate
	}
	for _, p := range f.db.plans {
		if p.CourseID == plan.CourseID && p.Status == models.PlanStatusActive {
			p.Status = models.PlanStatusArchived
		}
	}
	now := f.db.tick()
	plan.ID = uuid.New()
	plan.Status = models.PlanStatusActive
	plan.CreatedAt, plan.UpdatedAt = now, now
	f.db.plans[plan.ID] = clone(plan)
	for _, s := range sessions {
		s.ID = uuid.New()
		s.PlanID = plan.ID
		s.CreatedAt, s.UpdatedAt = now, now
		f.db.sessions[s.ID] = cloneSession(s)
	}
	return nil
}

func (f *Plans) GetByID(_ context.Context, id uuid.UUID) (*models.StudyPlan, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	p, ok := f.db.plans[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return clone(p), nil
}

func (f *Plans) GetActiveByCourse(_ context.Context, courseID uuid.UUID) (*models.StudyPlan, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, p := range f.db.plans {
		if p.CourseID == courseID && p.Status == models.PlanStatusActive {
			return clone(p), nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *Plans) CountActiveByUser(_ context.Context, userID uuid.UUID) (int, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	n := 0
	for _, p := range f.db.plans {
		if p.UserID == userID && p.Status == models.PlanStatusActive {
			n++
		}
	}
	return n, nil
}

func (f *Plans) SaveContentArrival(_ context.Context, plan *models.StudyPlan, sessions []*models.StudySession) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.plans[plan.ID]; !ok {
		return pgx.ErrNoRows
	}
	f.db.plans[plan.ID] = clone(plan)
	for _, s := range sessions {
		stored, ok := f.db.sessions[s.ID]
		if !ok {
			return pgx.ErrNoRows
		}
		stored.ContentRequirements = *clone(&s.ContentRequirements)
		stored.Status = s.Status
	}
	return nil
}

type Sessions struct{ db *DB }

func (f Sessions) activePlan(planID uuid.UUID) bool {
	p, ok := f.db.plans[planID]
	return ok && p.Status == models.PlanStatusActive
}

func (f Sessions) GetByID(_ context.Context, id uuid.UUID) (*models.StudySession, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.db.sessions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneSession(s), nil
}

func (f Sessions) ListByPlan(_ context.Context, planID uuid.UUID) ([]*models.StudySession, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	out := []*models.StudySession{}
	for _, s := range f.db.sessions {
		if s.PlanID == planID {
			out = append(out, cloneSession(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionNumber < out[j].SessionNumber })
	return out, nil
}

func (f Sessions) ListForProgress(_ context.Context, userID uuid.UUID) ([]*models.StudySession, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	out := []*models.StudySession{}
	for _, s := range f.db.sessions {
		if s.UserID == userID && (f.activePlan(s.PlanID) || s.Status == models.SessionStatusCompleted) {
			out = append(out, cloneSession(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledDate.Before(out[j].ScheduledDate) })
	return out, nil
}

func (f Sessions) Complete(_ context.Context, id uuid.UUID, at time.Time, score *float64, notes *string) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.db.sessions[id]
	if !ok {
		return false, nil
	}
	s.Status = models.SessionStatusCompleted
	s.CompletedAt = &at
	if score != nil {
		v := *score
		s.ValidationScore = &v
	}
	if notes != nil {
		s.Notes = *notes
	}
	return true, nil
}

func (f Sessions) Transition(_ context.Context, id uuid.UUID, from []string, to string) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.db.sessions[id]
	if !ok || !contains(from, s.Status) {
		return false, nil
	}
	s.Status = to
	return true, nil
}

func (f Sessions) ListDueForReminder(_ context.Context, from, to time.Time) ([]*models.StudySession, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	out := []*models.StudySession{}
	for _, s := range f.db.sessions {
		if s.Status != models.SessionStatusScheduled || s.ReminderSentAt != nil || !f.activePlan(s.PlanID) {
			continue
		}
		if s.ScheduledDate.Before(from) || !s.ScheduledDate.Before(to) {
			continue
		}
		out = append(out, cloneSession(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledDate.Before(out[j].ScheduledDate) })
	return out, nil
}

func (f Sessions) MarkReminded(_ context.Context, id uuid.UUID, at time.Time) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.db.sessions[id]
	if !ok {
		return pgx.ErrNoRows
	}
	s.ReminderSentAt = &at
	return nil
}

// Publisher captures published events.
type Publisher struct {
	mu     sync.Mutex
	events []models.WSMessage
}

func (p *Publisher) Publish(_ context.Context, _ uuid.UUID, msgType string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, models.WSMessage{Type: msgType, Payload: payload})
}

// Types returns the published message types in order.
func (p *Publisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type StudyLogs struct{ db *DB }

func (f StudyLogs) Create(_ context.Context, l *models.StudyLog) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	l.ID = uuid.New()
	if l.Topics == nil {
		l.Topics = []string{}
	}
	f.db.logs = append(f.db.logs, clone(l))
	return nil
}

func (f StudyLogs) ListByUser(_ context.Context, userID uuid.UUID) ([]*models.StudyLog, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	out := []*models.StudyLog{}
	for _, l := range f.db.logs {
		if l.UserID == userID {
			out = append(out, clone(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LoggedAt.After(out[j].LoggedAt) })
	return out, nil
}

type Jobs struct{ db *DB }

func (f Jobs) Create(_ context.Context, j *models.Job) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	j.ID = uuid.New()
	j.CreatedAt = f.db.tick()
	if j.Status == "" {
		j.Status = models.JobStatusPending
	}
	f.db.jobs[j.ID] = clone(j)
	return nil
}

func (f Jobs) GetByID(_ context.Context, id uuid.UUID) (*models.Job, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	j, ok := f.db.jobs[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return clone(j), nil
}

func (f Jobs) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	j, ok := f.db.jobs[id]
	if !ok {
		return pgx.ErrNoRows
	}
	j.Status = status
	if status == models.JobStatusCompleted || status == models.JobStatusFailed {
		now := f.db.tick()
		j.CompletedAt = &now
	}
	return nil
}

func (f Jobs) UpdateError(_ context.Context, id uuid.UUID, errMsg string, retryCount int) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	j, ok := f.db.jobs[id]
	if !ok {
		return pgx.ErrNoRows
	}
	j.ErrorMessage = &errMsg
	j.RetryCount = retryCount
	return nil
}

func (f Jobs) SetMaterial(_ context.Context, id, materialID uuid.UUID) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	j, ok := f.db.jobs[id]
	if !ok {
		return pgx.ErrNoRows
	}
	j.MaterialID = &materialID
	return nil
}

// Tokens is an in-memory refresh token store.
type Tokens struct {
	mu     sync.Mutex
	tokens map[string]uuid.UUID
}

func (t *Tokens) Save(_ context.Context, token string, userID uuid.UUID, _ time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tokens[token] = userID
	return nil
}

func (t *Tokens) Lookup(_ context.Context, token string) (uuid.UUID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.tokens[token]
	if !ok {
		return uuid.Nil, errors.New("refresh token not found")
	}
	return id, nil
}

func (t *Tokens) Delete(_ context.Context, token string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.tokens, token)
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
