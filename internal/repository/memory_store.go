package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	"FinCast/pkg/util"
)

var (
	_ domrepo.SeriesSource     = (*MemoryStore)(nil)
	_ domrepo.UserDirectory    = (*MemoryStore)(nil)
	_ domrepo.ConfigStore      = (*MemoryStore)(nil)
	_ domrepo.ResultStore      = (*MemoryStore)(nil)
	_ domrepo.PerformanceStore = (*MemoryStore)(nil)
	_ domrepo.AnomalyStore     = (*MemoryStore)(nil)
	_ domrepo.JobStore         = (*MemoryStore)(nil)
)

// MemoryStore keeps every forecast collaborator in process memory.
// Used for local runs and as the fake behind use-case tests.
type MemoryStore struct {
	mu           sync.RWMutex
	now          func() time.Time
	users        map[int64]models.User
	transactions map[int64][]models.Transaction
	configs      map[int64]models.ForecastConfig
	nextConfigID int64
	results      []models.ForecastResult
	performance  []models.ForecastPerformance
	anomalies    []models.ForecastAnomaly
	jobs         map[string]models.ForecastJob
	saveCalls    int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:          time.Now,
		users:        make(map[int64]models.User),
		transactions: make(map[int64][]models.Transaction),
		configs:      make(map[int64]models.ForecastConfig),
		jobs:         make(map[string]models.ForecastJob),
	}
}

// AddUser registers a user.
func (m *MemoryStore) AddUser(u models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

// AddTransactions appends ledger entries for their users.
func (m *MemoryStore) AddTransactions(txs ...models.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range txs {
		t.Date = util.DayStart(t.Date)
		m.transactions[t.UserID] = append(m.transactions[t.UserID], t)
	}
}

// AddDailyTotals seeds one uncategorized transaction per point.
func (m *MemoryStore) AddDailyTotals(userID int64, series []models.DailyTotal) {
	txs := make([]models.Transaction, len(series))
	for i, p := range series {
		txs[i] = models.Transaction{UserID: userID, Date: p.Date, Amount: p.Total}
	}
	m.AddTransactions(txs...)
}

func (m *MemoryStore) FindUser(_ context.Context, userID int64) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[userID]
	if !ok {
		return models.User{}, fmt.Errorf("user %d: %w", userID, models.ErrNotFound)
	}
	return u, nil
}

func (m *MemoryStore) DailyTotals(_ context.Context, userID int64, from, to time.Time, filter models.SeriesFilter) ([]models.DailyTotal, error) {
	from, to = util.DayStart(from), util.DayStart(to)
	m.mu.RLock()
	defer m.mu.RUnlock()

	sums := make(map[time.Time]float64)
	for _, t := range m.transactions[userID] {
		if t.Date.Before(from) || t.Date.After(to) || !filter.Matches(t) {
			continue
		}
		sums[t.Date] += t.Amount
	}
	out := make([]models.DailyTotal, 0, len(sums))
	for d, total := range sums {
		out = append(out, models.DailyTotal{Date: d, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *MemoryStore) Save(_ context.Context, cfg models.ForecastConfig) (models.ForecastConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked(cfg), nil
}

func (m *MemoryStore) saveLocked(cfg models.ForecastConfig) models.ForecastConfig {
	if cfg.ID == 0 {
		m.nextConfigID++
		cfg.ID = m.nextConfigID
	} else if cfg.ID > m.nextConfigID {
		m.nextConfigID = cfg.ID
	}
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = m.now().UTC()
	}
	m.configs[cfg.ID] = cfg
	return cfg
}

func (m *MemoryStore) Find(_ context.Context, id int64) (models.ForecastConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.configs[id]
	if !ok {
		return models.ForecastConfig{}, fmt.Errorf("config %d: %w", id, models.ErrNotFound)
	}
	return cfg, nil
}

// GetOrCreate returns the stored config for cfg.ID, inserting cfg when it has
// no identity or its identity is unknown.
func (m *MemoryStore) GetOrCreate(_ context.Context, cfg models.ForecastConfig) (models.ForecastConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cfg.ID != 0 {
		if stored, ok := m.configs[cfg.ID]; ok {
			return stored, nil
		}
	}
	return m.saveLocked(cfg), nil
}

func (m *MemoryStore) ListByUser(_ context.Context, userID int64) ([]models.ForecastConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.ForecastConfig, 0)
	for _, c := range m.configs {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) SaveAll(_ context.Context, results []models.ForecastResult) ([]models.ForecastResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveCalls++
	now := m.now().UTC()
	out := make([]models.ForecastResult, len(results))
	for i, r := range results {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		out[i] = r
	}
	m.results = append(m.results, out...)
	return out, nil
}

// Results returns a copy of every persisted forecast row in insertion order.
func (m *MemoryStore) Results() []models.ForecastResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.ForecastResult(nil), m.results...)
}

// SaveCalls reports how many times SaveAll ran.
func (m *MemoryStore) SaveCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saveCalls
}

func (m *MemoryStore) SavePerformance(_ context.Context, p models.ForecastPerformance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = m.now().UTC()
	}
	m.performance = append(m.performance, p)
	return nil
}

// Performance returns recorded backtest accuracy rows.
func (m *MemoryStore) Performance() []models.ForecastPerformance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.ForecastPerformance(nil), m.performance...)
}

func (m *MemoryStore) SaveAnomalies(_ context.Context, anomalies []models.ForecastAnomaly) ([]models.ForecastAnomaly, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now().UTC()
	out := make([]models.ForecastAnomaly, len(anomalies))
	for i, a := range anomalies {
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		out[i] = a
	}
	m.anomalies = append(m.anomalies, out...)
	return out, nil
}

// Anomalies returns persisted anomaly rows.
func (m *MemoryStore) Anomalies() []models.ForecastAnomaly {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.ForecastAnomaly(nil), m.anomalies...)
}

func (m *MemoryStore) CreateJob(_ context.Context, job models.ForecastJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; ok {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	now := m.now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	m.jobs[job.ID] = job
	return nil
}

func (m *MemoryStore) UpdateJobStatus(_ context.Context, id string, status models.JobStatus, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return fmt.Errorf("job %s: %w", id, models.ErrNotFound)
	}
	job.Status = status
	job.ErrorMessage = errMsg
	job.UpdatedAt = m.now().UTC()
	m.jobs[id] = job
	return nil
}

func (m *MemoryStore) GetJob(_ context.Context, id string) (models.ForecastJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return models.ForecastJob{}, fmt.Errorf("job %s: %w", id, models.ErrNotFound)
	}
	return job, nil
}
