package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"praise/backend/internal/model"
	"praise/backend/internal/repository"
	pkgerrors "praise/backend/pkg/errors"
)

// ── 共享测试环境 ──

type testEnv struct {
	repo           *repository.Repository
	users          *mockUserRepo
	periods        *mockPeriodRepo
	periodSettings *mockPeriodSettingsRepo
	globals        *mockGlobalSettingsRepo
	praises        *mockPraiseRepo
	quants         *mockQuantificationRepo
	events         *mockEventLogRepo
}

func newTestEnv() *testEnv {
	users := newMockUserRepo()
	praises := newMockPraiseRepo()
	praises.users = users
	env := &testEnv{
		users:          users,
		periods:        newMockPeriodRepo(),
		periodSettings: newMockPeriodSettingsRepo(),
		globals:        newMockGlobalSettingsRepo(),
		praises:        praises,
		quants:         newMockQuantificationRepo(),
		events:         newMockEventLogRepo(),
	}
	env.repo = &repository.Repository{
		User:           env.users,
		Period:         env.periods,
		PeriodSettings: env.periodSettings,
		GlobalSettings: env.globals,
		Praise:         env.praises,
		Quantification: env.quants,
		EventLog:       env.events,
	}
	return env
}

// ── Mock UserRepository ──

type mockUserRepo struct {
	users map[string]*model.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	if user.UserID == "" {
		user.UserID = "user-" + user.Name
	}
	if user.Version == 0 {
		user.Version = 1
	}
	m.users[user.UserID] = user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) List(_ context.Context, offset, limit int) ([]model.User, int64, error) {
	all := m.sorted()
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *mockUserRepo) ListQuantifiers(_ context.Context) ([]model.User, error) {
	var result []model.User
	for _, u := range m.sorted() {
		if u.IsQuantifier {
			result = append(result, u)
		}
	}
	return result, nil
}

func (m *mockUserRepo) Update(_ context.Context, user *model.User) error {
	stored, ok := m.users[user.UserID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if stored.Version != user.Version {
		return pkgerrors.ErrOptimisticLock
	}
	user.Version++
	m.users[user.UserID] = user
	return nil
}

func (m *mockUserRepo) Delete(_ context.Context, id string, _ string) error {
	delete(m.users, id)
	return nil
}

func (m *mockUserRepo) sorted() []model.User {
	var result []model.User
	for _, u := range m.users {
		result = append(result, *u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UserID < result[j].UserID })
	return result
}

// ── Mock PeriodRepository ──

type mockPeriodRepo struct {
	periods map[string]*model.Period
}

func newMockPeriodRepo() *mockPeriodRepo {
	return &mockPeriodRepo{periods: make(map[string]*model.Period)}
}

func (m *mockPeriodRepo) Create(_ context.Context, period *model.Period) error {
	if period.PeriodID == "" {
		period.PeriodID = "period-" + period.Name
	}
	if period.Version == 0 {
		period.Version = 1
	}
	m.periods[period.PeriodID] = period
	return nil
}

func (m *mockPeriodRepo) GetByID(_ context.Context, id string) (*model.Period, error) {
	if p, ok := m.periods[id]; ok {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockPeriodRepo) List(_ context.Context) ([]model.Period, error) {
	return m.sorted(), nil
}

func (m *mockPeriodRepo) GetLatest(_ context.Context) (*model.Period, error) {
	all := m.sorted()
	if len(all) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	latest := all[len(all)-1]
	return &latest, nil
}

func (m *mockPeriodRepo) GetPrevious(_ context.Context, endDate time.Time) (*model.Period, error) {
	var prev *model.Period
	for _, p := range m.sorted() {
		if p.EndDate.Before(endDate) {
			cp := p
			prev = &cp
		}
	}
	if prev == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return prev, nil
}

func (m *mockPeriodRepo) GetNext(_ context.Context, endDate time.Time) (*model.Period, error) {
	for _, p := range m.sorted() {
		if p.EndDate.After(endDate) {
			cp := p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockPeriodRepo) FindByTimestamp(_ context.Context, t time.Time) (*model.Period, error) {
	for _, p := range m.sorted() {
		if p.EndDate.After(t) {
			cp := p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockPeriodRepo) Update(_ context.Context, period *model.Period) error {
	stored, ok := m.periods[period.PeriodID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if stored.Version != period.Version {
		return pkgerrors.ErrOptimisticLock
	}
	period.Version++
	m.periods[period.PeriodID] = period
	return nil
}

func (m *mockPeriodRepo) Delete(_ context.Context, id string, _ string) error {
	delete(m.periods, id)
	return nil
}

func (m *mockPeriodRepo) sorted() []model.Period {
	var result []model.Period
	for _, p := range m.periods {
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].EndDate.Before(result[j].EndDate) })
	return result
}

// ── Mock PeriodSettingsRepository ──

type mockPeriodSettingsRepo struct {
	settings map[string]*model.PeriodSettings
}

func newMockPeriodSettingsRepo() *mockPeriodSettingsRepo {
	return &mockPeriodSettingsRepo{settings: make(map[string]*model.PeriodSettings)}
}

func (m *mockPeriodSettingsRepo) Create(_ context.Context, s *model.PeriodSettings) error {
	m.settings[s.PeriodID] = s
	return nil
}

func (m *mockPeriodSettingsRepo) GetByPeriod(_ context.Context, periodID string) (*model.PeriodSettings, error) {
	if s, ok := m.settings[periodID]; ok {
		return s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockPeriodSettingsRepo) Update(_ context.Context, s *model.PeriodSettings) error {
	m.settings[s.PeriodID] = s
	return nil
}

// ── Mock GlobalSettingsRepository ──

type mockGlobalSettingsRepo struct {
	global *model.GlobalSettings
}

func newMockGlobalSettingsRepo() *mockGlobalSettingsRepo {
	return &mockGlobalSettingsRepo{
		global: &model.GlobalSettings{
			Singleton:            true,
			QuantifiersPerPraise: 3,
			AssignEvenly:         true,
			PraisePerQuantifier:  50,
			DuplicateScorePct:    0.1,
			AllowedScores:        model.IntArray{0, 1, 3, 5, 8, 13, 21, 34, 55, 89, 144},
		},
	}
}

func (m *mockGlobalSettingsRepo) Get(_ context.Context) (*model.GlobalSettings, error) {
	return m.global, nil
}

func (m *mockGlobalSettingsRepo) Update(_ context.Context, s *model.GlobalSettings) error {
	m.global = s
	return nil
}

// ── Mock PraiseRepository ──

type mockPraiseRepo struct {
	praises   map[string]*model.PraiseItem
	idCounter int
	users     *mockUserRepo // 关联填充用，可为 nil
}

func newMockPraiseRepo() *mockPraiseRepo {
	return &mockPraiseRepo{praises: make(map[string]*model.PraiseItem)}
}

func (m *mockPraiseRepo) Create(_ context.Context, praise *model.PraiseItem) error {
	if praise.PraiseID == "" {
		m.idCounter++
		praise.PraiseID = fmt.Sprintf("praise-%03d", m.idCounter)
	}
	if praise.CreatedAt.IsZero() {
		praise.CreatedAt = time.Now()
	}
	m.praises[praise.PraiseID] = praise
	return nil
}

func (m *mockPraiseRepo) GetByID(_ context.Context, id string) (*model.PraiseItem, error) {
	if p, ok := m.praises[id]; ok {
		cp := *p
		m.attachUsers(&cp)
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockPraiseRepo) GetByIDs(_ context.Context, ids []string) ([]model.PraiseItem, error) {
	var result []model.PraiseItem
	for _, id := range ids {
		if p, ok := m.praises[id]; ok {
			cp := *p
			m.attachUsers(&cp)
			result = append(result, cp)
		}
	}
	sortPraises(result)
	return result, nil
}

func (m *mockPraiseRepo) ListByCreatedRange(_ context.Context, from, to time.Time) ([]model.PraiseItem, error) {
	var result []model.PraiseItem
	for _, p := range m.praises {
		if !p.CreatedAt.Before(from) && p.CreatedAt.Before(to) {
			result = append(result, *p)
		}
	}
	sortPraises(result)
	return result, nil
}

func (m *mockPraiseRepo) ListByReceiver(_ context.Context, receiverID string, offset, limit int) ([]model.PraiseItem, int64, error) {
	var filtered []model.PraiseItem
	for _, p := range m.praises {
		if p.ReceiverID == receiverID {
			filtered = append(filtered, *p)
		}
	}
	sortPraises(filtered)
	total := int64(len(filtered))
	if offset >= len(filtered) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[offset:end], total, nil
}

func (m *mockPraiseRepo) CountByCreatedRange(_ context.Context, from, to time.Time) (int64, error) {
	var count int64
	for _, p := range m.praises {
		if !p.CreatedAt.Before(from) && p.CreatedAt.Before(to) {
			count++
		}
	}
	return count, nil
}

func (m *mockPraiseRepo) UpdateScore(_ context.Context, praiseID string, score float64) error {
	p, ok := m.praises[praiseID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.ScoreRealized = score
	return nil
}

func (m *mockPraiseRepo) attachUsers(p *model.PraiseItem) {
	if m.users == nil {
		return
	}
	if u, ok := m.users.users[p.GiverID]; ok {
		p.Giver = u
	}
	if u, ok := m.users.users[p.ReceiverID]; ok {
		p.Receiver = u
	}
}

func sortPraises(praises []model.PraiseItem) {
	sort.Slice(praises, func(i, j int) bool {
		if !praises[i].CreatedAt.Equal(praises[j].CreatedAt) {
			return praises[i].CreatedAt.Before(praises[j].CreatedAt)
		}
		return praises[i].PraiseID < praises[j].PraiseID
	})
}

// ── Mock QuantificationRepository ──

type mockQuantificationRepo struct {
	quants    map[string]*model.Quantification
	idCounter int
	// conflictOnce 为 true 时下一次 Update 返回乐观锁冲突，模拟并发写
	conflictOnce bool
}

func newMockQuantificationRepo() *mockQuantificationRepo {
	return &mockQuantificationRepo{quants: make(map[string]*model.Quantification)}
}

func (m *mockQuantificationRepo) BatchCreate(_ context.Context, quants []model.Quantification) error {
	for i := range quants {
		if quants[i].QuantificationID == "" {
			m.idCounter++
			quants[i].QuantificationID = fmt.Sprintf("quant-%03d", m.idCounter)
		}
		if quants[i].Version == 0 {
			quants[i].Version = 1
		}
		cp := quants[i]
		m.quants[cp.QuantificationID] = &cp
	}
	return nil
}

func (m *mockQuantificationRepo) GetByID(_ context.Context, id string) (*model.Quantification, error) {
	if q, ok := m.quants[id]; ok {
		cp := *q
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockQuantificationRepo) GetByPraiseAndQuantifier(_ context.Context, praiseID, quantifierID string) (*model.Quantification, error) {
	for _, q := range m.quants {
		if q.PraiseID == praiseID && q.QuantifierID == quantifierID {
			cp := *q
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockQuantificationRepo) ListByPraise(_ context.Context, praiseID string) ([]model.Quantification, error) {
	var result []model.Quantification
	for _, q := range m.quants {
		if q.PraiseID == praiseID {
			result = append(result, *q)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].QuantifierID < result[j].QuantifierID })
	return result, nil
}

func (m *mockQuantificationRepo) ListByPraiseIDs(_ context.Context, praiseIDs []string) ([]model.Quantification, error) {
	wanted := make(map[string]bool, len(praiseIDs))
	for _, id := range praiseIDs {
		wanted[id] = true
	}
	var result []model.Quantification
	for _, q := range m.quants {
		if wanted[q.PraiseID] {
			result = append(result, *q)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].PraiseID != result[j].PraiseID {
			return result[i].PraiseID < result[j].PraiseID
		}
		return result[i].QuantifierID < result[j].QuantifierID
	})
	return result, nil
}

func (m *mockQuantificationRepo) ListByQuantifier(_ context.Context, quantifierID string, praiseIDs []string) ([]model.Quantification, error) {
	wanted := make(map[string]bool, len(praiseIDs))
	for _, id := range praiseIDs {
		wanted[id] = true
	}
	var result []model.Quantification
	for _, q := range m.quants {
		if q.QuantifierID != quantifierID {
			continue
		}
		if len(praiseIDs) > 0 && !wanted[q.PraiseID] {
			continue
		}
		result = append(result, *q)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].PraiseID < result[j].PraiseID })
	return result, nil
}

func (m *mockQuantificationRepo) ListByDuplicateTarget(_ context.Context, praiseID string) ([]model.Quantification, error) {
	var result []model.Quantification
	for _, q := range m.quants {
		if q.DuplicatePraiseID != nil && *q.DuplicatePraiseID == praiseID {
			result = append(result, *q)
		}
	}
	return result, nil
}

func (m *mockQuantificationRepo) Update(_ context.Context, quant *model.Quantification) error {
	if m.conflictOnce {
		m.conflictOnce = false
		return pkgerrors.ErrOptimisticLock
	}
	stored, ok := m.quants[quant.QuantificationID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if stored.Version != quant.Version {
		return pkgerrors.ErrOptimisticLock
	}
	quant.Version++
	quant.UpdatedAt = time.Now()
	cp := *quant
	m.quants[cp.QuantificationID] = &cp
	return nil
}

func (m *mockQuantificationRepo) DeleteByPraiseIDs(_ context.Context, praiseIDs []string) error {
	wanted := make(map[string]bool, len(praiseIDs))
	for _, id := range praiseIDs {
		wanted[id] = true
	}
	for id, q := range m.quants {
		if wanted[q.PraiseID] {
			delete(m.quants, id)
		}
	}
	return nil
}

func (m *mockQuantificationRepo) DeleteByQuantifier(_ context.Context, quantifierID string, praiseIDs []string) error {
	wanted := make(map[string]bool, len(praiseIDs))
	for _, id := range praiseIDs {
		wanted[id] = true
	}
	for id, q := range m.quants {
		if q.QuantifierID == quantifierID && wanted[q.PraiseID] {
			delete(m.quants, id)
		}
	}
	return nil
}

// ── Mock EventLogRepository ──

type mockEventLogRepo struct {
	events []model.EventLog
}

func newMockEventLogRepo() *mockEventLogRepo {
	return &mockEventLogRepo{}
}

func (m *mockEventLogRepo) Create(_ context.Context, event *model.EventLog) error {
	event.CreatedAt = time.Now()
	m.events = append(m.events, *event)
	return nil
}

func (m *mockEventLogRepo) ListByPeriod(_ context.Context, periodID string, offset, limit int) ([]model.EventLog, int64, error) {
	var filtered []model.EventLog
	for _, e := range m.events {
		if e.PeriodID != nil && *e.PeriodID == periodID {
			filtered = append(filtered, e)
		}
	}
	total := int64(len(filtered))
	if offset >= len(filtered) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[offset:end], total, nil
}

func (m *mockEventLogRepo) kinds() []string {
	result := make([]string, 0, len(m.events))
	for _, e := range m.events {
		result = append(result, e.Kind)
	}
	return result
}
