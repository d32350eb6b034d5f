// Package testutil provides in-memory repository fakes for engine and
// handler tests. The fakes run transition mutators directly against
// their stored copies and record history entries, mirroring the
// contract of the PostgreSQL implementations without a database.
package testutil

import (
	"sync"
	"time"

	"github.com/uptownfs/dealflow/internal/domain"
	"github.com/uptownfs/dealflow/internal/notify"
)

// MockTx is a no-op transaction handle.
type MockTx struct {
	Committed  bool
	RolledBack bool
}

// Commit marks the transaction committed
func (t *MockTx) Commit() error {
	t.Committed = true
	return nil
}

// Rollback marks the transaction rolled back unless it committed first
func (t *MockTx) Rollback() error {
	if !t.Committed {
		t.RolledBack = true
	}
	return nil
}

// MockTransactor is a mock implementation of domain.Transactor
type MockTransactor struct {
	Txs []*MockTx
}

// Begin starts a new mock transaction
func (m *MockTransactor) Begin() (domain.Tx, error) {
	tx := &MockTx{}
	m.Txs = append(m.Txs, tx)
	return tx, nil
}

// CaptureSink records published events for assertions.
type CaptureSink struct {
	mu     sync.Mutex
	Events []notify.Event
}

// Publish records the event
func (s *CaptureSink) Publish(event notify.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, event)
}

// Types returns the recorded event types in order.
func (s *CaptureSink) Types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := make([]string, 0, len(s.Events))
	for _, e := range s.Events {
		types = append(types, e.Type)
	}
	return types
}

// HistoryLog collects history entries written by the fakes.
type HistoryLog struct {
	Entries []*domain.HistoryEntry
}

// Append records one entry
func (l *HistoryLog) Append(entry *domain.HistoryEntry) {
	if entry != nil {
		l.Entries = append(l.Entries, entry)
	}
}

// ChangeTypes returns the ordered change types for one entity.
func (l *HistoryLog) ChangeTypes(kind domain.EntityKind, id int64) []string {
	var types []string
	for _, e := range l.Entries {
		if e.EntityKind == kind && e.EntityID == id {
			types = append(types, e.ChangeType)
		}
	}
	return types
}

// MockDealRepository is a mock implementation of domain.DealRepository
type MockDealRepository struct {
	Deals   map[int64]*domain.Deal
	History *HistoryLog
	NextID  int64
}

// NewMockDealRepository creates a new MockDealRepository
func NewMockDealRepository() *MockDealRepository {
	return &MockDealRepository{Deals: make(map[int64]*domain.Deal), History: &HistoryLog{}, NextID: 1}
}

// Create creates a new deal
func (m *MockDealRepository) Create(d *domain.Deal) (*domain.Deal, error) {
	d.ID = m.NextID
	m.NextID++
	copied := *d
	m.Deals[d.ID] = &copied
	return d, nil
}

// GetByID retrieves a deal by ID
func (m *MockDealRepository) GetByID(id int64) (*domain.Deal, error) {
	if d, ok := m.Deals[id]; ok {
		copied := *d
		return &copied, nil
	}
	return nil, domain.ErrNotFound
}

// ExecuteTransition runs mutate against the stored deal
func (m *MockDealRepository) ExecuteTransition(id int64, mutate func(*domain.Deal) (*domain.Deal, *domain.HistoryEntry, error)) (*domain.Deal, error) {
	d, ok := m.Deals[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *d
	updated, entry, err := mutate(&copied)
	if err != nil {
		return nil, err
	}
	updated.Version++
	stored := *updated
	m.Deals[id] = &stored
	m.History.Append(entry)
	return updated, nil
}

// MockPaymentPlanRepository is a mock implementation of
// domain.PaymentPlanRepository
type MockPaymentPlanRepository struct {
	Plans   map[int64]*domain.PaymentPlan
	History *HistoryLog
	NextID  int64
}

// NewMockPaymentPlanRepository creates a new MockPaymentPlanRepository
func NewMockPaymentPlanRepository() *MockPaymentPlanRepository {
	return &MockPaymentPlanRepository{Plans: make(map[int64]*domain.PaymentPlan), History: &HistoryLog{}, NextID: 1}
}

// Create creates a new payment plan
func (m *MockPaymentPlanRepository) Create(p *domain.PaymentPlan) (*domain.PaymentPlan, error) {
	p.ID = m.NextID
	m.NextID++
	copied := *p
	m.Plans[p.ID] = &copied
	return p, nil
}

// GetByID retrieves a plan by ID
func (m *MockPaymentPlanRepository) GetByID(id int64) (*domain.PaymentPlan, error) {
	if p, ok := m.Plans[id]; ok {
		copied := *p
		return &copied, nil
	}
	return nil, domain.ErrNotFound
}

// ListByDeal returns every plan of a deal
func (m *MockPaymentPlanRepository) ListByDeal(dealID int64) ([]*domain.PaymentPlan, error) {
	var plans []*domain.PaymentPlan
	for _, p := range m.Plans {
		if p.DealID == dealID {
			copied := *p
			plans = append(plans, &copied)
		}
	}
	return plans, nil
}

// ListByQueue returns the plans in one approval stage
func (m *MockPaymentPlanRepository) ListByQueue(status domain.PaymentPlanStatus) ([]*domain.PaymentPlan, error) {
	var plans []*domain.PaymentPlan
	for _, p := range m.Plans {
		if p.Status == status {
			copied := *p
			plans = append(plans, &copied)
		}
	}
	return plans, nil
}

// ExecuteTransition runs mutate against the stored plan, clearing
// sibling Accepted flags when the plan became accepted
func (m *MockPaymentPlanRepository) ExecuteTransition(id int64, mutate func(*domain.PaymentPlan) (*domain.PaymentPlan, *domain.HistoryEntry, error)) (*domain.PaymentPlan, error) {
	p, ok := m.Plans[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *p
	wasAccepted := copied.Accepted
	updated, entry, err := mutate(&copied)
	if err != nil {
		return nil, err
	}
	if updated.Accepted && !wasAccepted {
		for _, sibling := range m.Plans {
			if sibling.DealID == updated.DealID && sibling.ID != updated.ID {
				sibling.Accepted = false
			}
		}
	}
	stored := *updated
	m.Plans[id] = &stored
	m.History.Append(entry)
	return updated, nil
}

// MockUnitRepository is a mock implementation of domain.UnitRepository
type MockUnitRepository struct {
	Units map[int64]*domain.Unit
}

// NewMockUnitRepository creates a new MockUnitRepository
func NewMockUnitRepository() *MockUnitRepository {
	return &MockUnitRepository{Units: make(map[int64]*domain.Unit)}
}

// GetByID retrieves a unit by ID
func (m *MockUnitRepository) GetByID(id int64) (*domain.Unit, error) {
	if u, ok := m.Units[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, domain.ErrNotFound
}

// GetByCode retrieves a unit by code
func (m *MockUnitRepository) GetByCode(code string) (*domain.Unit, error) {
	for _, u := range m.Units {
		if u.Code == code {
			copied := *u
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

// ExecuteTransition runs mutate against the stored unit
func (m *MockUnitRepository) ExecuteTransition(id int64, mutate func(*domain.Unit) (*domain.Unit, error)) (*domain.Unit, error) {
	u, ok := m.Units[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *u
	updated, err := mutate(&copied)
	if err != nil {
		return nil, err
	}
	updated.Version++
	stored := *updated
	m.Units[id] = &stored
	return updated, nil
}

// ExecuteTransitionTx ignores the transaction handle and delegates
func (m *MockUnitRepository) ExecuteTransitionTx(tx domain.Tx, id int64, mutate func(*domain.Unit) (*domain.Unit, error)) (*domain.Unit, error) {
	return m.ExecuteTransition(id, mutate)
}

// MockBlockRepository is a mock implementation of domain.BlockRepository
type MockBlockRepository struct {
	Blocks  map[int64]*domain.Block
	History *HistoryLog
	NextID  int64
}

// NewMockBlockRepository creates a new MockBlockRepository
func NewMockBlockRepository() *MockBlockRepository {
	return &MockBlockRepository{Blocks: make(map[int64]*domain.Block), History: &HistoryLog{}, NextID: 1}
}

// Create creates a new block
func (m *MockBlockRepository) Create(b *domain.Block) (*domain.Block, error) {
	b.ID = m.NextID
	m.NextID++
	copied := *b
	m.Blocks[b.ID] = &copied
	return b, nil
}

// GetByID retrieves a block by ID
func (m *MockBlockRepository) GetByID(id int64) (*domain.Block, error) {
	if b, ok := m.Blocks[id]; ok {
		copied := *b
		return &copied, nil
	}
	return nil, domain.ErrNotFound
}

// ActiveForUnit returns the approved unexpired block for a unit
func (m *MockBlockRepository) ActiveForUnit(unitID int64) (*domain.Block, error) {
	for _, b := range m.Blocks {
		if b.UnitID == unitID && b.IsActive(time.Now()) {
			copied := *b
			return &copied, nil
		}
	}
	return nil, nil
}

// ExpiredApproved returns approved blocks past their hold
func (m *MockBlockRepository) ExpiredApproved(now time.Time, limit int) ([]*domain.Block, error) {
	var blocks []*domain.Block
	for _, b := range m.Blocks {
		if b.Status == domain.BlockStatusApproved && b.BlockedUntil.Before(now) {
			copied := *b
			blocks = append(blocks, &copied)
		}
		if len(blocks) == limit {
			break
		}
	}
	return blocks, nil
}

// DueForReminder returns approved blocks past their reminder mark
func (m *MockBlockRepository) DueForReminder(now time.Time, limit int) ([]*domain.Block, error) {
	var blocks []*domain.Block
	for _, b := range m.Blocks {
		if b.Status == domain.BlockStatusApproved && b.NextNotifyAt != nil && !b.NextNotifyAt.After(now) {
			copied := *b
			blocks = append(blocks, &copied)
		}
		if len(blocks) == limit {
			break
		}
	}
	return blocks, nil
}

// ExecuteTransition runs mutate against the stored block
func (m *MockBlockRepository) ExecuteTransition(id int64, mutate func(*domain.Block) (*domain.Block, *domain.HistoryEntry, error)) (*domain.Block, error) {
	b, ok := m.Blocks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *b
	updated, entry, err := mutate(&copied)
	if err != nil {
		return nil, err
	}
	updated.Version++
	stored := *updated
	m.Blocks[id] = &stored
	m.History.Append(entry)
	return updated, nil
}

// ExecuteTransitionTx ignores the transaction handle and delegates
func (m *MockBlockRepository) ExecuteTransitionTx(tx domain.Tx, id int64, mutate func(*domain.Block) (*domain.Block, *domain.HistoryEntry, error)) (*domain.Block, error) {
	return m.ExecuteTransition(id, mutate)
}

// MockReservationFormRepository is a mock implementation of
// domain.ReservationFormRepository
type MockReservationFormRepository struct {
	Forms   map[int64]*domain.ReservationForm
	History *HistoryLog
	NextID  int64
}

// NewMockReservationFormRepository creates a new MockReservationFormRepository
func NewMockReservationFormRepository() *MockReservationFormRepository {
	return &MockReservationFormRepository{Forms: make(map[int64]*domain.ReservationForm), History: &HistoryLog{}, NextID: 1}
}

// Create creates a new reservation form
func (m *MockReservationFormRepository) Create(rf *domain.ReservationForm) (*domain.ReservationForm, error) {
	rf.ID = m.NextID
	m.NextID++
	copied := *rf
	m.Forms[rf.ID] = &copied
	return rf, nil
}

// GetByID retrieves a form by ID
func (m *MockReservationFormRepository) GetByID(id int64) (*domain.ReservationForm, error) {
	if rf, ok := m.Forms[id]; ok {
		copied := *rf
		return &copied, nil
	}
	return nil, domain.ErrNotFound
}

// ExistingForPlan returns any pending or approved form for a plan
func (m *MockReservationFormRepository) ExistingForPlan(planID int64) (*domain.ReservationForm, error) {
	for _, rf := range m.Forms {
		if rf.PaymentPlanID == planID &&
			(rf.Status == domain.ReservationPendingApproval || rf.Status == domain.ReservationApproved) {
			copied := *rf
			return &copied, nil
		}
	}
	return nil, nil
}

// ExecuteTransition runs mutate against the stored form
func (m *MockReservationFormRepository) ExecuteTransition(id int64, mutate func(*domain.ReservationForm) (*domain.ReservationForm, *domain.HistoryEntry, error)) (*domain.ReservationForm, error) {
	rf, ok := m.Forms[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *rf
	updated, entry, err := mutate(&copied)
	if err != nil {
		return nil, err
	}
	updated.Version++
	stored := *updated
	m.Forms[id] = &stored
	m.History.Append(entry)
	return updated, nil
}

// ExecuteTransitionTx ignores the transaction handle and delegates
func (m *MockReservationFormRepository) ExecuteTransitionTx(tx domain.Tx, id int64, mutate func(*domain.ReservationForm) (*domain.ReservationForm, *domain.HistoryEntry, error)) (*domain.ReservationForm, error) {
	return m.ExecuteTransition(id, mutate)
}

// MockContractRepository is a mock implementation of
// domain.ContractRepository
type MockContractRepository struct {
	Contracts map[int64]*domain.Contract
	History   *HistoryLog
	NextID    int64
}

// NewMockContractRepository creates a new MockContractRepository
func NewMockContractRepository() *MockContractRepository {
	return &MockContractRepository{Contracts: make(map[int64]*domain.Contract), History: &HistoryLog{}, NextID: 1}
}

// Create creates a new contract with its opening history entry
func (m *MockContractRepository) Create(c *domain.Contract) (*domain.Contract, error) {
	c.ID = m.NextID
	m.NextID++
	copied := *c
	m.Contracts[c.ID] = &copied
	m.History.Append(&domain.HistoryEntry{
		EntityKind: domain.EntityContract,
		EntityID:   c.ID,
		ChangeType: string(domain.ChangeCreate),
		ChangedBy:  c.CreatedBy,
		At:         time.Now().UTC(),
	})
	return c, nil
}

// GetByID retrieves a contract by ID
func (m *MockContractRepository) GetByID(id int64) (*domain.Contract, error) {
	if c, ok := m.Contracts[id]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, domain.ErrNotFound
}

// ExecuteTransition runs mutate against the stored contract
func (m *MockContractRepository) ExecuteTransition(id int64, mutate func(*domain.Contract) (*domain.Contract, *domain.HistoryEntry, error)) (*domain.Contract, error) {
	c, ok := m.Contracts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *c
	updated, entry, err := mutate(&copied)
	if err != nil {
		return nil, err
	}
	updated.Version++
	stored := *updated
	m.Contracts[id] = &stored
	m.History.Append(entry)
	return updated, nil
}

// MockPolicyRepository is a mock implementation of
// domain.PolicyRepository
type MockPolicyRepository struct {
	Config *domain.PolicyConfig
	Err    error
}

// ActiveGlobal returns the configured policy
func (m *MockPolicyRepository) ActiveGlobal() (*domain.PolicyConfig, error) {
	return m.Config, m.Err
}
