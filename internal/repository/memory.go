package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/domain"
	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/policy"
)

// MemoryStore 是 Store 的内存实现，行为与 postgres 实现保持一致，主要用于测试和本地调试
type MemoryStore struct {
	mu        sync.RWMutex
	accounts  map[uuid.UUID]*domain.Account
	emails    map[string]uuid.UUID
	employees map[string]*domain.Employee
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:  make(map[uuid.UUID]*domain.Account),
		emails:    make(map[string]uuid.UUID),
		employees: make(map[string]*domain.Employee),
	}
}

func (m *MemoryStore) Ping(context.Context) error {
	return nil
}

func cloneAccount(a *domain.Account) *domain.Account {
	c := *a
	if a.CreatedBy != nil {
		id := *a.CreatedBy
		c.CreatedBy = &id
	}
	return &c
}

func cloneEmployee(e *domain.Employee) *domain.Employee {
	c := *e
	if e.CheckedBy != nil {
		id := *e.CheckedBy
		c.CheckedBy = &id
	}
	if e.CheckedByEmail != nil {
		email := *e.CheckedByEmail
		c.CheckedByEmail = &email
	}
	return &c
}

func (m *MemoryStore) GetAccountByID(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.accounts[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return cloneAccount(a), nil
}

func (m *MemoryStore) GetAccountByEmail(_ context.Context, email string) (*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.emails[email]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return cloneAccount(m.accounts[id]), nil
}

func (m *MemoryStore) CreateAccount(_ context.Context, account *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.emails[account.Email]; ok {
		return domain.ErrDuplicateEmail
	}
	if account.Username == "" {
		account.Username = account.Email
	}
	account.UpdatedAt = time.Now()
	account.Version = 1

	m.accounts[account.ID] = cloneAccount(account)
	m.emails[account.Email] = account.ID
	return nil
}

func (m *MemoryStore) UpdateAccount(_ context.Context, account *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.accounts[account.ID]
	if !ok || stored.Version != account.Version {
		return ErrEditConflict
	}
	if account.Username == "" {
		account.Username = account.Email
	}

	stored.Username = account.Username
	stored.PasswordHash = account.PasswordHash
	stored.LastLogin = account.LastLogin
	stored.IsActive = account.IsActive
	stored.UpdatedAt = time.Now()
	stored.Version++

	account.UpdatedAt = stored.UpdatedAt
	account.Version = stored.Version
	return nil
}

func (m *MemoryStore) ListMakersCreatedBy(_ context.Context, checkerID uuid.UUID) ([]*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	makers := make([]*domain.Account, 0)
	for _, a := range m.accounts {
		if a.IsMaker && a.IsCreatedBy(checkerID) {
			makers = append(makers, cloneAccount(a))
		}
	}
	sort.Slice(makers, func(i, j int) bool {
		return makers[i].DateJoined.Before(makers[j].DateJoined)
	})
	return makers, nil
}

func (m *MemoryStore) CreateEmployee(_ context.Context, employee *domain.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	uploader, ok := m.accounts[employee.UploadedBy]
	if !ok {
		return ErrRecordNotFound
	}
	employee.UploadedByEmail = uploader.Email
	employee.Version = 1

	m.employees[employee.ID] = cloneEmployee(employee)
	return nil
}

func (m *MemoryStore) GetEmployeeByID(_ context.Context, id string) (*domain.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.employees[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return cloneEmployee(e), nil
}

func (m *MemoryStore) ListEmployees(_ context.Context, scope policy.EmployeeScope) ([]*domain.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	employees := []*domain.Employee{}
	for _, e := range m.employees {
		if scope.Includes(m.accounts[e.UploadedBy]) {
			employees = append(employees, cloneEmployee(e))
		}
	}
	sort.Slice(employees, func(i, j int) bool {
		return employees[i].CreatedAt.After(employees[j].CreatedAt)
	})
	return employees, nil
}

func (m *MemoryStore) UpdateEmployee(_ context.Context, employee *domain.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.employees[employee.ID]
	if !ok || stored.Version != employee.Version {
		return ErrEditConflict
	}

	employee.UpdatedAt = time.Now()
	employee.Version = stored.Version + 1
	if employee.CheckedBy != nil {
		if checker, ok := m.accounts[*employee.CheckedBy]; ok {
			email := checker.Email
			employee.CheckedByEmail = &email
		}
	}

	m.employees[employee.ID] = cloneEmployee(employee)
	return nil
}
