// Package memstore provides an in-memory implementation of the banking store
// and its supporting repositories. It backs tests and local development
// without PostgreSQL while keeping the same optimistic-concurrency and
// uniqueness semantics as the SQL store.
package memstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vertex-bank/banking_service/internal/domain/entities"
	apperrors "github.com/vertex-bank/banking_service/internal/domain/errors"
	"github.com/vertex-bank/banking_service/internal/domain/repositories"
)

// MemStore holds all banking state behind a single lock. Transactions buffer
// their writes and re-validate version and uniqueness checks at commit, so
// concurrent goroutines observe the same conflict behavior the SQL store
// produces.
type MemStore struct {
	mu sync.RWMutex

	accounts       map[uuid.UUID]*entities.Account
	accountNumbers map[string]uuid.UUID
	entries        []*entities.JournalEntry
	transfers      map[uuid.UUID]*entities.Transfer
	transferKeys   map[string]uuid.UUID
	records        map[string]*entities.IdempotencyRecord
	users          map[uuid.UUID]*entities.User
	nationalIDs    map[string]uuid.UUID
}

// New creates an empty in-memory store
func New() *MemStore {
	return &MemStore{
		accounts:       make(map[uuid.UUID]*entities.Account),
		accountNumbers: make(map[string]uuid.UUID),
		transfers:      make(map[uuid.UUID]*entities.Transfer),
		transferKeys:   make(map[string]uuid.UUID),
		records:        make(map[string]*entities.IdempotencyRecord),
		users:          make(map[uuid.UUID]*entities.User),
		nationalIDs:    make(map[string]uuid.UUID),
	}
}

var (
	_ repositories.Store                 = (*MemStore)(nil)
	_ repositories.AccountRepository     = (*AccountRepository)(nil)
	_ repositories.JournalRepository     = (*JournalRepository)(nil)
	_ repositories.UserRepository        = (*UserRepository)(nil)
	_ repositories.IdempotencyRepository = (*IdempotencyRepository)(nil)
)

func recordKey(operationKey string, userID uuid.UUID) string {
	return operationKey + "|" + userID.String()
}

func copyAccount(a *entities.Account) *entities.Account {
	cp := *a
	return &cp
}

func copyEntry(e *entities.JournalEntry) *entities.JournalEntry {
	cp := *e
	if e.TransferID != nil {
		id := *e.TransferID
		cp.TransferID = &id
	}
	return &cp
}

func copyTransfer(t *entities.Transfer) *entities.Transfer {
	cp := *t
	if t.FailureReason != nil {
		reason := *t.FailureReason
		cp.FailureReason = &reason
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		cp.CompletedAt = &at
	}
	return &cp
}

func copyRecord(r *entities.IdempotencyRecord) *entities.IdempotencyRecord {
	cp := *r
	if r.ResponseBody != nil {
		cp.ResponseBody = append(json.RawMessage(nil), r.ResponseBody...)
	}
	return &cp
}

func copyUser(u *entities.User) *entities.User {
	cp := *u
	return &cp
}

// SeedUser stores a user record, for tests and local fixtures. User
// provisioning otherwise lives outside this module.
func (s *MemStore) SeedUser(user *entities.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := copyUser(user)
	s.users[cp.ID] = cp
	if cp.NationalID != "" {
		s.nationalIDs[cp.NationalID] = cp.ID
	}
}

// --- Store (autocommit) ---

// WithinTx runs fn against a buffered transaction and commits on success.
// Version checks run both when the balance write is buffered and again at
// commit, so a transaction that raced another one fails with
// errors.ErrVersionConflict instead of clobbering the later write.
func (s *MemStore) WithinTx(ctx context.Context, fn func(tx repositories.OperationTx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	tx := &memTx{
		store:         s,
		accountWrites: make(map[uuid.UUID]*accountWrite),
		idemWrites:    make(map[string]*entities.IdempotencyRecord),
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit()
}

func (s *MemStore) GetAccountByID(ctx context.Context, id uuid.UUID) (*entities.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if a, ok := s.accounts[id]; ok {
		return copyAccount(a), nil
	}
	return nil, nil
}

func (s *MemStore) GetAccountByNumber(ctx context.Context, number string) (*entities.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, ok := s.accountNumbers[number]; ok {
		return copyAccount(s.accounts[id]), nil
	}
	return nil, nil
}

func (s *MemStore) CreateJournalEntry(ctx context.Context, entry *entities.JournalEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("validate journal entry: %w", err)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, copyEntry(entry))
	return nil
}

func (s *MemStore) CreateTransfer(ctx context.Context, transfer *entities.Transfer) error {
	if err := transfer.Validate(); err != nil {
		return fmt.Errorf("validate transfer: %w", err)
	}
	if transfer.CreatedAt.IsZero() {
		transfer.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.transferKeys[transfer.OperationKey]; taken {
		return fmt.Errorf("transfer with operation key already exists: %w", apperrors.ErrAlreadyExists)
	}
	cp := copyTransfer(transfer)
	s.transfers[cp.ID] = cp
	s.transferKeys[cp.OperationKey] = cp.ID
	return nil
}

func (s *MemStore) GetTransferByOperationKey(ctx context.Context, key string) (*entities.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, ok := s.transferKeys[key]; ok {
		return copyTransfer(s.transfers[id]), nil
	}
	return nil, nil
}

func (s *MemStore) UpdateAccountBalance(ctx context.Context, account *entities.Account, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.accounts[account.ID]
	if !ok || current.Version != expectedVersion {
		return fmt.Errorf("account %s at version %d: %w", account.ID, expectedVersion, apperrors.ErrVersionConflict)
	}

	now := time.Now()
	updated := copyAccount(current)
	updated.Balance = account.Balance
	updated.Version = expectedVersion + 1
	updated.UpdatedAt = now
	s.accounts[account.ID] = updated

	account.Version = updated.Version
	account.UpdatedAt = now
	return nil
}

func (s *MemStore) SumCompletedEntries(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := decimal.Zero
	var count int64
	for _, e := range s.entries {
		if e.AccountID == accountID && e.Status == entities.JournalEntryStatusCompleted {
			sum = sum.Add(e.Amount)
			count++
		}
	}
	return sum, count, nil
}

func (s *MemStore) GetIdempotencyRecord(ctx context.Context, key string, userID uuid.UUID) (*entities.IdempotencyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r, ok := s.records[recordKey(key, userID)]; ok {
		return copyRecord(r), nil
	}
	return nil, nil
}

func (s *MemStore) SaveIdempotencyRecord(ctx context.Context, record *entities.IdempotencyRecord) error {
	now := time.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()

	s.upsertRecordLocked(copyRecord(record))
	return nil
}

// upsert keeps the original row identity, matching the SQL ON CONFLICT
// clause which overwrites everything except id and created_at.
func (s *MemStore) upsertRecordLocked(record *entities.IdempotencyRecord) {
	key := recordKey(record.OperationKey, record.UserID)
	if existing, ok := s.records[key]; ok {
		updated := copyRecord(existing)
		updated.RequestPath = record.RequestPath
		updated.Completed = record.Completed
		updated.ResponseBody = record.ResponseBody
		updated.UpdatedAt = record.UpdatedAt
		updated.ExpiresAt = record.ExpiresAt
		s.records[key] = updated
		return
	}
	s.records[key] = record
}

// --- transaction ---

type accountWrite struct {
	balance         decimal.Decimal
	version         int64
	updatedAt       time.Time
	expectedVersion int64
}

type memTx struct {
	store *MemStore

	accountWrites map[uuid.UUID]*accountWrite
	newEntries    []*entities.JournalEntry
	newTransfers  []*entities.Transfer
	idemWrites    map[string]*entities.IdempotencyRecord
}

func (t *memTx) GetAccountByID(ctx context.Context, id uuid.UUID) (*entities.Account, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	return t.readAccountLocked(id), nil
}

func (t *memTx) GetAccountByNumber(ctx context.Context, number string) (*entities.Account, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	id, ok := t.store.accountNumbers[number]
	if !ok {
		return nil, nil
	}
	return t.readAccountLocked(id), nil
}

// readAccountLocked overlays this transaction's buffered balance write on
// the committed row
func (t *memTx) readAccountLocked(id uuid.UUID) *entities.Account {
	a, ok := t.store.accounts[id]
	if !ok {
		return nil
	}
	cp := copyAccount(a)
	if w, buffered := t.accountWrites[id]; buffered {
		cp.Balance = w.balance
		cp.Version = w.version
		cp.UpdatedAt = w.updatedAt
	}
	return cp
}

func (t *memTx) CreateJournalEntry(ctx context.Context, entry *entities.JournalEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("validate journal entry: %w", err)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	t.newEntries = append(t.newEntries, copyEntry(entry))
	return nil
}

func (t *memTx) CreateTransfer(ctx context.Context, transfer *entities.Transfer) error {
	if err := transfer.Validate(); err != nil {
		return fmt.Errorf("validate transfer: %w", err)
	}
	if transfer.CreatedAt.IsZero() {
		transfer.CreatedAt = time.Now()
	}

	t.store.mu.RLock()
	_, taken := t.store.transferKeys[transfer.OperationKey]
	t.store.mu.RUnlock()
	if !taken {
		for _, buffered := range t.newTransfers {
			if buffered.OperationKey == transfer.OperationKey {
				taken = true
				break
			}
		}
	}
	if taken {
		return fmt.Errorf("transfer with operation key already exists: %w", apperrors.ErrAlreadyExists)
	}

	t.newTransfers = append(t.newTransfers, copyTransfer(transfer))
	return nil
}

func (t *memTx) GetTransferByOperationKey(ctx context.Context, key string) (*entities.Transfer, error) {
	for _, buffered := range t.newTransfers {
		if buffered.OperationKey == key {
			return copyTransfer(buffered), nil
		}
	}

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	if id, ok := t.store.transferKeys[key]; ok {
		return copyTransfer(t.store.transfers[id]), nil
	}
	return nil, nil
}

func (t *memTx) UpdateAccountBalance(ctx context.Context, account *entities.Account, expectedVersion int64) error {
	t.store.mu.RLock()
	current, exists := t.store.accounts[account.ID]
	var currentVersion int64
	if exists {
		currentVersion = current.Version
	}
	t.store.mu.RUnlock()

	firstExpected := expectedVersion
	if w, buffered := t.accountWrites[account.ID]; buffered {
		currentVersion = w.version
		firstExpected = w.expectedVersion
		exists = true
	}
	if !exists || currentVersion != expectedVersion {
		return fmt.Errorf("account %s at version %d: %w", account.ID, expectedVersion, apperrors.ErrVersionConflict)
	}

	now := time.Now()
	account.Version = expectedVersion + 1
	account.UpdatedAt = now
	t.accountWrites[account.ID] = &accountWrite{
		balance:         account.Balance,
		version:         account.Version,
		updatedAt:       now,
		expectedVersion: firstExpected,
	}
	return nil
}

func (t *memTx) SumCompletedEntries(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, int64, error) {
	sum, count, err := t.store.SumCompletedEntries(ctx, accountID)
	if err != nil {
		return decimal.Zero, 0, err
	}
	for _, e := range t.newEntries {
		if e.AccountID == accountID && e.Status == entities.JournalEntryStatusCompleted {
			sum = sum.Add(e.Amount)
			count++
		}
	}
	return sum, count, nil
}

func (t *memTx) GetIdempotencyRecord(ctx context.Context, key string, userID uuid.UUID) (*entities.IdempotencyRecord, error) {
	if r, ok := t.idemWrites[recordKey(key, userID)]; ok {
		return copyRecord(r), nil
	}
	return t.store.GetIdempotencyRecord(ctx, key, userID)
}

func (t *memTx) SaveIdempotencyRecord(ctx context.Context, record *entities.IdempotencyRecord) error {
	now := time.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	t.idemWrites[recordKey(record.OperationKey, record.UserID)] = copyRecord(record)
	return nil
}

func (t *memTx) commit() error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	for id, w := range t.accountWrites {
		current, ok := t.store.accounts[id]
		if !ok || current.Version != w.expectedVersion {
			return fmt.Errorf("account %s at version %d: %w", id, w.expectedVersion, apperrors.ErrVersionConflict)
		}
	}
	for _, tr := range t.newTransfers {
		if _, taken := t.store.transferKeys[tr.OperationKey]; taken {
			return fmt.Errorf("transfer with operation key already exists: %w", apperrors.ErrAlreadyExists)
		}
	}

	for id, w := range t.accountWrites {
		updated := copyAccount(t.store.accounts[id])
		updated.Balance = w.balance
		updated.Version = w.version
		updated.UpdatedAt = w.updatedAt
		t.store.accounts[id] = updated
	}
	t.store.entries = append(t.store.entries, t.newEntries...)
	for _, tr := range t.newTransfers {
		t.store.transfers[tr.ID] = tr
		t.store.transferKeys[tr.OperationKey] = tr.ID
	}
	for _, r := range t.idemWrites {
		t.store.upsertRecordLocked(r)
	}
	return nil
}

// --- repository views ---

// Accounts returns an account repository backed by this store
func (s *MemStore) Accounts() *AccountRepository { return &AccountRepository{s: s} }

// Journal returns a journal repository backed by this store
func (s *MemStore) Journal() *JournalRepository { return &JournalRepository{s: s} }

// Users returns a user repository backed by this store
func (s *MemStore) Users() *UserRepository { return &UserRepository{s: s} }

// Idempotency returns an idempotency maintenance repository backed by this
// store
func (s *MemStore) Idempotency() *IdempotencyRepository { return &IdempotencyRepository{s: s} }

// AccountRepository is the in-memory AccountRepository implementation
type AccountRepository struct {
	s *MemStore
}

func (r *AccountRepository) Create(ctx context.Context, account *entities.Account) error {
	if err := account.Validate(); err != nil {
		return fmt.Errorf("validate account: %w", err)
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, taken := r.s.accountNumbers[account.AccountNumber]; taken {
		return fmt.Errorf("account number %s taken: %w", account.AccountNumber, apperrors.ErrAlreadyExists)
	}
	if _, exists := r.s.accounts[account.ID]; exists {
		return fmt.Errorf("account %s already exists: %w", account.ID, apperrors.ErrAlreadyExists)
	}

	cp := copyAccount(account)
	r.s.accounts[cp.ID] = cp
	r.s.accountNumbers[cp.AccountNumber] = cp.ID
	return nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Account, error) {
	return r.s.GetAccountByID(ctx, id)
}

func (r *AccountRepository) GetByNumber(ctx context.Context, number string) (*entities.Account, error) {
	return r.s.GetAccountByNumber(ctx, number)
}

func (r *AccountRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*entities.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*entities.Account
	for _, a := range r.s.accounts {
		if a.UserID == userID {
			out = append(out, copyAccount(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].AccountNumber > out[j].AccountNumber
	})
	return out, nil
}

func (r *AccountRepository) ListIDs(ctx context.Context, limit, offset int) ([]uuid.UUID, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	all := make([]*entities.Account, 0, len(r.s.accounts))
	for _, a := range r.s.accounts {
		all = append(all, a)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return bytes.Compare(all[i].ID[:], all[j].ID[:]) < 0
	})

	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	ids := make([]uuid.UUID, 0, end-offset)
	for _, a := range all[offset:end] {
		ids = append(ids, a.ID)
	}
	return ids, nil
}

func (r *AccountRepository) GetActiveByUserAndType(ctx context.Context, userID uuid.UUID, accountType entities.AccountType) (*entities.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var match *entities.Account
	for _, a := range r.s.accounts {
		if a.UserID != userID || a.AccountType != accountType || a.Status != entities.AccountStatusActive {
			continue
		}
		if match == nil || a.CreatedAt.Before(match.CreatedAt) {
			match = a
		}
	}
	if match == nil {
		return nil, nil
	}
	return copyAccount(match), nil
}

// JournalRepository is the in-memory JournalRepository implementation
type JournalRepository struct {
	s *MemStore
}

func (r *JournalRepository) ListByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*entities.JournalEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	// entries are appended in creation order, so newest-first is a
	// backwards walk
	var matched []*entities.JournalEntry
	for i := len(r.s.entries) - 1; i >= 0; i-- {
		if r.s.entries[i].AccountID == accountID {
			matched = append(matched, r.s.entries[i])
		}
	}

	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	out := make([]*entities.JournalEntry, 0, end-offset)
	for _, e := range matched[offset:end] {
		out = append(out, copyEntry(e))
	}
	return out, nil
}

func (r *JournalRepository) CountByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var count int64
	for _, e := range r.s.entries {
		if e.AccountID == accountID {
			count++
		}
	}
	return count, nil
}

// UserRepository is the in-memory UserRepository implementation
type UserRepository struct {
	s *MemStore
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if u, ok := r.s.users[id]; ok {
		return copyUser(u), nil
	}
	return nil, nil
}

func (r *UserRepository) GetByNationalID(ctx context.Context, nationalID string) (*entities.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if id, ok := r.s.nationalIDs[nationalID]; ok {
		return copyUser(r.s.users[id]), nil
	}
	return nil, nil
}

// IdempotencyRepository is the in-memory maintenance repository
type IdempotencyRepository struct {
	s *MemStore
}

func (r *IdempotencyRepository) DeleteExpired(ctx context.Context, before time.Time, limit int) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var expired []string
	for key, rec := range r.s.records {
		if !rec.ExpiresAt.After(before) {
			expired = append(expired, key)
		}
	}
	sort.Strings(expired)
	if len(expired) > limit {
		expired = expired[:limit]
	}
	for _, key := range expired {
		delete(r.s.records, key)
	}
	return int64(len(expired)), nil
}
