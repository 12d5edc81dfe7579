package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"buyerportal/pkg/models"
)

// MemoryStore keeps records in process memory. Used for local runs and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	records  map[uuid.UUID]*models.InvoiceRecord
	byNumber map[string]uuid.UUID
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:  make(map[uuid.UUID]*models.InvoiceRecord),
		byNumber: make(map[string]uuid.UUID),
	}
}

func (s *MemoryStore) Upsert(_ context.Context, rec *models.InvoiceRecord) (*models.InvoiceRecord, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.HasNaturalKey() {
		if id, ok := s.byNumber[*rec.InvoiceNumber]; ok {
			existing := s.records[id]
			existing.Supplier = rec.Supplier
			existing.Amount = rec.Amount
			existing.DueDate = rec.DueDate
			existing.OCRNumber = rec.OCRNumber
			existing.Bankgiro = rec.Bankgiro
			existing.FileURL = rec.FileURL
			existing.UpdatedAt = rec.UpdatedAt
			return clone(existing), nil
		}
	}

	stored := clone(rec)
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	if !stored.HasNaturalKey() {
		stored.InvoiceNumber = nil
	}
	s.records[stored.ID] = stored
	if stored.HasNaturalKey() {
		s.byNumber[*stored.InvoiceNumber] = stored.ID
	}
	return clone(stored), nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*models.InvoiceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return clone(rec), nil
}

func (s *MemoryStore) GetByNumber(_ context.Context, invoiceNumber string) (*models.InvoiceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byNumber[invoiceNumber]
	if !ok {
		return nil, fmt.Errorf("%w: invoice number %s", ErrNotFound, invoiceNumber)
	}
	return clone(s.records[id]), nil
}

func (s *MemoryStore) List(_ context.Context, filter Filter) ([]*models.InvoiceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.InvoiceRecord, 0, len(s.records))
	for _, rec := range s.records {
		if filter.Matches(rec) {
			out = append(out, clone(rec))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() > out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, rec *models.InvoiceRecord, from models.Status) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.records[rec.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, rec.ID)
	}
	if existing.Status != from || !from.CanTransitionTo(rec.Status) {
		return fmt.Errorf("%w: %s is %s, not %s", models.ErrInvalidTransition, rec.ID, existing.Status, from)
	}
	existing.Status = rec.Status
	existing.PayoutDate = rec.PayoutDate
	existing.PayoutAmount = rec.PayoutAmount
	existing.UpdatedAt = rec.UpdatedAt
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if rec.HasNaturalKey() {
		delete(s.byNumber, *rec.InvoiceNumber)
	}
	delete(s.records, id)
	return nil
}

// clone copies rec including its pointer fields so callers never share state with the store.
func clone(rec *models.InvoiceRecord) *models.InvoiceRecord {
	c := *rec
	if rec.InvoiceNumber != nil {
		v := *rec.InvoiceNumber
		c.InvoiceNumber = &v
	}
	if rec.Amount != nil {
		v := *rec.Amount
		c.Amount = &v
	}
	if rec.DueDate != nil {
		v := *rec.DueDate
		c.DueDate = &v
	}
	if rec.OCRNumber != nil {
		v := *rec.OCRNumber
		c.OCRNumber = &v
	}
	if rec.Bankgiro != nil {
		v := *rec.Bankgiro
		c.Bankgiro = &v
	}
	if rec.PayoutDate != nil {
		v := *rec.PayoutDate
		c.PayoutDate = &v
	}
	if rec.PayoutAmount != nil {
		v := *rec.PayoutAmount
		c.PayoutAmount = &v
	}
	return &c
}
