package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/markjakearzadon/orangemoney-gobackend/internal/models"
)

// NewMemory returns process-local stores with the same semantics as the
// MongoDB ones. Documents go through a BSON round trip on every write so field
// updates use the same keys as the Mongo implementation.
func NewMemory() Stores {
	return Stores{
		Transactions: &MemoryTransactions{byID: map[string]bson.M{}},
		Deliveries:   &MemoryDeliveries{seen: map[string]models.WebhookDelivery{}},
		State:        &MemoryState{states: map[string]models.ProviderState{}},
	}
}

type MemoryTransactions struct {
	mu   sync.Mutex
	byID map[string]bson.M
}

func toDoc(v any) (bson.M, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func fromDoc(doc bson.M) (*models.Transaction, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var tx models.Transaction
	if err := bson.Unmarshal(raw, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (s *MemoryTransactions) Create(_ context.Context, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[tx.TransactionID]; ok {
		return ErrDuplicate
	}
	if tx.ID.IsZero() {
		tx.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	tx.UpdatedAt = now
	doc, err := toDoc(tx)
	if err != nil {
		return fmt.Errorf("failed to encode transaction: %w", err)
	}
	s.byID[tx.TransactionID] = doc
	return nil
}

func (s *MemoryTransactions) get(transactionID string) (*models.Transaction, error) {
	doc, ok := s.byID[transactionID]
	if !ok {
		return nil, ErrNotFound
	}
	return fromDoc(doc)
}

func (s *MemoryTransactions) GetByTransactionID(_ context.Context, transactionID string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(transactionID)
}

func (s *MemoryTransactions) all() ([]models.Transaction, error) {
	out := make([]models.Transaction, 0, len(s.byID))
	for _, doc := range s.byID {
		tx, err := fromDoc(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, *tx)
	}
	return out, nil
}

func (s *MemoryTransactions) GetByPayToken(_ context.Context, payToken string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	txs, err := s.all()
	if err != nil {
		return nil, err
	}
	for i := range txs {
		if txs[i].PayToken == payToken || txs[i].QRID == payToken {
			return &txs[i], nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryTransactions) filter(keep func(*models.Transaction) bool, less func(a, b *models.Transaction) bool) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	txs, err := s.all()
	if err != nil {
		return nil, err
	}
	out := []models.Transaction{}
	for i := range txs {
		if keep(&txs[i]) {
			out = append(out, txs[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return less(&out[i], &out[j]) })
	return out, nil
}

func (s *MemoryTransactions) ListByPartner(_ context.Context, partnerID models.ExternalID) ([]models.Transaction, error) {
	return s.filter(
		func(t *models.Transaction) bool { return t.PartnerID == partnerID },
		func(a, b *models.Transaction) bool { return a.CreatedAt.After(b.CreatedAt) },
	)
}

func (s *MemoryTransactions) ListByInvoice(_ context.Context, invoiceID models.ExternalID) ([]models.Transaction, error) {
	return s.filter(
		func(t *models.Transaction) bool { return t.InvoiceID == invoiceID },
		func(a, b *models.Transaction) bool { return a.CreatedAt.Before(b.CreatedAt) },
	)
}

func (s *MemoryTransactions) set(transactionID string, fields bson.M) (*models.Transaction, error) {
	doc := s.byID[transactionID]
	for k, v := range fields {
		doc[k] = v
	}
	// normalise through BSON so stored values match what Mongo would hold
	tx, err := fromDoc(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to apply update: %w", err)
	}
	fresh, err := toDoc(tx)
	if err != nil {
		return nil, err
	}
	s.byID[transactionID] = fresh
	return tx, nil
}

func (s *MemoryTransactions) ApplyStatus(_ context.Context, transactionID string, u StatusUpdate) (*models.Transaction, bool, error) {
	if u.Status == models.StatusCompleted {
		return nil, false, fmt.Errorf("completed status must go through Complete")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.get(transactionID)
	if err != nil {
		return nil, false, err
	}
	if current.Status.IsTerminal() {
		return current, false, nil
	}
	tx, err := s.set(transactionID, statusSet(u, time.Now().UTC()))
	return tx, err == nil, err
}

func (s *MemoryTransactions) Complete(_ context.Context, transactionID string, u StatusUpdate) (*models.Transaction, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.get(transactionID)
	if err != nil {
		return nil, false, err
	}
	if current.Status.IsTerminal() || current.CompletedAt != nil {
		return current, false, nil
	}

	now := time.Now().UTC()
	u.Status = models.StatusCompleted
	completedAt := u.CompletedAt
	if completedAt.IsZero() {
		completedAt = now
	}
	set := statusSet(u, now)
	set["completed_at"] = completedAt
	set["settlement_state"] = models.SettlementPending
	set["settlement_attempts"] = 0
	tx, err := s.set(transactionID, set)
	return tx, err == nil, err
}

func (s *MemoryTransactions) ClaimSettlement(_ context.Context, transactionID string, lease time.Duration) (*models.Transaction, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.get(transactionID)
	if err != nil {
		return nil, false, err
	}
	now := time.Now().UTC()
	if current.Status != models.StatusCompleted || current.SettlementState == models.SettlementSettled {
		return current, false, nil
	}
	if current.SettlementLease != nil && current.SettlementLease.After(now) {
		return current, false, nil
	}
	tx, err := s.set(transactionID, bson.M{"settlement_lease_until": now.Add(lease)})
	return tx, err == nil, err
}

func (s *MemoryTransactions) UpdateFields(_ context.Context, transactionID string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[transactionID]; !ok {
		return ErrNotFound
	}
	set := bson.M{"updated_at": time.Now().UTC()}
	for k, v := range fields {
		set[k] = v
	}
	_, err := s.set(transactionID, set)
	return err
}

func (s *MemoryTransactions) ListPendingSettlement(_ context.Context, limit int) ([]models.Transaction, error) {
	out, err := s.filter(
		func(t *models.Transaction) bool {
			return t.Status == models.StatusCompleted && t.SettlementState == models.SettlementPending
		},
		func(a, b *models.Transaction) bool { return a.UpdatedAt.Before(b.UpdatedAt) },
	)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryTransactions) CountByStatus(_ context.Context) (map[models.Status]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	txs, err := s.all()
	if err != nil {
		return nil, err
	}
	out := map[models.Status]int64{}
	for _, t := range txs {
		out[t.Status]++
	}
	return out, nil
}

type MemoryDeliveries struct {
	mu   sync.Mutex
	seen map[string]models.WebhookDelivery
}

func (s *MemoryDeliveries) Seen(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[key]
	return ok, nil
}

func (s *MemoryDeliveries) Record(_ context.Context, d models.WebhookDelivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[d.Key]; !ok {
		s.seen[d.Key] = d
	}
	return nil
}

type MemoryState struct {
	mu     sync.Mutex
	states map[string]models.ProviderState
}

func (s *MemoryState) GetState(_ context.Context, id string) (*models.ProviderState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &st, nil
}

func (s *MemoryState) LoadToken(ctx context.Context, id string) (string, time.Time, error) {
	st, err := s.GetState(ctx, id)
	if err != nil {
		return "", time.Time{}, err
	}
	if st.AccessToken == "" || st.TokenExpiresAt == nil {
		return "", time.Time{}, ErrNotFound
	}
	return st.AccessToken, *st.TokenExpiresAt, nil
}

func (s *MemoryState) update(id, clientID string, version int, apply func(*models.ProviderState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.states[id]
	st.ID, st.ClientID, st.Version = id, clientID, version
	st.UpdatedAt = time.Now().UTC()
	apply(&st)
	s.states[id] = st
}

func (s *MemoryState) SaveToken(_ context.Context, id, clientID string, version int, token string, expiresAt time.Time) error {
	s.update(id, clientID, version, func(st *models.ProviderState) {
		exp := expiresAt.UTC()
		st.AccessToken, st.TokenExpiresAt = token, &exp
	})
	return nil
}

func (s *MemoryState) SavePublicKey(_ context.Context, id, clientID string, version int, key, keyID string) error {
	s.update(id, clientID, version, func(st *models.ProviderState) {
		st.PublicKey, st.PublicKeyID = key, keyID
	})
	return nil
}

func (s *MemoryState) SaveWebhookStatus(_ context.Context, id, clientID string, version int, status string) error {
	s.update(id, clientID, version, func(st *models.ProviderState) {
		st.LastWebhookStatus = status
	})
	return nil
}
