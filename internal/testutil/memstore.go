package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"freight-backend/internal/domain"
	"freight-backend/internal/domain/models"
	"freight-backend/internal/repositories"

	"github.com/shopspring/decimal"
)

// MemStore is an in-memory repositories.Store with the same conditional
// update semantics as the MySQL store. WithTx holds the store lock for the
// whole callback and restores a snapshot when it fails.
type MemStore struct {
	mu   *sync.Mutex
	data *memData
	inTx bool
}

type memData struct {
	trips      map[string]models.Trip
	purchases  map[string]models.PurchaseTrip
	payments   map[string]models.Payment
	recipients map[string]models.TransferRecipient
	failures   map[string]error
	Now        func() time.Time
}

var _ repositories.Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		mu: &sync.Mutex{},
		data: &memData{
			trips:      map[string]models.Trip{},
			purchases:  map[string]models.PurchaseTrip{},
			payments:   map[string]models.Payment{},
			recipients: map[string]models.TransferRecipient{},
			failures:   map[string]error{},
			Now:        func() time.Time { return time.Now().UTC() },
		},
	}
}

func (s *MemStore) lock() {
	if !s.inTx {
		s.mu.Lock()
	}
}

func (s *MemStore) unlock() {
	if !s.inTx {
		s.mu.Unlock()
	}
}

// FailOn makes every later call of op return err. A nil err clears it.
func (s *MemStore) FailOn(op string, err error) {
	s.lock()
	defer s.unlock()
	if err == nil {
		delete(s.data.failures, op)
		return
	}
	s.data.failures[op] = err
}

func (s *MemStore) fail(op string) error { return s.data.failures[op] }

func (s *MemStore) SetClock(now func() time.Time) {
	s.lock()
	defer s.unlock()
	s.data.Now = now
}

func (s *MemStore) now() time.Time { return s.data.Now() }

func (s *MemStore) AddTrip(t models.Trip) {
	s.lock()
	defer s.unlock()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	t.UpdatedAt = t.CreatedAt
	s.data.trips[t.ID] = t
}

// Trip, PurchaseTrip and Payment read state directly for assertions.
func (s *MemStore) Trip(id string) (models.Trip, bool) {
	s.lock()
	defer s.unlock()
	t, ok := s.data.trips[id]
	return t, ok
}

func (s *MemStore) PurchaseTrip(id string) (models.PurchaseTrip, bool) {
	s.lock()
	defer s.unlock()
	p, ok := s.data.purchases[id]
	return p, ok
}

func (s *MemStore) Payment(id string) (models.Payment, bool) {
	s.lock()
	defer s.unlock()
	p, ok := s.data.payments[id]
	return p, ok
}

func (s *MemStore) Counts() (purchases, payments int) {
	s.lock()
	defer s.unlock()
	return len(s.data.purchases), len(s.data.payments)
}

// Put overwrites records as-is, for arranging test state.
func (s *MemStore) PutPurchaseTrip(p models.PurchaseTrip) {
	s.lock()
	defer s.unlock()
	s.data.purchases[p.ID] = p
}

func (s *MemStore) PutPayment(p models.Payment) {
	s.lock()
	defer s.unlock()
	s.data.payments[p.ID] = p
}

func (s *MemStore) WithTx(ctx context.Context, fn func(tx repositories.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.data.clone()
	tx := &MemStore{mu: s.mu, data: s.data, inTx: true}
	if err := fn(tx); err != nil {
		*s.data = *snap
		return err
	}
	return nil
}

func (d *memData) clone() *memData {
	c := &memData{
		trips:      make(map[string]models.Trip, len(d.trips)),
		purchases:  make(map[string]models.PurchaseTrip, len(d.purchases)),
		payments:   make(map[string]models.Payment, len(d.payments)),
		recipients: make(map[string]models.TransferRecipient, len(d.recipients)),
		failures:   d.failures,
		Now:        d.Now,
	}
	for k, v := range d.trips {
		c.trips[k] = v
	}
	for k, v := range d.purchases {
		c.purchases[k] = v
	}
	for k, v := range d.payments {
		c.payments[k] = v
	}
	for k, v := range d.recipients {
		c.recipients[k] = v
	}
	return c
}

func (s *MemStore) GetTrip(ctx context.Context, id string) (models.Trip, error) {
	s.lock()
	defer s.unlock()
	if err := s.fail("GetTrip"); err != nil {
		return models.Trip{}, err
	}
	t, ok := s.data.trips[id]
	if !ok {
		return models.Trip{}, domain.NotFoundError{Resource: "trip"}
	}
	return t, nil
}

func (s *MemStore) MarkTripBooked(ctx context.Context, id string) (bool, error) {
	s.lock()
	defer s.unlock()
	if err := s.fail("MarkTripBooked"); err != nil {
		return false, err
	}
	t, ok := s.data.trips[id]
	if !ok || t.IsBooked {
		return false, nil
	}
	t.IsBooked = true
	t.UpdatedAt = s.now()
	s.data.trips[id] = t
	return true, nil
}

func (s *MemStore) ReleaseTrip(ctx context.Context, id, exceptPurchaseTripID string) (bool, error) {
	s.lock()
	defer s.unlock()
	if err := s.fail("ReleaseTrip"); err != nil {
		return false, err
	}
	t, ok := s.data.trips[id]
	if !ok || !t.IsBooked {
		return false, nil
	}
	for _, p := range s.data.purchases {
		if p.TripID == id && p.ID != exceptPurchaseTripID && p.Status.HoldsTrip() {
			return false, nil
		}
	}
	t.IsBooked = false
	t.UpdatedAt = s.now()
	s.data.trips[id] = t
	return true, nil
}

func (s *MemStore) CreatePurchaseTrip(ctx context.Context, p models.PurchaseTrip) error {
	s.lock()
	defer s.unlock()
	if err := s.fail("CreatePurchaseTrip"); err != nil {
		return err
	}
	if p.Status.Active() {
		for _, other := range s.data.purchases {
			if other.Status.Active() && other.UserID == p.UserID && other.TripID == p.TripID {
				return domain.ConflictError{Resource: "reservation", Msg: "reservasi aktif untuk trip ini sudah ada"}
			}
		}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	p.UpdatedAt = p.CreatedAt
	s.data.purchases[p.ID] = p
	return nil
}

func (s *MemStore) GetPurchaseTrip(ctx context.Context, id string) (models.PurchaseTrip, error) {
	s.lock()
	defer s.unlock()
	if err := s.fail("GetPurchaseTrip"); err != nil {
		return models.PurchaseTrip{}, err
	}
	p, ok := s.data.purchases[id]
	if !ok {
		return models.PurchaseTrip{}, domain.NotFoundError{Resource: "purchase trip"}
	}
	return p, nil
}

func (s *MemStore) LatestAwaitingByTrip(ctx context.Context, tripID string) (models.PurchaseTrip, error) {
	s.lock()
	defer s.unlock()
	var (
		best  models.PurchaseTrip
		found bool
	)
	for _, p := range s.data.purchases {
		if p.TripID != tripID || p.Status != domain.ReservationAwaitingConfirmation {
			continue
		}
		if !found || p.CreatedAt.After(best.CreatedAt) {
			best, found = p, true
		}
	}
	if !found {
		return models.PurchaseTrip{}, domain.NotFoundError{Resource: "purchase trip"}
	}
	return best, nil
}

func (s *MemStore) TransitionPurchaseTrip(ctx context.Context, id string, from []domain.ReservationStatus, to domain.ReservationStatus) (bool, error) {
	s.lock()
	defer s.unlock()
	if err := s.fail("TransitionPurchaseTrip"); err != nil {
		return false, err
	}
	p, ok := s.data.purchases[id]
	if !ok || !containsStatus(from, p.Status) {
		return false, nil
	}
	p.Status = to
	p.UpdatedAt = s.now()
	s.data.purchases[id] = p
	return true, nil
}

func (s *MemStore) DeletePurchaseTrip(ctx context.Context, id string) (bool, error) {
	s.lock()
	defer s.unlock()
	if err := s.fail("DeletePurchaseTrip"); err != nil {
		return false, err
	}
	if p, ok := s.data.purchases[id]; !ok || !p.Status.Discardable() {
		return false, nil
	}
	delete(s.data.purchases, id)
	return true, nil
}

func (s *MemStore) ListExpiredHolds(ctx context.Context, before time.Time, limit int) ([]models.PurchaseTrip, error) {
	s.lock()
	defer s.unlock()
	if err := s.fail("ListExpiredHolds"); err != nil {
		return nil, err
	}
	out := []models.PurchaseTrip{}
	for _, p := range s.data.purchases {
		if p.Status != domain.ReservationAwaitingConfirmation || !p.CreatedAt.Before(before) {
			continue
		}
		if s.paidFor(p.ID) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemStore) paidFor(purchaseTripID string) bool {
	for _, pay := range s.data.payments {
		if pay.PurchaseTripID == purchaseTripID && pay.Status != domain.PaymentPending {
			return true
		}
	}
	return false
}

func (s *MemStore) CreatePayment(ctx context.Context, p models.Payment) error {
	s.lock()
	defer s.unlock()
	if err := s.fail("CreatePayment"); err != nil {
		return err
	}
	for _, other := range s.data.payments {
		if other.PaystackReference == p.PaystackReference {
			return domain.ConflictError{Resource: "payment", Msg: "referensi pembayaran sudah dipakai"}
		}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	p.UpdatedAt = p.CreatedAt
	s.data.payments[p.ID] = p
	return nil
}

func (s *MemStore) GetPayment(ctx context.Context, id string) (models.Payment, error) {
	s.lock()
	defer s.unlock()
	if err := s.fail("GetPayment"); err != nil {
		return models.Payment{}, err
	}
	p, ok := s.data.payments[id]
	if !ok {
		return models.Payment{}, domain.NotFoundError{Resource: "payment"}
	}
	return p, nil
}

func (s *MemStore) findPayment(match func(models.Payment) bool) (models.Payment, error) {
	var (
		best  models.Payment
		found bool
	)
	for _, p := range s.data.payments {
		if !match(p) {
			continue
		}
		if !found || p.CreatedAt.After(best.CreatedAt) {
			best, found = p, true
		}
	}
	if !found {
		return models.Payment{}, domain.NotFoundError{Resource: "payment"}
	}
	return best, nil
}

func (s *MemStore) GetPaymentByReference(ctx context.Context, reference string) (models.Payment, error) {
	s.lock()
	defer s.unlock()
	if err := s.fail("GetPaymentByReference"); err != nil {
		return models.Payment{}, err
	}
	return s.findPayment(func(p models.Payment) bool { return p.PaystackReference == reference })
}

func (s *MemStore) GetPaymentByPurchaseTrip(ctx context.Context, purchaseTripID string) (models.Payment, error) {
	s.lock()
	defer s.unlock()
	if err := s.fail("GetPaymentByPurchaseTrip"); err != nil {
		return models.Payment{}, err
	}
	return s.findPayment(func(p models.Payment) bool { return p.PurchaseTripID == purchaseTripID })
}

func (s *MemStore) GetPaymentByTransferReference(ctx context.Context, reference string) (models.Payment, error) {
	s.lock()
	defer s.unlock()
	if reference == "" {
		return models.Payment{}, domain.NotFoundError{Resource: "payment"}
	}
	return s.findPayment(func(p models.Payment) bool { return p.TransferReference == reference })
}

func (s *MemStore) TransitionPayment(ctx context.Context, id string, from []domain.PaymentStatus, to domain.PaymentStatus) (bool, error) {
	s.lock()
	defer s.unlock()
	if err := s.fail("TransitionPayment"); err != nil {
		return false, err
	}
	p, ok := s.data.payments[id]
	if !ok || !containsStatus(from, p.Status) {
		return false, nil
	}
	now := s.now()
	p.Status = to
	p.UpdatedAt = now
	switch to {
	case domain.PaymentAuthorized:
		p.AuthorizedAt = &now
	case domain.PaymentReleased:
		p.ReleasedAt = &now
	}
	s.data.payments[id] = p
	return true, nil
}

func (s *MemStore) MarkPaymentRefunded(ctx context.Context, id string, amount decimal.Decimal) (bool, error) {
	s.lock()
	defer s.unlock()
	if err := s.fail("MarkPaymentRefunded"); err != nil {
		return false, err
	}
	p, ok := s.data.payments[id]
	if !ok || p.Status != domain.PaymentRefundPending {
		return false, nil
	}
	now := s.now()
	p.Status = domain.PaymentRefunded
	p.RefundedAmount = amount
	p.RefundedAt = &now
	p.UpdatedAt = now
	s.data.payments[id] = p
	return true, nil
}

func (s *MemStore) SetPaymentInitReference(ctx context.Context, id, accessCode string) error {
	s.lock()
	defer s.unlock()
	p, ok := s.data.payments[id]
	if !ok {
		return nil
	}
	p.PaystackInitReference = accessCode
	s.data.payments[id] = p
	return nil
}

func (s *MemStore) ClaimRefund(ctx context.Context, id string) (bool, error) {
	s.lock()
	defer s.unlock()
	if err := s.fail("ClaimRefund"); err != nil {
		return false, err
	}
	p, ok := s.data.payments[id]
	if !ok || !p.Status.Refundable() || p.TransferReference != "" {
		return false, nil
	}
	p.Status = domain.PaymentRefundPending
	p.UpdatedAt = s.now()
	s.data.payments[id] = p
	return true, nil
}

func (s *MemStore) ClaimTransfer(ctx context.Context, id, reference string) (bool, error) {
	s.lock()
	defer s.unlock()
	p, ok := s.data.payments[id]
	if !ok || p.Status != domain.PaymentAuthorized || p.TransferReference != "" {
		return false, nil
	}
	for _, other := range s.data.payments {
		if other.TransferReference == reference {
			return false, domain.ConflictError{Resource: "transfer", Msg: "referensi transfer sudah dipakai"}
		}
	}
	p.TransferReference = reference
	s.data.payments[id] = p
	return true, nil
}

func (s *MemStore) ClearTransfer(ctx context.Context, id, reference string) (bool, error) {
	s.lock()
	defer s.unlock()
	p, ok := s.data.payments[id]
	if !ok || p.TransferReference != reference || p.Status != domain.PaymentAuthorized {
		return false, nil
	}
	p.TransferReference = ""
	s.data.payments[id] = p
	return true, nil
}

func (s *MemStore) DeletePayment(ctx context.Context, id string) (bool, error) {
	s.lock()
	defer s.unlock()
	if err := s.fail("DeletePayment"); err != nil {
		return false, err
	}
	if p, ok := s.data.payments[id]; !ok || p.Status != domain.PaymentPending {
		return false, nil
	}
	delete(s.data.payments, id)
	return true, nil
}

func (s *MemStore) SaveRecipient(ctx context.Context, rc models.TransferRecipient) error {
	s.lock()
	defer s.unlock()
	for k, v := range s.data.recipients {
		if v.TransporterID == rc.TransporterID && v.RecipientCode == rc.RecipientCode {
			rc.ID = k
		}
	}
	s.data.recipients[rc.ID] = rc
	return nil
}

func (s *MemStore) ListRecipients(ctx context.Context, transporterID string) ([]models.TransferRecipient, error) {
	s.lock()
	err := s.fail("ListRecipients")
	s.unlock()
	if err != nil {
		return nil, err
	}
	return s.Recipients(transporterID), nil
}

func (s *MemStore) Recipients(transporterID string) []models.TransferRecipient {
	s.lock()
	defer s.unlock()
	out := []models.TransferRecipient{}
	for _, v := range s.data.recipients {
		if v.TransporterID == transporterID {
			out = append(out, v)
		}
	}
	return out
}

func containsStatus[T comparable](set []T, v T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
