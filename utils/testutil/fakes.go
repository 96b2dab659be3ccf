package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/sahilchouksey/course-storefront/services/events"
	"github.com/sahilchouksey/course-storefront/services/mailer"
	"github.com/sahilchouksey/course-storefront/services/payments"
	"github.com/sahilchouksey/course-storefront/services/storage"
)

// FakeGateway is an in-memory payments.Gateway. Webhook payloads are
// JSON encoded payments.Event values and the signature must equal Secret.
type FakeGateway struct {
	mu        sync.Mutex
	Secret    string
	Sessions  map[string]*payments.CheckoutSession
	Created   []payments.CheckoutParams
	CreateErr error
	seq       int
}

func NewFakeGateway(secret string) *FakeGateway {
	return &FakeGateway{Secret: secret, Sessions: map[string]*payments.CheckoutSession{}}
}

func (g *FakeGateway) CreateCheckoutSession(_ context.Context, p payments.CheckoutParams) (*payments.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.Created = append(g.Created, p)
	if g.CreateErr != nil {
		return nil, g.CreateErr
	}

	g.seq++
	id := fmt.Sprintf("cs_test_%d", g.seq)
	s := &payments.CheckoutSession{
		ID:            id,
		URL:           "https://checkout.example.com/pay/" + id,
		PaymentStatus: "unpaid",
		CustomerEmail: p.CustomerEmail,
		AmountTotal:   p.UnitAmount,
		Currency:      p.Currency,
		Metadata:      p.Metadata,
	}
	g.Sessions[id] = s
	return s, nil
}

func (g *FakeGateway) RetrieveSession(_ context.Context, id string) (*payments.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.Sessions[id]
	if !ok {
		return nil, fmt.Errorf("no such checkout session: %s", id)
	}
	cp := *s
	return &cp, nil
}

// PutSession registers or replaces a session, e.g. to mark it paid.
func (g *FakeGateway) PutSession(s *payments.CheckoutSession) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Sessions[s.ID] = s
}

func (g *FakeGateway) ParseEvent(payload []byte, signature string) (*payments.Event, error) {
	if g.Secret == "" {
		return nil, payments.ErrNoWebhookSecret
	}
	if signature != g.Secret {
		return nil, payments.ErrInvalidSignature
	}
	return g.ParseUnverifiedEvent(payload)
}

func (g *FakeGateway) ParseUnverifiedEvent(payload []byte) (*payments.Event, error) {
	var ev payments.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, payments.ErrMalformedEvent
	}
	ev.Raw = payload
	return &ev, nil
}

// EventPayload encodes an event the way FakeGateway expects it.
func EventPayload(ev payments.Event) []byte {
	b, _ := json.Marshal(ev)
	return b
}

// FakeStore is an in-memory storage.Store.
type FakeStore struct {
	mu        sync.Mutex
	Objects   map[string][]byte
	Deleted   []string
	UploadErr error
	SignErr   error
}

var _ storage.Store = (*FakeStore)(nil)

func NewFakeStore() *FakeStore {
	return &FakeStore{Objects: map[string][]byte{}}
}

func (s *FakeStore) Bucket() string { return "test-bucket" }

func (s *FakeStore) Upload(_ context.Context, key string, body io.Reader, _ string) error {
	if s.UploadErr != nil {
		return s.UploadErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Objects[key] = data
	return nil
}

func (s *FakeStore) Delete(_ context.Context, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Deleted = append(s.Deleted, key)
	delete(s.Objects, key)
}

func (s *FakeStore) SignedURL(key string, ttl time.Duration, name string) (string, error) {
	if s.SignErr != nil {
		return "", s.SignErr
	}
	if ttl <= 0 {
		return "", storage.ErrInvalidTTL
	}
	return fmt.Sprintf("https://fake-s3.local/%s?expires=%d&name=%s", key, int64(ttl.Seconds()), url.QueryEscape(name)), nil
}

func (s *FakeStore) PresignedUpload(key, _ string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", storage.ErrInvalidTTL
	}
	return fmt.Sprintf("https://fake-s3.local/%s?upload=1", key), nil
}

// FakeMailer records messages instead of sending them.
type FakeMailer struct {
	mu             sync.Mutex
	PurchaseAccess []mailer.PurchaseAccess
	Verifications  []mailer.EmailVerification
	Err            error
}

func (m *FakeMailer) SendPurchaseAccess(_ context.Context, msg mailer.PurchaseAccess) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.PurchaseAccess = append(m.PurchaseAccess, msg)
	return nil
}

func (m *FakeMailer) SendEmailVerification(_ context.Context, msg mailer.EmailVerification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Verifications = append(m.Verifications, msg)
	return nil
}

// FakePublisher records published events.
type FakePublisher struct {
	mu        sync.Mutex
	Completed []events.PurchaseCompleted
	Err       error
}

func (p *FakePublisher) PublishPurchaseCompleted(_ context.Context, ev events.PurchaseCompleted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.Completed = append(p.Completed, ev)
	return nil
}
