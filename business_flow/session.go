package businessflow

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/revlyhq/revly-backend/app/services"
	"github.com/revlyhq/revly-backend/models"
	"github.com/revlyhq/revly-backend/repository"
	"github.com/revlyhq/revly-backend/utils"
	"gorm.io/gorm"
)

// QueueSettings tunes the send queue drain pacing
type QueueSettings struct {
	BatchSize  int
	ItemDelay  time.Duration
	BatchDelay time.Duration
	MaxPending int
}

func (q QueueSettings) withDefaults() QueueSettings {
	if q.BatchSize <= 0 {
		q.BatchSize = utils.SendBatchSize
	}
	if q.ItemDelay <= 0 {
		q.ItemDelay = 50 * time.Millisecond
	}
	if q.BatchDelay <= 0 {
		q.BatchDelay = 500 * time.Millisecond
	}
	if q.MaxPending <= 0 {
		q.MaxPending = utils.MaxPendingSends
	}
	return q
}

// SessionDeps bundles everything a tenant session needs
type SessionDeps struct {
	DB        *gorm.DB
	Customers repository.CustomerRepository
	Feedback  repository.FeedbackEntryRepository
	Activity  repository.ActivityLogRepository
	Cursors   repository.SyncCursorRepository

	Delivery services.DeliveryService
	Gate     *CreditGate
	Store    services.FeedbackStoreClient
	Links    services.LinkTokenService
	Events   *services.EventBus

	Queue           QueueSettings
	MessageTemplate string
	Logger          *log.Logger
}

// DefaultMessageTemplate composes the review request text. First verb is the
// customer name, second is the review URL.
const DefaultMessageTemplate = "Hi %s! Thanks for your visit. We'd love to hear how we did: %s"

// LocalFeedback is a feedback submission arriving through our own API
type LocalFeedback struct {
	CustomerID *string
	Phone      *string
	Text       string
	Sentiment  models.FeedbackSentiment
	Rating     *int
	Date       *time.Time
}

// Session is the single writer for one tenant's state: the customer
// collection, the feedback attribution indexes, the sync cursor, and the
// send queue. Every mutation goes through the session mutex, so the poller,
// the drain loop, and HTTP handlers never race each other.
type Session struct {
	tenantID string
	deps     SessionDeps

	mu        sync.Mutex
	closed    bool
	customers []*models.Customer
	byID      map[string]*models.Customer
	byPhone   map[string]*models.Customer

	// fingerprints maps feedback identity keys to the dates each copy was
	// observed; knownFeedback holds every feedback ID already stored.
	fingerprints  map[string][]time.Time
	knownFeedback map[string]struct{}

	cursor *time.Time
	queue  []string
	wake   chan struct{}
}

// NewSession loads a tenant's state from the repositories and builds the
// in-memory indexes
func NewSession(ctx context.Context, tenantID string, deps SessionDeps) (*Session, error) {
	deps.Queue = deps.Queue.withDefaults()
	if deps.MessageTemplate == "" {
		deps.MessageTemplate = DefaultMessageTemplate
	}
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}

	s := &Session{
		tenantID:      tenantID,
		deps:          deps,
		byID:          make(map[string]*models.Customer),
		byPhone:       make(map[string]*models.Customer),
		fingerprints:  make(map[string][]time.Time),
		knownFeedback: make(map[string]struct{}),
		wake:          make(chan struct{}, 1),
	}

	customers, err := deps.Customers.ByTenant(ctx, tenantID)
	if err != nil {
		return nil, NewBusinessError("SESSION_LOAD_FAILED", "Failed to load customers", err)
	}
	for _, c := range customers {
		s.indexLocked(c)
	}

	cursor, err := deps.Cursors.ByTenant(ctx, tenantID)
	if err != nil {
		return nil, NewBusinessError("SESSION_LOAD_FAILED", "Failed to load sync cursor", err)
	}
	if cursor != nil && cursor.LastRemoteSync != nil {
		t := utils.TimeToUTC(*cursor.LastRemoteSync)
		s.cursor = &t
	}

	return s, nil
}

// TenantID returns the tenant this session serves
func (s *Session) TenantID() string {
	return s.tenantID
}

// indexLocked registers a customer in the lookup maps and the ordered
// collection. The unattributed bucket is pinned to the head.
func (s *Session) indexLocked(c *models.Customer) {
	if c.IsUnattributed() {
		s.customers = append([]*models.Customer{c}, s.customers...)
	} else {
		s.customers = append(s.customers, c)
	}
	s.byID[c.ID] = c
	if key := NormalizePhone(c.Phone); key != "" && !c.IsUnattributed() {
		s.byPhone[key] = c
	}
	for i := range c.Feedback {
		entry := &c.Feedback[i]
		s.knownFeedback[entry.ID] = struct{}{}
		fp := Fingerprint(entry.PhoneOrEmpty(), entry.Text)
		s.fingerprints[fp] = append(s.fingerprints[fp], utils.TimeToUTC(entry.Date))
	}
}

// duplicateLocked reports whether an entry with the same fingerprint was
// already observed inside the duplicate window
func (s *Session) duplicateLocked(fp string, date time.Time) bool {
	for _, seen := range s.fingerprints[fp] {
		if utils.WithinWindow(seen, date, utils.DuplicateWindow) {
			return true
		}
	}
	return false
}

// rememberLocked registers a newly accepted entry in the identity indexes
func (s *Session) rememberLocked(entry *models.FeedbackEntry) {
	s.knownFeedback[entry.ID] = struct{}{}
	fp := Fingerprint(entry.PhoneOrEmpty(), entry.Text)
	s.fingerprints[fp] = append(s.fingerprints[fp], utils.TimeToUTC(entry.Date))
}

// forgetLocked undoes rememberLocked for an entry whose persistence failed
func (s *Session) forgetLocked(entry *models.FeedbackEntry) {
	delete(s.knownFeedback, entry.ID)
	fp := Fingerprint(entry.PhoneOrEmpty(), entry.Text)
	seen := s.fingerprints[fp]
	date := utils.TimeToUTC(entry.Date)
	for i := len(seen) - 1; i >= 0; i-- {
		if seen[i].Equal(date) {
			seen = append(seen[:i], seen[i+1:]...)
			break
		}
	}
	if len(seen) == 0 {
		delete(s.fingerprints, fp)
	} else {
		s.fingerprints[fp] = seen
	}
}

// unindexBucketLocked removes the unattributed bucket from the collection
// and the ID map
func (s *Session) unindexBucketLocked() {
	bucket, ok := s.byID[utils.UnattributedCustomerID]
	if !ok {
		return
	}
	delete(s.byID, bucket.ID)
	for i, c := range s.customers {
		if c.ID == bucket.ID {
			s.customers = append(s.customers[:i], s.customers[i+1:]...)
			break
		}
	}
}

// SubmitFeedback records a feedback entry arriving through our own API and
// attributes it to a customer
func (s *Session) SubmitFeedback(ctx context.Context, in LocalFeedback) (*models.FeedbackEntry, error) {
	entry, target, err := func() (*models.FeedbackEntry, *models.Customer, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.closed {
			return nil, nil, ErrSessionClosed
		}
		if err := validateFeedback(in.Text, in.Sentiment); err != nil {
			return nil, nil, err
		}

		target, created, err := s.routeLocked(ctx, in.CustomerID, in.Phone)
		if err != nil {
			return nil, nil, err
		}

		date := utils.UTCNow()
		if in.Date != nil {
			date = utils.TimeToUTC(*in.Date)
		}

		entry := &models.FeedbackEntry{
			ID:         uuid.New().String(),
			TenantID:   s.tenantID,
			CustomerID: target.ID,
			Text:       in.Text,
			Sentiment:  in.Sentiment,
			Date:       date,
			Phone:      in.Phone,
			Rating:     in.Rating,
			Source:     models.FeedbackSourceLocal,
			Position:   len(target.Feedback),
		}

		// Persist before touching the in-memory state, so a failed save
		// leaves no ghost entry and no poisoned fingerprint index.
		err = repository.WithTransaction(ctx, s.deps.DB, func(txCtx context.Context) error {
			if created {
				if err := s.deps.Customers.Save(txCtx, target); err != nil {
					return err
				}
			}
			return s.deps.Feedback.Save(txCtx, entry)
		})
		if err != nil {
			if created {
				s.unindexBucketLocked()
			}
			return nil, nil, NewBusinessError("FEEDBACK_SAVE_FAILED", "Failed to save feedback", err)
		}
		target.Feedback = append(target.Feedback, *entry)
		s.rememberLocked(entry)

		if target.Status == models.CustomerStatusClicked {
			if err := s.transitionLocked(ctx, target, models.CustomerStatusReviewed, models.ActivityActionReviewReceived, utils.ToPtr("Feedback received after link click")); err != nil {
				s.deps.Logger.Printf("[session %s] review transition failed for %s: %v", s.tenantID, target.ID, err)
			}
		}
		return entry, target, nil
	}()
	if err != nil {
		return nil, err
	}

	s.logActivity(ctx, &target.ID, target.Name, models.ActivityActionFeedbackRecorded, utils.ToPtr(fmt.Sprintf("%s feedback recorded", entry.Sentiment)), nil, utils.ToPtr(true), nil)
	s.publish(services.EventFeedbackArrived, target.ID, string(entry.Sentiment))
	return entry, nil
}

// RecordClick marks a customer's review link as tapped. Repeated clicks on
// an already clicked or reviewed link are a no-op.
func (s *Session) RecordClick(ctx context.Context, customerID string) (*models.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}
	c, ok := s.byID[customerID]
	if !ok {
		return nil, ErrCustomerNotFound
	}

	switch c.Status {
	case models.CustomerStatusClicked, models.CustomerStatusReviewed:
		return c, nil
	case models.CustomerStatusSent:
		if err := s.transitionLocked(ctx, c, models.CustomerStatusClicked, models.ActivityActionLinkClicked, utils.ToPtr("Review link opened")); err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, &TransitionError{CustomerID: c.ID, From: c.Status, To: models.CustomerStatusClicked}
	}
}

// transitionLocked moves a customer through the lifecycle, persists the new
// status, and records the audit entry. Caller holds the session mutex.
func (s *Session) transitionLocked(ctx context.Context, c *models.Customer, target models.CustomerStatus, action string, description *string) error {
	if !c.Status.CanTransitionTo(target) {
		return &TransitionError{CustomerID: c.ID, From: c.Status, To: target}
	}

	previous := c.Status
	c.Status = target
	if err := s.deps.Customers.UpdateStatus(ctx, s.tenantID, c.ID, target); err != nil {
		c.Status = previous
		return NewBusinessError("STATUS_UPDATE_FAILED", "Failed to persist status change", err)
	}

	s.logActivity(ctx, &c.ID, c.Name, action, description, nil, utils.ToPtr(true), nil)
	s.publish(services.EventStatusChanged, c.ID, string(target))
	return nil
}

// applyTransition is the locked entry point used by the drain loop
func (s *Session) applyTransition(ctx context.Context, customerID string, target models.CustomerStatus, action string, description *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[customerID]
	if !ok {
		return ErrCustomerNotFound
	}
	return s.transitionLocked(ctx, c, target, action, description)
}

// Cursor returns the tenant's remote sync watermark, nil before the first poll
func (s *Session) Cursor() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cursor == nil {
		return nil
	}
	t := *s.cursor
	return &t
}

// AdvanceCursor moves the watermark forward to `to`. Moving backwards is
// rejected; Reset is the only way down.
func (s *Session) AdvanceCursor(ctx context.Context, to time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	to = utils.TimeToUTC(to)
	if s.cursor != nil && to.Before(*s.cursor) {
		return ErrCursorMovedBackwards
	}

	if err := s.deps.Cursors.Advance(ctx, s.tenantID, to); err != nil {
		return NewBusinessError("CURSOR_ADVANCE_FAILED", "Failed to persist sync cursor", err)
	}
	s.cursor = &to
	return nil
}

// ResetAll wipes the tenant's feedback history: every entry, the
// unattributed bucket, and the sync cursor. Real customers and their
// lifecycle statuses survive. The remote store purge is best-effort.
func (s *Session) ResetAll(ctx context.Context) error {
	err := func() error {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.closed {
			return ErrSessionClosed
		}

		err := repository.WithTransaction(ctx, s.deps.DB, func(txCtx context.Context) error {
			if err := s.deps.Feedback.DeleteByTenant(txCtx, s.tenantID); err != nil {
				return err
			}
			if _, ok := s.byID[utils.UnattributedCustomerID]; ok {
				if err := s.deps.Customers.Delete(txCtx, s.tenantID, utils.UnattributedCustomerID); err != nil {
					return err
				}
			}
			return s.deps.Cursors.Reset(txCtx, s.tenantID)
		})
		if err != nil {
			return NewBusinessError("FEEDBACK_CLEAR_FAILED", "Failed to clear feedback", err)
		}

		s.unindexBucketLocked()
		for _, c := range s.customers {
			c.Feedback = nil
		}
		s.fingerprints = make(map[string][]time.Time)
		s.knownFeedback = make(map[string]struct{})
		s.cursor = nil
		return nil
	}()
	if err != nil {
		return err
	}

	if s.deps.Store != nil {
		if err := s.deps.Store.Purge(ctx, s.tenantID); err != nil {
			s.deps.Logger.Printf("[session %s] remote purge failed: %v", s.tenantID, err)
		}
	}

	s.logActivity(ctx, nil, "", models.ActivityActionFeedbackCleared, utils.ToPtr("All feedback cleared"), nil, utils.ToPtr(true), nil)
	return nil
}

// Customers returns a snapshot of the tenant's collection, bucket first,
// safe to read after the lock is released
func (s *Session) Customers() []*models.Customer {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		cp := *c
		cp.Feedback = make([]models.FeedbackEntry, len(c.Feedback))
		copy(cp.Feedback, c.Feedback)
		out = append(out, &cp)
	}
	return out
}

// Close stops accepting mutations. The session manager calls this on shutdown.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func validateFeedback(text string, sentiment models.FeedbackSentiment) error {
	if (models.FeedbackEntry{Text: text}).Malformed() {
		return ErrEmptyFeedbackText
	}
	if !sentiment.Valid() {
		return ErrInvalidSentiment
	}
	return nil
}

// logActivity appends an audit record. Audit failures are logged and
// swallowed so they never abort the flow that produced them.
func (s *Session) logActivity(ctx context.Context, customerID *string, customerName, action string, description *string, customerIDs pq.StringArray, success *bool, errorMessage *string) {
	entry := &models.ActivityLog{
		TenantID:     s.tenantID,
		CustomerID:   customerID,
		CustomerName: customerName,
		Action:       action,
		Description:  description,
		CustomerIDs:  customerIDs,
		Success:      success,
		ErrorMessage: errorMessage,
		CreatedAt:    utils.UTCNow(),
	}
	if err := s.deps.Activity.Save(ctx, entry); err != nil {
		s.deps.Logger.Printf("[session %s] failed to record activity %s: %v", s.tenantID, action, err)
	}
}

func (s *Session) publish(kind, customerID, detail string) {
	if s.deps.Events == nil {
		return
	}
	s.deps.Events.Publish(services.Event{
		Kind:       kind,
		TenantID:   s.tenantID,
		CustomerID: customerID,
		Detail:     detail,
	})
}
