package businessflow

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revlyhq/revly-backend/app/services"
	"github.com/revlyhq/revly-backend/models"
	testingutil "github.com/revlyhq/revly-backend/testing"
	"github.com/revlyhq/revly-backend/utils"
)

const testTenant = "tenant-1"

// sessionEnv bundles the fakes a session test needs
type sessionEnv struct {
	customers *testingutil.FakeCustomerRepository
	feedback  *testingutil.FakeFeedbackEntryRepository
	activity  *testingutil.FakeActivityLogRepository
	cursors   *testingutil.FakeSyncCursorRepository
	delivery  *services.MockDeliveryService
	billing   *services.MockBillingService
	store     *services.MockFeedbackStoreClient
	cache     *services.MemoryProfileCache
	deps      SessionDeps
}

func newSessionEnv(t *testing.T) *sessionEnv {
	t.Helper()

	env := &sessionEnv{
		customers: testingutil.NewFakeCustomerRepository(),
		feedback:  testingutil.NewFakeFeedbackEntryRepository(),
		activity:  testingutil.NewFakeActivityLogRepository(),
		cursors:   testingutil.NewFakeSyncCursorRepository(),
		delivery:  services.NewMockDeliveryService(),
		billing:   services.NewMockBillingService(),
		store:     services.NewMockFeedbackStoreClient(),
		cache:     services.NewMemoryProfileCache(),
	}
	env.billing.SetProfile(testTenant, &models.CreditProfile{
		Status:    models.SubscriptionStatusActive,
		HasPlan:   true,
		FetchedAt: utils.UTCNow(),
	})

	links, err := services.NewLinkTokenService("test-secret-key-0123456789abcdef", time.Hour, "revly-test", "links.test")
	require.NoError(t, err)

	quiet := log.New(io.Discard, "", 0)
	env.deps = SessionDeps{
		Customers: env.customers,
		Feedback:  env.feedback,
		Activity:  env.activity,
		Cursors:   env.cursors,
		Delivery:  env.delivery,
		Gate:      NewCreditGate(env.billing, env.cache, time.Minute, quiet),
		Store:     env.store,
		Links:     links,
		Events:    services.NewEventBus(),
		Queue: QueueSettings{
			BatchSize:  10,
			ItemDelay:  time.Millisecond,
			BatchDelay: time.Millisecond,
			MaxPending: 100,
		},
		Logger: quiet,
	}
	return env
}

func (e *sessionEnv) newSession(t *testing.T) *Session {
	t.Helper()
	session, err := NewSession(context.Background(), testTenant, e.deps)
	require.NoError(t, err)
	return session
}

func findCustomer(customers []*models.Customer, id string) *models.Customer {
	for _, c := range customers {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func TestSubmitFeedbackRoutesByCustomerID(t *testing.T) {
	env := newSessionEnv(t)
	testingutil.SeedCustomers(env.customers, testTenant, 2)
	session := env.newSession(t)

	entry, err := session.SubmitFeedback(context.Background(), LocalFeedback{
		CustomerID: utils.ToPtr("c1"),
		Text:       "Loved the haircut",
		Sentiment:  models.FeedbackSentimentPositive,
	})
	require.NoError(t, err)

	assert.Equal(t, "c1", entry.CustomerID)
	assert.Equal(t, models.FeedbackSourceLocal, entry.Source)
	assert.Equal(t, 0, entry.Position)
	assert.Equal(t, 1, env.feedback.Count(testTenant))
	assert.Contains(t, env.activity.Actions(testTenant), models.ActivityActionFeedbackRecorded)

	c1 := findCustomer(session.Customers(), "c1")
	require.NotNil(t, c1)
	require.Len(t, c1.Feedback, 1)
	assert.Equal(t, entry.ID, c1.Feedback[0].ID)
}

func TestSubmitFeedbackRoutesByNormalizedPhone(t *testing.T) {
	env := newSessionEnv(t)
	testingutil.SeedCustomers(env.customers, testTenant, 1) // phone +15550100001
	session := env.newSession(t)

	// Same number, wildly different formatting.
	entry, err := session.SubmitFeedback(context.Background(), LocalFeedback{
		Phone:     utils.ToPtr("1 (555) 010-0001"),
		Text:      "Quick and friendly",
		Sentiment: models.FeedbackSentimentPositive,
	})
	require.NoError(t, err)
	assert.Equal(t, "c1", entry.CustomerID)
}

func TestSubmitFeedbackUnmatchedLandsInBucket(t *testing.T) {
	env := newSessionEnv(t)
	testingutil.SeedCustomers(env.customers, testTenant, 1)
	session := env.newSession(t)

	entry, err := session.SubmitFeedback(context.Background(), LocalFeedback{
		Phone:     utils.ToPtr("+19998887777"),
		Text:      "Never been here but leaving a review anyway",
		Sentiment: models.FeedbackSentimentNegative,
	})
	require.NoError(t, err)
	assert.Equal(t, utils.UnattributedCustomerID, entry.CustomerID)

	// The bucket is pinned to the head of the collection and persisted.
	customers := session.Customers()
	require.NotEmpty(t, customers)
	assert.True(t, customers[0].IsUnattributed())

	stored, err := env.customers.ByID(context.Background(), testTenant, utils.UnattributedCustomerID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, utils.UnattributedCustomerName, stored.Name)
}

func TestSubmitFeedbackValidation(t *testing.T) {
	env := newSessionEnv(t)
	testingutil.SeedCustomers(env.customers, testTenant, 1)
	session := env.newSession(t)

	_, err := session.SubmitFeedback(context.Background(), LocalFeedback{
		CustomerID: utils.ToPtr("c1"),
		Text:       "   ",
		Sentiment:  models.FeedbackSentimentPositive,
	})
	assert.True(t, IsEmptyFeedbackText(err))

	_, err = session.SubmitFeedback(context.Background(), LocalFeedback{
		CustomerID: utils.ToPtr("c1"),
		Text:       "fine",
		Sentiment:  models.FeedbackSentiment("meh"),
	})
	assert.True(t, IsInvalidSentiment(err))

	_, err = session.SubmitFeedback(context.Background(), LocalFeedback{
		CustomerID: utils.ToPtr("nope"),
		Text:       "fine",
		Sentiment:  models.FeedbackSentimentPositive,
	})
	assert.True(t, IsCustomerNotFound(err))

	assert.Equal(t, 0, env.feedback.Count(testTenant))
}

func TestSubmitFeedbackSaveFailureLeavesNoTrace(t *testing.T) {
	env := newSessionEnv(t)
	testingutil.SeedCustomers(env.customers, testTenant, 1)
	session := env.newSession(t)
	ctx := context.Background()

	env.feedback.SaveErr = assert.AnError
	in := LocalFeedback{
		CustomerID: utils.ToPtr("c1"),
		Text:       "Great cut",
		Sentiment:  models.FeedbackSentimentPositive,
	}
	_, err := session.SubmitFeedback(ctx, in)
	require.Error(t, err)

	// The failed save leaves no ghost entry in the session.
	c1 := findCustomer(session.Customers(), "c1")
	require.NotNil(t, c1)
	assert.Empty(t, c1.Feedback)

	// And no fingerprint: the same submission goes through once the
	// store recovers instead of being rejected as a duplicate.
	env.feedback.SaveErr = nil
	entry, err := session.SubmitFeedback(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "c1", entry.CustomerID)
	assert.Equal(t, 1, env.feedback.Count(testTenant))
}

func TestSubmitFeedbackSaveFailureUnwindsBucket(t *testing.T) {
	env := newSessionEnv(t)
	testingutil.SeedCustomers(env.customers, testTenant, 1)
	session := env.newSession(t)

	env.feedback.SaveErr = assert.AnError
	_, err := session.SubmitFeedback(context.Background(), LocalFeedback{
		Phone:     utils.ToPtr("+19998887777"),
		Text:      "stray",
		Sentiment: models.FeedbackSentimentNegative,
	})
	require.Error(t, err)

	assert.Nil(t, findCustomer(session.Customers(), utils.UnattributedCustomerID))
}

func TestSubmitFeedbackMovesClickedToReviewed(t *testing.T) {
	env := newSessionEnv(t)
	c := testingutil.NewTestCustomer(testTenant, "c1", "Dana", "+15550100001")
	c.Status = models.CustomerStatusClicked
	require.NoError(t, env.customers.Save(context.Background(), c))
	session := env.newSession(t)

	_, err := session.SubmitFeedback(context.Background(), LocalFeedback{
		CustomerID: utils.ToPtr("c1"),
		Text:       "Five stars",
		Sentiment:  models.FeedbackSentimentPositive,
	})
	require.NoError(t, err)

	assert.Equal(t, models.CustomerStatusReviewed, findCustomer(session.Customers(), "c1").Status)
	assert.Equal(t, models.CustomerStatusReviewed, env.customers.Status(testTenant, "c1"))
	assert.Contains(t, env.activity.Actions(testTenant), models.ActivityActionReviewReceived)
}

func TestRecordClick(t *testing.T) {
	env := newSessionEnv(t)
	sent := testingutil.NewTestCustomer(testTenant, "c1", "Dana", "+15550100001")
	sent.Status = models.CustomerStatusSent
	require.NoError(t, env.customers.Save(context.Background(), sent))
	pending := testingutil.NewTestCustomer(testTenant, "c2", "Eli", "+15550100002")
	require.NoError(t, env.customers.Save(context.Background(), pending))
	session := env.newSession(t)

	c, err := session.RecordClick(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, models.CustomerStatusClicked, c.Status)
	assert.Equal(t, models.CustomerStatusClicked, env.customers.Status(testTenant, "c1"))

	// Repeated clicks are a no-op, not an error.
	c, err = session.RecordClick(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, models.CustomerStatusClicked, c.Status)

	// A click before any send is a forbidden transition.
	_, err = session.RecordClick(context.Background(), "c2")
	assert.True(t, IsInvalidTransition(err))

	_, err = session.RecordClick(context.Background(), "ghost")
	assert.True(t, IsCustomerNotFound(err))
}

func TestAdvanceCursorIsMonotonic(t *testing.T) {
	env := newSessionEnv(t)
	session := env.newSession(t)
	ctx := context.Background()

	assert.Nil(t, session.Cursor())

	t1 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, session.AdvanceCursor(ctx, t1))
	require.NotNil(t, session.Cursor())
	assert.True(t, session.Cursor().Equal(t1))

	// Equal is allowed, backwards is not.
	require.NoError(t, session.AdvanceCursor(ctx, t1))
	err := session.AdvanceCursor(ctx, t1.Add(-time.Hour))
	assert.ErrorIs(t, err, ErrCursorMovedBackwards)
	assert.True(t, session.Cursor().Equal(t1))

	stored, err := env.cursors.ByTenant(ctx, testTenant)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.NotNil(t, stored.LastRemoteSync)
	assert.True(t, stored.LastRemoteSync.Equal(t1))
}

func TestCursorSurvivesSessionReload(t *testing.T) {
	env := newSessionEnv(t)
	session := env.newSession(t)
	t1 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, session.AdvanceCursor(context.Background(), t1))

	reloaded := env.newSession(t)
	require.NotNil(t, reloaded.Cursor())
	assert.True(t, reloaded.Cursor().Equal(t1))
}

func TestResetAll(t *testing.T) {
	env := newSessionEnv(t)
	testingutil.SeedCustomers(env.customers, testTenant, 2)
	session := env.newSession(t)
	ctx := context.Background()

	_, err := session.SubmitFeedback(ctx, LocalFeedback{
		CustomerID: utils.ToPtr("c1"),
		Text:       "Great",
		Sentiment:  models.FeedbackSentimentPositive,
	})
	require.NoError(t, err)
	_, err = session.SubmitFeedback(ctx, LocalFeedback{
		Phone:     utils.ToPtr("+19998887777"),
		Text:      "Who is this",
		Sentiment: models.FeedbackSentimentNegative,
	})
	require.NoError(t, err)
	require.NoError(t, session.AdvanceCursor(ctx, utils.UTCNow()))

	require.NoError(t, session.ResetAll(ctx))

	// Feedback, bucket, and cursor are gone; real customers and their
	// statuses survive.
	assert.Equal(t, 0, env.feedback.Count(testTenant))
	assert.Nil(t, session.Cursor())
	customers := session.Customers()
	assert.Len(t, customers, 2)
	for _, c := range customers {
		assert.False(t, c.IsUnattributed())
		assert.Empty(t, c.Feedback)
	}
	stored, err := env.customers.ByID(ctx, testTenant, utils.UnattributedCustomerID)
	require.NoError(t, err)
	assert.Nil(t, stored)
	assert.Contains(t, env.store.Purged, testTenant)
	assert.Contains(t, env.activity.Actions(testTenant), models.ActivityActionFeedbackCleared)
}

func TestResetAllForgetsFingerprints(t *testing.T) {
	env := newSessionEnv(t)
	testingutil.SeedCustomers(env.customers, testTenant, 1)
	session := env.newSession(t)
	ctx := context.Background()

	record := testingutil.NewRemoteFeedback("r1", "+15550100001", "Great cut", "positive", utils.UTCNow())
	result, err := session.ReconcileRemote(ctx, []services.RemoteFeedback{record})
	require.NoError(t, err)
	require.Equal(t, 1, result.Accepted)

	require.NoError(t, session.ResetAll(ctx))

	// After a wipe the same record is new again.
	result, err = session.ReconcileRemote(ctx, []services.RemoteFeedback{record})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Accepted)
	assert.Equal(t, 0, result.Known)
}

func TestCustomersReturnsSnapshot(t *testing.T) {
	env := newSessionEnv(t)
	testingutil.SeedCustomers(env.customers, testTenant, 1)
	session := env.newSession(t)

	snapshot := session.Customers()
	require.Len(t, snapshot, 1)
	snapshot[0].Name = "mutated"
	snapshot[0].Feedback = append(snapshot[0].Feedback, models.FeedbackEntry{ID: "fake"})

	fresh := session.Customers()
	assert.Equal(t, "Customer 1", fresh[0].Name)
	assert.Empty(t, fresh[0].Feedback)
}

func TestClosedSessionRejectsMutations(t *testing.T) {
	env := newSessionEnv(t)
	testingutil.SeedCustomers(env.customers, testTenant, 1)
	session := env.newSession(t)
	session.Close()

	_, err := session.SubmitFeedback(context.Background(), LocalFeedback{
		CustomerID: utils.ToPtr("c1"),
		Text:       "too late",
		Sentiment:  models.FeedbackSentimentPositive,
	})
	assert.True(t, IsSessionClosed(err))

	err = session.EnqueueSend(context.Background(), []string{"c1"})
	assert.True(t, IsSessionClosed(err))

	err = session.AdvanceCursor(context.Background(), utils.UTCNow())
	assert.True(t, IsSessionClosed(err))
}
