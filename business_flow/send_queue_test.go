package businessflow

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revlyhq/revly-backend/models"
	testingutil "github.com/revlyhq/revly-backend/testing"
	"github.com/revlyhq/revly-backend/utils"
)

func drainAll(t *testing.T, session *Session) {
	t.Helper()
	for session.QueueDepth() > 0 {
		_, err := session.DrainOnce(context.Background())
		require.NoError(t, err)
	}
}

func TestEnqueueSendIsAllOrNothing(t *testing.T) {
	env := newSessionEnv(t)
	testingutil.SeedCustomers(env.customers, testTenant, 2)
	session := env.newSession(t)

	err := session.EnqueueSend(context.Background(), []string{"c1", "ghost", "c2"})
	assert.True(t, IsCustomerNotFound(err))
	assert.Equal(t, 0, session.QueueDepth())
}

func TestEnqueueSendRejectsBucket(t *testing.T) {
	env := newSessionEnv(t)
	testingutil.SeedCustomers(env.customers, testTenant, 1)
	session := env.newSession(t)

	// Create the bucket by submitting unattributable feedback.
	_, err := session.SubmitFeedback(context.Background(), LocalFeedback{
		Phone:     utils.ToPtr("+19998887777"),
		Text:      "stray",
		Sentiment: models.FeedbackSentimentNegative,
	})
	require.NoError(t, err)

	err = session.EnqueueSend(context.Background(), []string{utils.UnattributedCustomerID})
	assert.True(t, IsUnattributedReadOnly(err))
	assert.Equal(t, 0, session.QueueDepth())
}

func TestEnqueueSendQueueFull(t *testing.T) {
	env := newSessionEnv(t)
	env.deps.Queue.MaxPending = 5
	ids := testingutil.SeedCustomers(env.customers, testTenant, 6)
	session := env.newSession(t)

	err := session.EnqueueSend(context.Background(), ids)
	assert.True(t, IsQueueFull(err))
	assert.Equal(t, 0, session.QueueDepth())

	// The first five fit; the sixth alone then overflows.
	require.NoError(t, session.EnqueueSend(context.Background(), ids[:5]))
	err = session.EnqueueSend(context.Background(), ids[5:])
	assert.True(t, IsQueueFull(err))
	assert.Equal(t, 5, session.QueueDepth())
}

func TestDrainOnceProcessesInBatches(t *testing.T) {
	env := newSessionEnv(t)
	ids := testingutil.SeedCustomers(env.customers, testTenant, 23)
	session := env.newSession(t)
	ctx := context.Background()

	require.NoError(t, session.EnqueueSend(ctx, ids))
	assert.Equal(t, 23, session.QueueDepth())
	assert.Contains(t, env.activity.Actions(testTenant), models.ActivityActionRequestQueued)

	n, err := session.DrainOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, 13, session.QueueDepth())

	n, err = session.DrainOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	n, err = session.DrainOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 0, session.QueueDepth())

	assert.Len(t, env.delivery.GetSentMessages(), 23)
	for _, id := range ids {
		assert.Equal(t, models.CustomerStatusSent, env.customers.Status(testTenant, id))
	}
}

func TestDrainSkipsReviewedCustomers(t *testing.T) {
	env := newSessionEnv(t)
	c := testingutil.NewTestCustomer(testTenant, "c1", "Dana", "+15550100001")
	c.Status = models.CustomerStatusReviewed
	require.NoError(t, env.customers.Save(context.Background(), c))
	session := env.newSession(t)

	require.NoError(t, session.EnqueueSend(context.Background(), []string{"c1"}))
	drainAll(t, session)

	assert.Empty(t, env.delivery.GetSentMessages())
	assert.Equal(t, models.CustomerStatusReviewed, env.customers.Status(testTenant, "c1"))
	assert.Contains(t, env.activity.Actions(testTenant), models.ActivityActionRequestSkipped)
}

func TestDeniedSendLeavesStatusUntouched(t *testing.T) {
	env := newSessionEnv(t)
	env.billing.SetProfile(testTenant, &models.CreditProfile{
		Status:    "canceled",
		HasPlan:   true,
		FetchedAt: utils.UTCNow(),
	})
	testingutil.SeedCustomers(env.customers, testTenant, 1)
	session := env.newSession(t)

	require.NoError(t, session.EnqueueSend(context.Background(), []string{"c1"}))
	drainAll(t, session)

	// A denial is not a delivery failure: the customer stays Pending so
	// the request can be retried once the subscription recovers.
	assert.Empty(t, env.delivery.GetSentMessages())
	assert.Equal(t, models.CustomerStatusPending, env.customers.Status(testTenant, "c1"))
	actions := env.activity.Actions(testTenant)
	assert.Contains(t, actions, models.ActivityActionSendDenied)
	assert.NotContains(t, actions, models.ActivityActionRequestFailed)
}

func TestMissingPhoneMarksFailedWithoutDelivery(t *testing.T) {
	env := newSessionEnv(t)
	c := testingutil.NewTestCustomer(testTenant, "c1", "Dana", "")
	require.NoError(t, env.customers.Save(context.Background(), c))
	session := env.newSession(t)

	require.NoError(t, session.EnqueueSend(context.Background(), []string{"c1"}))
	drainAll(t, session)

	assert.Empty(t, env.delivery.GetSentMessages())
	assert.Equal(t, models.CustomerStatusFailed, env.customers.Status(testTenant, "c1"))
	assert.Contains(t, env.activity.Actions(testTenant), models.ActivityActionRequestFailed)
}

func TestGatewayErrorMarksFailed(t *testing.T) {
	env := newSessionEnv(t)
	env.delivery.Err = assert.AnError
	testingutil.SeedCustomers(env.customers, testTenant, 1)
	session := env.newSession(t)

	require.NoError(t, session.EnqueueSend(context.Background(), []string{"c1"}))
	drainAll(t, session)

	assert.Equal(t, models.CustomerStatusFailed, env.customers.Status(testTenant, "c1"))
}

func TestRejectedDeliveryMarksFailed(t *testing.T) {
	env := newSessionEnv(t)
	env.delivery.FailFor["+15550100001"] = "BLACKLISTED"
	testingutil.SeedCustomers(env.customers, testTenant, 1)
	session := env.newSession(t)

	require.NoError(t, session.EnqueueSend(context.Background(), []string{"c1"}))
	drainAll(t, session)

	assert.Equal(t, models.CustomerStatusFailed, env.customers.Status(testTenant, "c1"))
}

func TestBillingOutageFailsOpen(t *testing.T) {
	env := newSessionEnv(t)
	env.billing.Err = assert.AnError
	testingutil.SeedCustomers(env.customers, testTenant, 1)
	session := env.newSession(t)

	require.NoError(t, session.EnqueueSend(context.Background(), []string{"c1"}))
	drainAll(t, session)

	// A flaky billing dependency must not stop outreach.
	assert.Len(t, env.delivery.GetSentMessages(), 1)
	assert.Equal(t, models.CustomerStatusSent, env.customers.Status(testTenant, "c1"))
}

func TestSentMessageCarriesReviewLink(t *testing.T) {
	env := newSessionEnv(t)
	testingutil.SeedCustomers(env.customers, testTenant, 1)
	session := env.newSession(t)

	require.NoError(t, session.EnqueueSend(context.Background(), []string{"c1"}))
	drainAll(t, session)

	sent := env.delivery.GetSentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "+15550100001", sent[0].Recipient)
	assert.Contains(t, sent[0].Message, "Customer 1")
	assert.Contains(t, sent[0].Message, "https://links.test/r/")

	// The embedded token verifies and names this customer.
	parts := strings.Split(sent[0].Message, "/r/")
	require.Len(t, parts, 2)
	claims, err := env.deps.Links.Verify(parts[1])
	require.NoError(t, err)
	assert.Equal(t, testTenant, claims.TenantID)
	assert.Equal(t, "c1", claims.CustomerID)
}

func TestDrainOnceStopsOnCancelledContext(t *testing.T) {
	env := newSessionEnv(t)
	ids := testingutil.SeedCustomers(env.customers, testTenant, 3)
	session := env.newSession(t)

	require.NoError(t, session.EnqueueSend(context.Background(), ids))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n, err := session.DrainOnce(ctx)
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, env.delivery.GetSentMessages())

	// The batch was never taken off the queue, so nothing is lost.
	assert.Equal(t, 3, session.QueueDepth())
	n, err = session.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, env.delivery.GetSentMessages(), 3)
}

func TestDrainLoopServicesQueue(t *testing.T) {
	env := newSessionEnv(t)
	ids := testingutil.SeedCustomers(env.customers, testTenant, 3)
	session := env.newSession(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		session.DrainLoop(ctx)
	}()

	require.NoError(t, session.EnqueueSend(ctx, ids))

	require.Eventually(t, func() bool {
		return len(env.delivery.GetSentMessages()) == 3
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("drain loop did not stop after cancellation")
	}
}
