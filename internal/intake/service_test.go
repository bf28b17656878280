package intake

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zachkp/portfolio/internal/mailer"
	"github.com/Zachkp/portfolio/internal/submission"
)

type fakeSender struct {
	mu    sync.Mutex
	sent  []mailer.Message
	err   error
	block bool
}

func (f *fakeSender) Send(ctx context.Context, msg mailer.Message) error {
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type failingStore struct {
	submission.Store
}

func (failingStore) Append(ctx context.Context, d submission.Draft) (submission.Submission, error) {
	return submission.Submission{}, submission.ErrStorageWrite
}

type fixture struct {
	svc     *Service
	store   submission.Store
	sender  *fakeSender
	metrics *Metrics
}

func newFixture(t *testing.T, sender *fakeSender, store submission.Store) *fixture {
	t.Helper()
	if store == nil {
		store = submission.NewFileStore(filepath.Join(t.TempDir(), "submissions.json"))
	}
	metrics := NewMetrics(prometheus.NewRegistry())
	opts := ServiceOptions{
		Store:         store,
		Recipient:     "owner@example.com",
		SubjectPrefix: "Portfolio Contact: ",
		SendTimeout:   200 * time.Millisecond,
		Logger:        zerolog.Nop(),
		Metrics:       metrics,
	}
	if sender != nil {
		opts.Sender = sender
	}
	return &fixture{svc: NewService(opts), store: store, sender: sender, metrics: metrics}
}

func (f *fixture) count(t *testing.T) int {
	t.Helper()
	subs, err := f.svc.List(context.Background())
	require.NoError(t, err)
	return len(subs)
}

func (f *fixture) outcome(label string) float64 {
	return testutil.ToFloat64(f.metrics.submissions.WithLabelValues(label))
}

var ann = Input{Name: "Ann", Email: "ann@x.com", Subject: "Hi", Message: "Hello there"}

func TestSubmitSuccess(t *testing.T) {
	f := newFixture(t, &fakeSender{}, nil)

	sub, err := f.svc.Submit(context.Background(), ann)
	require.NoError(t, err)

	status, res := Respond(err)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.Message)

	subs, err := f.svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, sub.ID, subs[0].ID)
	assert.Equal(t, "Ann", subs[0].Name)
	assert.Equal(t, "ann@x.com", subs[0].Email)
	assert.Equal(t, "Hi", subs[0].Subject)
	assert.Equal(t, "Hello there", subs[0].Message)
	assert.NotEmpty(t, subs[0].ID)
	assert.False(t, subs[0].Timestamp.IsZero())

	require.Len(t, f.sender.sent, 1)
	msg := f.sender.sent[0]
	assert.Equal(t, "owner@example.com", msg.To)
	assert.Equal(t, "ann@x.com", msg.ReplyTo)
	assert.Equal(t, "Portfolio Contact: Hi", msg.Subject)
	assert.Equal(t, 1.0, f.outcome(outcomeAccepted))
}

func TestSubmitMissingFields(t *testing.T) {
	inputs := map[string]Input{
		"name":    {Name: "", Email: "ann@x.com", Subject: "Hi", Message: "Hello"},
		"email":   {Name: "Ann", Email: "", Subject: "Hi", Message: "Hello"},
		"subject": {Name: "Ann", Email: "ann@x.com", Subject: "   ", Message: "Hello"},
		"message": {Name: "Ann", Email: "ann@x.com", Subject: "Hi", Message: "\n\t "},
		"all":     {},
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, &fakeSender{}, nil)

			_, err := f.svc.Submit(context.Background(), in)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, ReasonMissingFields, verr.Reason)

			status, res := Respond(err)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.False(t, res.Success)
			assert.Contains(t, res.Message, "required fields")

			assert.Equal(t, 0, f.count(t))
			assert.Empty(t, f.sender.sent)
		})
	}
}

func TestSubmitInvalidEmail(t *testing.T) {
	for _, email := range []string{"not-an-email", "ann@localhost", "ann at x.com", "ann@x .com", "@x.com", "ann@.com"} {
		t.Run(email, func(t *testing.T) {
			f := newFixture(t, &fakeSender{}, nil)

			_, err := f.svc.Submit(context.Background(), Input{Name: "Ann", Email: email, Subject: "Hi", Message: "Hello"})
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, ReasonInvalidEmail, verr.Reason)

			_, res := Respond(err)
			assert.False(t, res.Success)
			assert.Contains(t, res.Message, "valid email")
			assert.Equal(t, 0, f.count(t))
			assert.Equal(t, 1.0, f.outcome(ReasonInvalidEmail))
		})
	}
}

func TestSubmitStoresFieldsAsPosted(t *testing.T) {
	f := newFixture(t, &fakeSender{}, nil)

	_, err := f.svc.Submit(context.Background(), Input{
		Name:    "  Ann ",
		Email:   " ann@x.com ",
		Subject: " Hi ",
		Message: "  keep\nthis  ",
	})
	require.NoError(t, err)

	subs, err := f.svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "  Ann ", subs[0].Name)
	assert.Equal(t, " ann@x.com ", subs[0].Email)
	assert.Equal(t, " Hi ", subs[0].Subject)
	assert.Equal(t, "  keep\nthis  ", subs[0].Message)

	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "ann@x.com", f.sender.sent[0].ReplyTo)
	assert.Equal(t, "Portfolio Contact: Hi", f.sender.sent[0].Subject)
}

func TestSubmitWithoutMailConfigWritesNothing(t *testing.T) {
	f := newFixture(t, nil, nil)

	_, err := f.svc.Submit(context.Background(), ann)
	var cerr *ConfigurationError
	require.ErrorAs(t, err, &cerr)

	status, res := Respond(err)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "unavailable")
	assert.Equal(t, 0, f.count(t))
	assert.Equal(t, 1.0, f.outcome(outcomeConfiguration))
}

func TestSubmitWithoutRecipient(t *testing.T) {
	svc := NewService(ServiceOptions{
		Store:  submission.NewFileStore(filepath.Join(t.TempDir(), "s.json")),
		Sender: &fakeSender{},
		Logger: zerolog.Nop(),
	})

	_, err := svc.Submit(context.Background(), ann)
	var cerr *ConfigurationError
	assert.ErrorAs(t, err, &cerr)
}

func TestSubmitValidationBeforeConfiguration(t *testing.T) {
	f := newFixture(t, nil, nil)

	_, err := f.svc.Submit(context.Background(), Input{Email: "ann@x.com"})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestSubmitPersistenceFailureSkipsNotification(t *testing.T) {
	sender := &fakeSender{}
	f := newFixture(t, sender, failingStore{})

	_, err := f.svc.Submit(context.Background(), ann)
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.True(t, errors.Is(err, submission.ErrStorageWrite))
	assert.Empty(t, sender.sent)

	status, res := Respond(err)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.False(t, res.Success)
	assert.Equal(t, 1.0, f.outcome(outcomePersistence))
}

func TestSubmitDeliveryFailureKeepsRecord(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		kind    mailer.FailureKind
		message string
	}{
		{"auth", &textproto.Error{Code: 535, Msg: "bad credentials"}, mailer.KindAuth, "authentication"},
		{"connection", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, mailer.KindConnection, "could not be reached"},
		{"other", errors.New("552 message too large"), mailer.KindOther, "could not be sent"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, &fakeSender{err: tc.err}, nil)

			sub, err := f.svc.Submit(context.Background(), ann)
			var derr *DeliveryError
			require.ErrorAs(t, err, &derr)
			assert.Equal(t, tc.kind, derr.Kind)
			assert.Equal(t, sub.ID, derr.SubmissionID)

			status, res := Respond(err)
			assert.GreaterOrEqual(t, status, 500)
			assert.False(t, res.Success)
			assert.Contains(t, res.Message, tc.message)

			// the record is already durable
			assert.Equal(t, 1, f.count(t))
		})
	}
}

func TestSubmitComposeFailureIsLogged(t *testing.T) {
	f := newFixture(t, &fakeSender{}, nil)
	var logs bytes.Buffer
	f.svc.log = zerolog.New(&logs)
	f.svc.compose = func(submission.Submission, string, string) (mailer.Message, error) {
		return mailer.Message{}, errors.New("template exploded")
	}

	sub, err := f.svc.Submit(context.Background(), ann)
	var derr *DeliveryError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, mailer.KindOther, derr.Kind)
	assert.Empty(t, f.sender.sent)
	assert.Equal(t, 1, f.count(t))
	assert.Equal(t, 1.0, f.outcome("delivery_other"))

	assert.Contains(t, logs.String(), `"level":"error"`)
	assert.Contains(t, logs.String(), `"submission_id":"`+sub.ID+`"`)
	assert.Contains(t, logs.String(), "template exploded")
}

func TestSubmitSendTimeout(t *testing.T) {
	f := newFixture(t, &fakeSender{block: true}, nil)

	start := time.Now()
	_, err := f.svc.Submit(context.Background(), ann)
	var derr *DeliveryError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, mailer.KindOther, derr.Kind)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 1, f.count(t))
	assert.Equal(t, 1.0, f.outcome("delivery_other"))
}

func TestSubmitSequence(t *testing.T) {
	f := newFixture(t, &fakeSender{}, nil)

	var ids []string
	for i := 0; i < 5; i++ {
		sub, err := f.svc.Submit(context.Background(), ann)
		require.NoError(t, err)
		ids = append(ids, sub.ID)
	}

	subs, err := f.svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, subs, 5)
	for i := range subs {
		assert.Equal(t, ids[i], subs[i].ID)
	}
}

func TestComposeNotification(t *testing.T) {
	sub := submission.Submission{
		ID:      "abc",
		Name:    "Ann <script>",
		Email:   "ann@x.com",
		Subject: "Hi & bye",
		Message: "first line\nsecond <b>line</b>",
	}

	msg, err := composeNotification(sub, "owner@example.com", "Contact Form: ")
	require.NoError(t, err)

	assert.Equal(t, "Contact Form: Hi & bye", msg.Subject)
	assert.Equal(t, "ann@x.com", msg.ReplyTo)
	assert.Contains(t, msg.Text, "Name: Ann <script>")
	assert.Contains(t, msg.Text, "first line\nsecond <b>line</b>")
	assert.NotContains(t, msg.Text, "<br>")

	assert.Contains(t, msg.HTML, "first line<br>second &lt;b&gt;line&lt;/b&gt;")
	assert.Contains(t, msg.HTML, "Ann &lt;script&gt;")
	assert.Contains(t, msg.HTML, "Hi &amp; bye")
	assert.False(t, strings.Contains(msg.HTML, "<script>"))
}

func TestRespondStorageCorrupt(t *testing.T) {
	status, res := Respond(errors.Join(submission.ErrStorageCorrupt, errors.New("bad json")))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.False(t, res.Success)
	assert.Equal(t, MsgStorageCorrupt, res.Message)
}
