package notify

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/job-comb/app/tasks"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

func sweepResult() *tasks.SweepResult {
	return &tasks.SweepResult{
		Feeds:    2,
		Imported: 4,
		Skipped:  3,
		Errors:   1,
		Failed:   []string{"catho"},
		Runs: []tasks.RunResult{
			{FeedName: "indeed", State: tasks.StateDone, Imported: 4, Skipped: 3, Errors: 1},
			{FeedName: "catho", State: tasks.StateFailed},
		},
	}
}

func TestEmailNotifier_SendsSummary(t *testing.T) {
	sender := &mockSender{}
	sender.On("Send", mock.Anything, "ops@example.com", "[Job Comb] Job Import Completed",
		mock.MatchedBy(func(body string) bool {
			return strings.Contains(body, "Total jobs imported: 4") &&
				strings.Contains(body, "indeed: 4 imported, 3 skipped, 1 errors (done)") &&
				strings.Contains(body, "Failed feeds: catho") &&
				strings.Contains(body, "Time: 2025-03-05 12:00:00")
		})).Return(nil).Once()

	notifier := NewEmailNotifier(sender, "ops@example.com", "Job Comb")
	notifier.now = func() time.Time { return time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC) }

	require.NoError(t, notifier.NotifyImport(context.Background(), sweepResult()))
	sender.AssertExpectations(t)
}

func TestEmailNotifier_SkipsWithoutRecipientOrImports(t *testing.T) {
	sender := &mockSender{}

	require.NoError(t, NewEmailNotifier(sender, "", "Job Comb").NotifyImport(context.Background(), sweepResult()))
	require.NoError(t, NewEmailNotifier(sender, "ops@example.com", "Job Comb").NotifyImport(context.Background(), &tasks.SweepResult{}))

	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEmailNotifier_WrapsSenderError(t *testing.T) {
	sender := &mockSender{}
	sender.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("refused")).Once()

	err := NewEmailNotifier(sender, "ops@example.com", "Job Comb").NotifyImport(context.Background(), sweepResult())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")
}

func TestSMTPSender_BuildsMessage(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	var gotAuth smtp.Auth

	sender := NewSMTPSender("mail.example.com:587", "jobs@example.com", "user", "secret")
	sender.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotFrom, gotTo, gotMsg = addr, a, from, to, msg
		return nil
	}

	require.NoError(t, sender.Send(context.Background(), "ops@example.com", "Subject line", "line one\nline two"))

	assert.Equal(t, "mail.example.com:587", gotAddr)
	assert.NotNil(t, gotAuth)
	assert.Equal(t, "jobs@example.com", gotFrom)
	assert.Equal(t, []string{"ops@example.com"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: Subject line\r\n")
	assert.Contains(t, string(gotMsg), "line one\r\nline two")
}

func TestSMTPSender_NoAuthWithoutUsername(t *testing.T) {
	sender := NewSMTPSender("localhost:25", "jobs@example.com", "", "")
	sender.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		assert.Nil(t, a)
		return errors.New("connection refused")
	}

	err := sender.Send(context.Background(), "ops@example.com", "s", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "localhost:25")
}
