package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lysyi3m/job-comb/app/tasks"
)

var _ tasks.Notifier = (*EmailNotifier)(nil)

// Sender delivers a plain text message to a single recipient.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

type EmailNotifier struct {
	sender    Sender
	recipient string
	siteName  string
	now       func() time.Time
}

func NewEmailNotifier(sender Sender, recipient, siteName string) *EmailNotifier {
	return &EmailNotifier{
		sender:    sender,
		recipient: recipient,
		siteName:  siteName,
		now:       time.Now,
	}
}

// NotifyImport mails a short summary of a sweep. Without a recipient it
// does nothing.
func (n *EmailNotifier) NotifyImport(ctx context.Context, result *tasks.SweepResult) error {
	if n.recipient == "" || result == nil || result.Imported == 0 {
		return nil
	}

	subject := fmt.Sprintf("[%s] Job Import Completed", n.siteName)
	body := n.body(result)

	if err := n.sender.Send(ctx, n.recipient, subject, body); err != nil {
		return fmt.Errorf("failed to send import notification: %w", err)
	}

	slog.Info("Import notification sent", "recipient", n.recipient, "imported", result.Imported)
	return nil
}

func (n *EmailNotifier) body(result *tasks.SweepResult) string {
	var b strings.Builder

	b.WriteString("Hello,\n\nThe scheduled job import has completed successfully.\n\n")
	fmt.Fprintf(&b, "Total jobs imported: %d\n", result.Imported)
	fmt.Fprintf(&b, "Skipped: %d\n", result.Skipped)
	fmt.Fprintf(&b, "Errors: %d\n", result.Errors)

	if len(result.Runs) > 0 {
		b.WriteString("\nPer feed:\n")
		for _, run := range result.Runs {
			fmt.Fprintf(&b, "  %s: %d imported, %d skipped, %d errors (%s)\n",
				run.FeedName, run.Imported, run.Skipped, run.Errors, run.State)
		}
	}

	if len(result.Failed) > 0 {
		fmt.Fprintf(&b, "\nFailed feeds: %s\n", strings.Join(result.Failed, ", "))
	}

	fmt.Fprintf(&b, "\nTime: %s\n", n.now().Format("2006-01-02 15:04:05"))

	return b.String()
}
