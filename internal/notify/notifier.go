// Package notify defines the notification collaborator interface. Actual
// delivery (mail, chat, pager) lives outside this service.
package notify

import (
	"context"
	"log"

	"github.com/rpattn/batchctl/internal/domain"
)

// Notifier receives the final state of a run.
type Notifier interface {
	RunFinished(ctx context.Context, run domain.PackageRun, errorMessage *string) error
}

// LogNotifier writes run outcomes to the process log. It is the default
// collaborator when no external delivery is configured.
type LogNotifier struct{}

// RunFinished implements Notifier.
func (LogNotifier) RunFinished(_ context.Context, run domain.PackageRun, errorMessage *string) error {
	if errorMessage != nil {
		log.Printf("[RUN] %s finished with status %s: %s", run.PackageName, run.Status, *errorMessage)
		return nil
	}
	log.Printf("[RUN] %s finished with status %s (extracted=%d loaded=%d rejected=%d)",
		run.PackageName, run.Status, run.RecordsExtracted, run.RecordsLoaded, run.RecordsRejected)
	return nil
}
