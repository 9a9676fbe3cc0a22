// Package janitor fails generation records whose gateway callback never
// arrived.
package janitor

import (
	"fmt"
	"log"

	"github.com/robfig/cron/v3"

	"github.com/loomstudio/loom/pkg/generation"
	"github.com/loomstudio/loom/pkg/storage"
)

// timeoutMessage is recorded on generations the sweep gives up on
const timeoutMessage = "generation timed out"

// Janitor periodically fails pending generations that have been waiting
// longer than the configured cutoff.
type Janitor struct {
	store             storage.GenerationStore
	schedule          string
	staleAfterSeconds int64
	cron              *cron.Cron
}

// New creates a janitor sweeping on the given cron schedule
func New(store storage.GenerationStore, schedule string, staleAfterSeconds int64) *Janitor {
	return &Janitor{
		store:             store,
		schedule:          schedule,
		staleAfterSeconds: staleAfterSeconds,
	}
}

// Start schedules the sweep. Returns an error for an invalid schedule.
func (j *Janitor) Start() error {
	c := cron.New()
	if _, err := c.AddFunc(j.schedule, func() {
		if _, err := j.Sweep(); err != nil {
			log.Printf("Generation sweep failed: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid janitor schedule %q: %w", j.schedule, err)
	}
	c.Start()
	j.cron = c
	log.Printf("Generation janitor started, schedule %q, cutoff %ds", j.schedule, j.staleAfterSeconds)
	return nil
}

// Stop halts the schedule. Any sweep in flight finishes first.
func (j *Janitor) Stop() {
	if j.cron != nil {
		ctx := j.cron.Stop()
		<-ctx.Done()
	}
}

// Sweep fails every pending generation older than the cutoff and returns
// how many records it moved.
func (j *Janitor) Sweep() (int, error) {
	stale, err := j.store.ListStalePending(j.staleAfterSeconds)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale generations: %w", err)
	}

	failed := 0
	for _, gen := range stale {
		if err := j.store.UpdateGenerationStatus(gen.ID, generation.StatusFailed, "", timeoutMessage); err != nil {
			log.Printf("Failed to time out generation %s: %v", gen.ID, err)
			continue
		}
		failed++
	}
	if failed > 0 {
		log.Printf("Timed out %d stale generation(s)", failed)
	}
	return failed, nil
}
