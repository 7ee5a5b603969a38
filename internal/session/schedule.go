package session

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/robfig/cron/v3"
)

// Scheduler triggers recurring senate sessions from cron expressions,
// playing the calendar-driver role for long-running deployments.
type Scheduler struct {
	driver *Driver
	cron   *cron.Cron
	logger *log.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// NewScheduler creates a scheduler around driver.
func NewScheduler(driver *Driver, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		driver:  driver,
		cron:    cron.New(),
		logger:  logger,
		entries: make(map[string]cron.EntryID),
	}
}

// Add schedules a recurring debate on topic. Re-adding a topic replaces
// its schedule.
func (s *Scheduler) Add(spec, topic string, rounds int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.entries[topic]; ok {
		s.cron.Remove(old)
	}
	id, err := s.cron.AddFunc(spec, func() {
		s.logger.Printf("session: scheduled debate on %q", topic)
		if _, err := s.driver.RunDebate(context.Background(), topic, rounds); err != nil {
			s.logger.Printf("session: scheduled debate on %q failed: %v", topic, err)
		}
	})
	if err != nil {
		return fmt.Errorf("session: schedule %q: %w", topic, err)
	}
	s.entries[topic] = id
	return nil
}

// Remove drops the schedule for topic. No-op if absent.
func (s *Scheduler) Remove(topic string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.entries[topic]; ok {
		s.cron.Remove(id)
		delete(s.entries, topic)
	}
}

// Start begins firing schedules.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
