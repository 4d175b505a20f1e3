package mqtt

import (
	"context"
	"errors"
	"sync"

	coremqtt "github.com/kilianp07/smartcharge/core/mqtt"
)

// Publisher mirrors the core mqtt.Publisher interface.
type Publisher = coremqtt.Publisher

// MockPublisher records schedule updates in memory. It is used in tests.
type MockPublisher struct {
	Updates     []coremqtt.ScheduleUpdate
	FailConnIDs map[int]bool
	mu          sync.Mutex
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{FailConnIDs: make(map[int]bool)}
}

// PublishSchedule records the update or returns an error if configured to fail.
func (m *MockPublisher) PublishSchedule(_ context.Context, u coremqtt.ScheduleUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailConnIDs[u.ConnectorID] {
		return errors.New("publish failed")
	}
	m.Updates = append(m.Updates, u)
	return nil
}

// Latest returns the last update recorded for connectorID.
func (m *MockPublisher) Latest(connectorID int) (coremqtt.ScheduleUpdate, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.Updates) - 1; i >= 0; i-- {
		if m.Updates[i].ConnectorID == connectorID {
			return m.Updates[i], true
		}
	}
	return coremqtt.ScheduleUpdate{}, false
}

// Count returns the number of recorded updates.
func (m *MockPublisher) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Updates)
}
