package clock

import (
	"sync"
	"time"
)

// MockClock provides a controllable time source for testing.
// Scheduled tasks run synchronously inside Advance, in deadline order.
type MockClock struct {
	mu      sync.Mutex
	current time.Time
	nextID  uint64
	tasks   []*mockTask
}

type mockTask struct {
	clock    *MockClock
	id       uint64
	deadline time.Time
	period   time.Duration
	fn       func()
	done     bool
}

// NewMockClock creates a mock clock at the given start time
func NewMockClock(start time.Time) *MockClock {
	return &MockClock{current: start}
}

// Now returns the current mocked time
func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// SetTime jumps the clock without running due tasks, as a suspended process would see on wake
func (m *MockClock) SetTime(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = t
}

// AfterFunc schedules fn once at now+d
func (m *MockClock) AfterFunc(d time.Duration, fn func()) Handle {
	return m.schedule(d, 0, fn)
}

// Every schedules fn at now+d, now+2d, ...
func (m *MockClock) Every(d time.Duration, fn func()) Handle {
	if d <= 0 {
		panic("clock: non-positive interval for Every")
	}
	return m.schedule(d, d, fn)
}

func (m *MockClock) schedule(d, period time.Duration, fn func()) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	task := &mockTask{
		clock:    m,
		id:       m.nextID,
		deadline: m.current.Add(d),
		period:   period,
		fn:       fn,
	}
	m.tasks = append(m.tasks, task)
	return task
}

// Advance moves the clock forward by d, running every task that falls due.
// Tasks scheduled by a running task are honoured within the same advance.
func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.current.Add(d)
	m.mu.Unlock()

	for {
		m.mu.Lock()
		task := m.nextDue(target)
		if task == nil {
			m.current = target
			m.mu.Unlock()
			return
		}

		// Overdue tasks (after SetTime) run late at the current time, never rewinding it
		if task.deadline.After(m.current) {
			m.current = task.deadline
		}
		if task.period > 0 {
			// Missed periods are dropped, as with time.Ticker
			for !task.deadline.After(m.current) {
				task.deadline = task.deadline.Add(task.period)
			}
		} else {
			task.done = true
			m.remove(task)
		}
		fn := task.fn
		m.mu.Unlock()

		fn()
	}
}

// Pending returns the number of scheduled tasks that have not run or been cancelled
func (m *MockClock) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// nextDue returns the earliest task due at or before target, ties broken by schedule order
func (m *MockClock) nextDue(target time.Time) *mockTask {
	var next *mockTask
	for _, t := range m.tasks {
		if t.deadline.After(target) {
			continue
		}
		if next == nil || t.deadline.Before(next.deadline) ||
			(t.deadline.Equal(next.deadline) && t.id < next.id) {
			next = t
		}
	}
	return next
}

func (m *MockClock) remove(task *mockTask) {
	for i, t := range m.tasks {
		if t == task {
			m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
			return
		}
	}
}

func (t *mockTask) Cancel() bool {
	m := t.clock
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.done {
		return false
	}
	t.done = true
	m.remove(t)
	return true
}
