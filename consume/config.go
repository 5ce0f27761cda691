package consume

import "sync"

type CommitMode string

const (
	CommitAuto CommitMode = "auto" // commit as records are fetched
	CommitE2E  CommitMode = "e2e"  // wait for Ack
)

// ClientConfig carries the identity and connection settings of one task
// client. Everything but the manager URL is fixed at creation; the manager
// URL is refreshed by the controller on every tick while the driver may read
// it concurrently, so it sits behind a lock.
type ClientConfig struct {
	Task      string
	Cluster   string
	Strategy  Strategy
	LocalAddr string

	CommitMode  CommitMode
	Version     string // broker protocol version for sarama drivers
	MaxInFlight int64  // cap on unacknowledged records in e2e mode

	mu         sync.RWMutex
	managerURL string
}

func NewClientConfig(task, cluster string, strategy Strategy, localAddr string) *ClientConfig {
	return &ClientConfig{
		Task:        task,
		Cluster:     cluster,
		Strategy:    strategy,
		LocalAddr:   localAddr,
		CommitMode:  CommitAuto,
		Version:     "3.6.0",
		MaxInFlight: 30_000,
	}
}

func (c *ClientConfig) SetManagerURL(u string) {
	c.mu.Lock()
	c.managerURL = u
	c.mu.Unlock()
}

func (c *ClientConfig) ManagerURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.managerURL
}
