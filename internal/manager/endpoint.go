package manager

import "sync"

// Endpoints holds the current control-plane settings shared by the factory,
// the per-tick config refresh, and the HTTP task source. It is initialized
// once at bootstrap and refreshed by the config-file watcher; every reader
// sees the latest value on its next call.
type Endpoints struct {
	mu         sync.RWMutex
	managerURL string
	cluster    string
	queryType  string
}

func NewEndpoints(managerURL, cluster string) *Endpoints {
	return &Endpoints{managerURL: managerURL, cluster: cluster}
}

func (e *Endpoints) ManagerURL() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.managerURL
}

func (e *Endpoints) ClusterName() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cluster
}

// QueryConfigType names the desired-state query strategy; read fresh on
// every client creation. Blank selects the built-in default.
func (e *Endpoints) QueryConfigType() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.queryType
}

// SetQueryConfigType replaces the strategy name. Unlike Update, blank is a
// meaningful value here (back to the default query).
func (e *Endpoints) SetQueryConfigType(name string) {
	e.mu.Lock()
	e.queryType = name
	e.mu.Unlock()
}

// Update replaces the held settings. Blank fields keep their current value,
// so a partially filled config reload cannot wipe a working endpoint.
func (e *Endpoints) Update(managerURL, cluster string) {
	e.mu.Lock()
	if managerURL != "" {
		e.managerURL = managerURL
	}
	if cluster != "" {
		e.cluster = cluster
	}
	e.mu.Unlock()
}
