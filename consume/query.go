package consume

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ConsumeDetail is what a query strategy resolves for one task: where the
// task's stream actually lives and how to join it.
type ConsumeDetail struct {
	Brokers    []string `json:"brokers"`
	Topics     []string `json:"topics"`
	GroupID    string   `json:"group_id"`
	TLSEnabled bool     `json:"tls_enabled"`
	SASLUser   string   `json:"sasl_user"`
	SASLPass   string   `json:"sasl_pass"`
}

// QueryConfig resolves the consume detail for a task. Deployments may
// register alternative implementations by name; the factory selects one per
// client creation and falls back to the manager query when the name is
// unknown.
type QueryConfig interface {
	Query(ctx context.Context, cfg *ClientConfig) (ConsumeDetail, error)
}

// QueryFactory constructs a candidate implementation. The registry stores
// untyped factories so a misregistered value surfaces as a capability
// mismatch at resolve time instead of a compile dependency on this package.
type QueryFactory func() any

var queryReg = map[string]QueryFactory{}

func RegisterQuery(name string, f QueryFactory) {
	queryReg[name] = f
}

// LookupQuery instantiates the implementation registered under name and
// verifies it satisfies QueryConfig. ok is false for unknown names, blank
// names, and capability mismatches.
func LookupQuery(name string) (QueryConfig, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false
	}
	f, present := queryReg[name]
	if !present {
		return nil, false
	}
	q, ok := f().(QueryConfig)
	return q, ok
}

// ManagerQuery is the default QueryConfig: it asks the manager endpoint for
// the task's consume detail over HTTP.
type ManagerQuery struct {
	client *http.Client
}

func NewManagerQuery() *ManagerQuery {
	return &ManagerQuery{client: &http.Client{Timeout: 10 * time.Second}}
}

func (m *ManagerQuery) Query(ctx context.Context, cfg *ClientConfig) (ConsumeDetail, error) {
	var detail ConsumeDetail
	base := cfg.ManagerURL()
	if base == "" {
		return detail, fmt.Errorf("consume: no manager url for task %q", cfg.Task)
	}
	u := strings.TrimRight(base, "/") + "/clusters/" + url.PathEscape(cfg.Cluster) +
		"/tasks/" + url.PathEscape(cfg.Task) + "/consume"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return detail, err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return detail, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return detail, fmt.Errorf("consume: manager returned %s for task %q", resp.Status, cfg.Task)
	}
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		return detail, err
	}
	if len(detail.Brokers) == 0 || len(detail.Topics) == 0 {
		return detail, fmt.Errorf("consume: manager detail for task %q is incomplete", cfg.Task)
	}
	if detail.GroupID == "" {
		detail.GroupID = cfg.Cluster + "-" + cfg.Task
	}
	return detail, nil
}
