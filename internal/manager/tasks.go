package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// TaskConfig describes one desired consume task as published by the manager.
// Snapshots are immutable per tick; the controller diffs them against its
// live pool.
type TaskConfig struct {
	ID       string `json:"id" yaml:"id"`
	Cluster  string `json:"cluster" yaml:"cluster"`
	Strategy string `json:"strategy" yaml:"strategy"`
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// Lister returns the currently desired task set. Implementations are polled
// once per reconcile tick and may return a different snapshot each call;
// there is no change notification.
type Lister interface {
	List(ctx context.Context) ([]TaskConfig, error)
}

// HTTPSource fetches the desired task set from the manager endpoint.
type HTTPSource struct {
	endpoints *Endpoints
	client    *http.Client
}

func NewHTTPSource(e *Endpoints) *HTTPSource {
	return &HTTPSource{endpoints: e, client: &http.Client{Timeout: 10 * time.Second}}
}

func (s *HTTPSource) List(ctx context.Context) ([]TaskConfig, error) {
	base := s.endpoints.ManagerURL()
	if base == "" {
		return nil, fmt.Errorf("manager: no url configured")
	}
	u := strings.TrimRight(base, "/") + "/clusters/" +
		url.PathEscape(s.endpoints.ClusterName()) + "/tasks"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("manager: list tasks returned %s", resp.Status)
	}
	var body struct {
		Tasks []TaskConfig `json:"tasks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body.Tasks, nil
}

// FileSource reads a static task list from a YAML file, for deployments
// (and tests) that run without a manager.
type FileSource struct {
	Path string
}

func (s *FileSource) List(_ context.Context) ([]TaskConfig, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, err
	}
	var body struct {
		Tasks []TaskConfig `yaml:"tasks"`
	}
	if err := yaml.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	return body.Tasks, nil
}
