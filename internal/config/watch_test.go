package config

import (
	"os"
	"testing"
	"time"
)

func TestWatch_DeliversReloadAndStops(t *testing.T) {
	path := writeConfig(t, `cluster_name: c1
manager_url: http://mgr-1
`)
	reloaded := make(chan Config, 8)
	stop, err := Watch(path, func(c Config) { reloaded <- c })
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	body := []byte("cluster_name: c1\nmanager_url: http://mgr-2\n")
	deadline := time.After(2 * time.Second)
	for {
		if err := os.WriteFile(path, body, 0o644); err != nil {
			t.Fatalf("rewrite config: %v", err)
		}
		select {
		case cfg := <-reloaded:
			if cfg.ManagerURL != "http://mgr-2" {
				t.Fatalf("unexpected reloaded config: %+v", cfg)
			}
			if err := stop(); err != nil {
				t.Fatalf("stop watch: %v", err)
			}
			return
		case <-deadline:
			t.Fatal("reload callback never fired")
		case <-time.After(100 * time.Millisecond):
			// event may have raced the watcher setup; write again
		}
	}
}

func TestWatch_InvalidReloadKept(t *testing.T) {
	path := writeConfig(t, `cluster_name: c1
manager_url: http://mgr-1
`)
	reloaded := make(chan Config, 8)
	stop, err := Watch(path, func(c Config) { reloaded <- c })
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer func() { _ = stop() }()

	// blank cluster fails validation, so onChange must not fire for it
	if err := os.WriteFile(path, []byte("cluster_name: \"\"\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	select {
	case cfg := <-reloaded:
		t.Fatalf("invalid config delivered: %+v", cfg)
	case <-time.After(300 * time.Millisecond):
	}
}
