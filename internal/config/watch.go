package config

import (
	"github.com/knadh/koanf/providers/file"

	"flowgate/internal/logging"
)

// Watch invokes onChange with a freshly parsed config whenever the file
// changes on disk. Parse or validation errors keep the previous config in
// effect and are only logged. The returned stop function ends the watch.
func Watch(path string, onChange func(Config)) (stop func() error, err error) {
	f := file.Provider(path)
	err = f.Watch(func(event interface{}, err error) {
		if err != nil {
			logging.L().Warn("config watch error", "path", path, "err", err)
			return
		}
		cfg, lerr := Load(path)
		if lerr != nil {
			logging.L().Warn("config reload rejected", "path", path, "err", lerr)
			return
		}
		logging.L().Info("config reloaded", "path", path)
		onChange(cfg)
	})
	if err != nil {
		return nil, err
	}
	return f.Unwatch, nil
}
