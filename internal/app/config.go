package app

import "github.com/thushan/ladle/internal/config"

// setConfig swaps the active configuration under the write lock.
func (a *Application) setConfig(cfg *config.Config) {
	a.configMu.Lock()
	defer a.configMu.Unlock()
	a.config = cfg
}

// getConfig is how handlers read configuration; never touch a.config
// directly, a reload may swap the pointer underneath you.
func (a *Application) getConfig() *config.Config {
	a.configMu.RLock()
	defer a.configMu.RUnlock()
	return a.config
}
