package notify

import (
	"strings"

	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/logger"
)

// Log writes alerts to the process log
type Log struct {
	Module string
}

// Notify logs the alert at warning level
func (l Log) Notify(title, message string) error {
	module := l.Module
	if module == "" {
		module = "Notify"
	}
	logger.Warn(module, "%s: %s", title, strings.ReplaceAll(message, "\n", " "))
	return nil
}
