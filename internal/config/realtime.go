package config

import (
	"time"
)

type RealtimeConfig struct {
	// OperationTimeout bounds every persistence and delivery call made while
	// handling one realtime event or ride transition.
	OperationTimeout time.Duration `yaml:"operation_timeout"`
}

func loadRealtimeConfig() *RealtimeConfig {
	return &RealtimeConfig{
		OperationTimeout: getEnvAsDuration("REALTIME_OPERATION_TIMEOUT", 5*time.Second),
	}
}
