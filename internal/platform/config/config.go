// Package config reads process configuration from the environment so
// main stays lean.
package config

import (
	"os"
	"strings"
	"time"
)

// Config captures everything the server process needs to wire itself.
// Empty PostgresURL selects the in-memory stores; empty RedisURL and
// KafkaBrokers disable the directory cache and the audit publisher.
type Config struct {
	Addr          string
	PostgresURL   string
	RedisURL      string
	KafkaBrokers  []string
	KafkaTopic    string
	SweepSchedule string
	LogLevel      string
}

// DirectoryCacheTTL bounds staleness of cached account names.
var DirectoryCacheTTL = 5 * time.Minute

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	addr := os.Getenv("INTERDICT_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	sweep := os.Getenv("INTERDICT_SWEEP_SCHEDULE")
	if sweep == "" {
		// Every minute; the sweep itself decides which tickets move.
		sweep = "* * * * *"
	}

	var brokers []string
	if raw := os.Getenv("INTERDICT_KAFKA_BROKERS"); raw != "" {
		for _, broker := range strings.Split(raw, ",") {
			if broker = strings.TrimSpace(broker); broker != "" {
				brokers = append(brokers, broker)
			}
		}
	}

	return Config{
		Addr:          addr,
		PostgresURL:   os.Getenv("INTERDICT_POSTGRES_URL"),
		RedisURL:      os.Getenv("INTERDICT_REDIS_URL"),
		KafkaBrokers:  brokers,
		KafkaTopic:    os.Getenv("INTERDICT_KAFKA_TOPIC"),
		SweepSchedule: sweep,
		LogLevel:      os.Getenv("INTERDICT_LOG_LEVEL"),
	}
}
