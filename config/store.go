package config

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Store holds the current configuration behind a read lock so the swarm
// services can read settings at operation time and observe file changes
// without a restart.
type Store struct {
	mu     sync.RWMutex
	cfg    *Config
	path   string
	logger *zap.Logger

	subscribers []func(*Config)
	subMu       sync.Mutex

	lastModTime time.Time
}

// NewStore creates a store seeded with cfg. path is the file watched for
// changes; empty disables reloading.
func NewStore(cfg *Config, path string, logger *zap.Logger) *Store {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		cfg:    cfg,
		path:   path,
		logger: logger.With(zap.String("component", "config_store")),
	}
}

// Get returns the current configuration snapshot. Callers must not mutate it.
func (s *Store) Get() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Swarm returns a copy of the current swarm settings.
func (s *Store) Swarm() SwarmConfig {
	return s.Get().Swarm
}

// Set replaces the current configuration and notifies subscribers.
func (s *Store) Set(cfg *Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	s.notify(cfg)
}

// Subscribe registers a callback invoked after every configuration swap.
func (s *Store) Subscribe(fn func(*Config)) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

func (s *Store) notify(cfg *Config) {
	s.subMu.Lock()
	subs := make([]func(*Config), len(s.subscribers))
	copy(subs, s.subscribers)
	s.subMu.Unlock()

	for _, fn := range subs {
		fn(cfg)
	}
}

// Reload re-reads the configuration file and swaps it in. Invalid content
// keeps the previous configuration.
func (s *Store) Reload() error {
	cfg, err := NewLoader().WithConfigPath(s.path).Load()
	if err != nil {
		return err
	}
	s.Set(cfg)
	s.logger.Info("configuration reloaded", zap.String("path", s.path))
	return nil
}

// Watch polls the configuration file for modification-time changes and
// reloads on change. It blocks until ctx is cancelled.
func (s *Store) Watch(ctx context.Context, interval time.Duration) {
	if s.path == "" {
		return
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}

	if info, err := os.Stat(s.path); err == nil {
		s.lastModTime = info.ModTime()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := os.Stat(s.path)
			if err != nil {
				continue
			}
			if !info.ModTime().After(s.lastModTime) {
				continue
			}
			s.lastModTime = info.ModTime()

			if err := s.Reload(); err != nil {
				s.logger.Warn("config reload failed, keeping previous configuration",
					zap.String("path", s.path),
					zap.Error(err),
				)
			}
		}
	}
}
