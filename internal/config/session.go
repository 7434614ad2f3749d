package config

import (
	"fmt"
	"sync"
)

// Session holds runtime overrides changed through the admin API. Overrides
// live for the lifetime of the process and never touch the loaded Config.
type Session struct {
	mu           sync.RWMutex
	logoStrategy string
}

// NewSession creates an empty override store
func NewSession() *Session {
	return &Session{}
}

// SetLogoStrategy overrides the configured logo strategy; "" clears it.
func (s *Session) SetLogoStrategy(strategy string) error {
	if strategy != "" && !ValidLogoStrategy(strategy) {
		return fmt.Errorf("unknown logo strategy %q", strategy)
	}
	s.mu.Lock()
	s.logoStrategy = strategy
	s.mu.Unlock()
	return nil
}

// Branding returns base with any session overrides applied
func (s *Session) Branding(base BrandingConfig) BrandingConfig {
	if s == nil {
		return base
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.logoStrategy != "" {
		base.Strategy = s.logoStrategy
	}
	return base
}

// LogoStrategy returns the current override, if any
func (s *Session) LogoStrategy() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.logoStrategy
}
