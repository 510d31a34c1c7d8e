package services

import (
	"context"
	"fmt"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthService struct {
	deps map[string]Pinger
}

func NewHealthService() *HealthService {
	return &HealthService{deps: make(map[string]Pinger)}
}

// With registers a dependency checked by Get. A nil pinger is ignored so
// optional backends can be passed unconditionally.
func (s *HealthService) With(name string, p Pinger) *HealthService {
	if p != nil {
		s.deps[name] = p
	}
	return s
}

func (s *HealthService) Get(ctx context.Context) error {
	for name, p := range s.deps {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
