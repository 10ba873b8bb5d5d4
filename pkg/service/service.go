package service

import (
	"context"
	"errors"
	"fmt"
)

// RunnableService is a long-running component with a non-blocking
// start and a graceful stop.
type RunnableService interface {
	Run()
	Shutdown(ctx context.Context) error
}

// Group starts and stops a set of services together.
type Group struct {
	list []RunnableService
}

func (g *Group) Add(services ...RunnableService) { g.list = append(g.list, services...) }

// Start starts each service in the group.
func (g *Group) Start() {
	for _, s := range g.list {
		s.Run()
	}
}

// Shutdown stops every service and joins their failures. A stop cut
// short by the caller's own context is not a failure.
func (g *Group) Shutdown(ctx context.Context) error {
	var errs []error
	for _, s := range g.list {
		if err := s.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, fmt.Errorf("service stop: %w", err))
		}
	}
	return errors.Join(errs...)
}
