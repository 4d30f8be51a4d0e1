//go:build !linux
// +build !linux

package presence

import (
	"context"

	"github.com/genricoloni/reelplay/internal/domain"
	"go.uber.org/zap"
)

// Publisher stub for non-Linux platforms
type Publisher struct {
	logger *zap.Logger
}

// NewPublisher creates a publisher that discards updates on non-Linux platforms
func NewPublisher(logger *zap.Logger) *Publisher {
	return &Publisher{logger: logger}
}

// Start logs that presence is unavailable
func (p *Publisher) Start(ctx context.Context) error {
	p.logger.Info("Now playing presence is only supported on Linux systems")
	return nil
}

// Stop is a no-op on non-Linux platforms
func (p *Publisher) Stop(ctx context.Context) error {
	return nil
}

// Update discards np
func (p *Publisher) Update(np domain.NowPlaying) {}

// Published always returns zero
func (p *Publisher) Published() int {
	return 0
}
