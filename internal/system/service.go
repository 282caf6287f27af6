// Package system owns the startup/shutdown ordering of the server's
// background components (scheduler, cron scheduler, transport listener):
// register each once at wiring time, then Start/Stop them together.
//
// Grounded on the teacher's applications/system.Manager and
// internal/app/system.Service split.
package system

import (
	"context"

	core "github.com/R3E-Network/worldcore/internal/core/service"
)

// Service represents a lifecycle-managed component.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// DescriptorProvider optionally advertises component metadata.
type DescriptorProvider interface {
	Descriptor() core.Descriptor
}
