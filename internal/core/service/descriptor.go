// Package service defines the small vocabulary the system manager and the
// transport layer use to describe a lifecycle-managed component without
// depending on its concrete type.
package service

// Layer describes the architectural slice a component belongs to.
type Layer string

const (
	LayerStorage   Layer = "storage"
	LayerInterp    Layer = "interp"
	LayerScheduler Layer = "scheduler"
	LayerTransport Layer = "transport"
)

// Descriptor advertises a component's placement and capabilities. Purely
// informational: it feeds /system/status and never changes runtime
// behavior.
type Descriptor struct {
	Name         string
	Layer        Layer
	Capabilities []string
}

// WithCapabilities returns a copy of the descriptor with additional
// capabilities appended.
func (d Descriptor) WithCapabilities(caps ...string) Descriptor {
	if len(caps) == 0 {
		return d
	}
	combined := make([]string, 0, len(d.Capabilities)+len(caps))
	combined = append(combined, d.Capabilities...)
	combined = append(combined, caps...)
	d.Capabilities = combined
	return d
}
