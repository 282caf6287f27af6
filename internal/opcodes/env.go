// Package opcodes is the Standard Library component of spec.md §4.5: every
// opcode handler the interpreter's registry dispatches to, grouped by
// family (arithmetic, comparison, logic, control flow, list, object,
// string, time, json, random, math, entity/capability, meta).
//
// Grounded on the teacher's system/sandbox capability-checked resource
// accessors (SandboxContext.Storage/Database/Bus, each wrapping a
// capability check before touching a resource): entity and meta opcodes
// here follow the same "validate, then act" shape, adapted from the
// teacher's static per-service grants to spec.md's per-call capability
// tokens.
package opcodes

import (
	"github.com/sirupsen/logrus"

	"github.com/R3E-Network/worldcore/internal/capability"
	"github.com/R3E-Network/worldcore/internal/storage"
)

// Scheduler is the subset of the Scheduler component (spec.md §4.6) the
// schedule() meta opcode needs. Defined here, not imported from
// internal/scheduler, to avoid a import cycle (scheduler itself invokes
// verbs through the interpreter).
type Scheduler interface {
	ScheduleVerb(target int64, verbName string, args []any, delayMS int64)
}

// HostStats is the subset of gopsutil-backed host introspection the
// host.stats meta opcode surfaces (spec.md §4.5 SPEC_FULL addition).
type HostStats interface {
	Snapshot() (map[string]any, error)
}

// Env bundles the resources privileged and meta opcodes need beyond the
// pure-function standard library: the repository, the capability store, the
// scheduler, host stats, and a logger for log()/warn() pass-through.
type Env struct {
	Repo      storage.Store
	Caps      *capability.Store
	Scheduler Scheduler
	Host      HostStats
	Log       *logrus.Entry
}
