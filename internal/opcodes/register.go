package opcodes

import "github.com/R3E-Network/worldcore/internal/interp"

// Register populates reg with every standard-library and privileged opcode
// family from spec.md §4.5, in the order the families are introduced there.
// Later registrations never collide with earlier ones by name, so order
// only matters for readability here.
func Register(reg *interp.Registry, env Env) {
	registerArithmetic(reg)
	registerComparison(reg)
	registerLogic(reg)
	registerControl(reg)
	registerList(reg)
	registerObject(reg)
	registerString(reg)
	registerTime(reg)
	registerJSON(reg)
	registerRandom(reg)
	registerMath(reg)
	registerEntity(reg, env)
	registerMeta(reg, env)
}
