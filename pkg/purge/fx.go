package purge

import "go.uber.org/fx"

// Module provides the purge Action.
var Module = fx.Module("purge",
	fx.Provide(NewAction),
)
