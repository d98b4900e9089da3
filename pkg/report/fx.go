package report

import "go.uber.org/fx"

// Module provides the Reporter.
var Module = fx.Module("report",
	fx.Provide(NewReporter),
)
