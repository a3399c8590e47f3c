package estadistica

import "go.uber.org/fx"

// Module provides the statistics service to Fx.
var Module = fx.Provide(NewService)
