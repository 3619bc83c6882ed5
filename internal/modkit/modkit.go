// Package modkit builds service modules from shared deps and options
package modkit

import "instapilot/internal/modkit/module"

// Module is what every service module exposes to the API host
type Module = module.Module
