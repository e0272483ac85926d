// Package all imports all core dms extensions.
// Import this package to register all built-in commands.
package all

import (
	// Core extensions - each registers itself via init()
	_ "github.com/jpl-au/dms/extension/core"
	_ "github.com/jpl-au/dms/extension/document"
	_ "github.com/jpl-au/dms/extension/tag"
)
