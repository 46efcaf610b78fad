// Package all registers every storage backend with the factory.
// The config selects which one to use, but the binary builds in support for all.
package all

import (
	_ "shopdw/internal/storage/postgres"
	_ "shopdw/internal/storage/sqlite"
)
