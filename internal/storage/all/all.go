// Package all registers every storage backend.
package all

import (
	_ "productprep/internal/storage/mssql"
	_ "productprep/internal/storage/postgres"
	_ "productprep/internal/storage/sqlite"
)
