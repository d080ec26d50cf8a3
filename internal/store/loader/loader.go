// Package loader pulls in the default store drivers. Importing it for
// side effects registers memory, sqlite, and json.
package loader

import (
	_ "github.com/tutorloop/matchflow-go/internal/store/json"
	_ "github.com/tutorloop/matchflow-go/internal/store/memory"
	_ "github.com/tutorloop/matchflow-go/internal/store/sqlite"
)
