//go:build debug

package replication

import (
	"fmt"

	"github.com/rs/zerolog"
)

// staleCallback reports a scheduler or network callback that fired after
// its monitor despawned. Debug builds panic so the leak is found early.
func staleCallback(log zerolog.Logger, what string) {
	log.Error().Str("callback", what).Msg("callback fired after despawn")
	panic(fmt.Sprintf("replication: %s fired after despawn", what))
}
