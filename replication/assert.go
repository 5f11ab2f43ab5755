//go:build !debug

package replication

import "github.com/rs/zerolog"

// staleCallback reports a scheduler or network callback that fired after
// its monitor despawned. Release builds log and drop it.
func staleCallback(log zerolog.Logger, what string) {
	log.Error().Str("callback", what).Msg("callback fired after despawn")
}
