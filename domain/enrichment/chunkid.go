package enrichment

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ragedhq/raged/pkg/apperror"
)

// ParseChunkID splits a chunk identifier of the form "<baseId>:<index>"
// into its parts. The base id may itself contain colons (URLs do), so
// the split happens at the last colon.
func ParseChunkID(chunkID string) (string, int, error) {
	cut := strings.LastIndex(chunkID, ":")
	if cut <= 0 || cut == len(chunkID)-1 {
		return "", 0, apperror.ErrChunkIDInvalid.WithMessage(
			fmt.Sprintf("invalid chunk id %q", chunkID))
	}

	baseID := chunkID[:cut]
	index, err := strconv.Atoi(chunkID[cut+1:])
	if err != nil || index < 0 {
		return "", 0, apperror.ErrChunkIDInvalid.WithMessage(
			fmt.Sprintf("invalid chunk index in %q", chunkID))
	}

	return baseID, index, nil
}
