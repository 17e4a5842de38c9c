package database

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog/log"
)

// vectorToString converts a float32 slice to the libSQL vector text format,
// validating against the configured dimension.
func (dm *DBManager) vectorToString(numbers []float32) (string, error) {
	dims := dm.config.EmbeddingDims
	if len(numbers) == 0 {
		return dm.vectorZeroString(), nil
	}
	if len(numbers) != dims {
		return "", fmt.Errorf("vector must have exactly %d dimensions, got %d", dims, len(numbers))
	}

	strNumbers := make([]string, len(numbers))
	for i, n := range numbers {
		if math.IsNaN(float64(n)) || math.IsInf(float64(n), 0) {
			log.Warn().Float32("value", n).Msg("invalid vector value, using 0.0")
			n = 0.0
		}
		strNumbers[i] = fmt.Sprintf("%f", n)
	}
	return fmt.Sprintf("[%s]", strings.Join(strNumbers, ", ")), nil
}

// vectorZeroString returns the zero vector in libSQL text format at the
// configured dimension.
func (dm *DBManager) vectorZeroString() string {
	dims := dm.config.EmbeddingDims
	if dims <= 0 {
		dims = 4
	}
	parts := make([]string, dims)
	for i := range parts {
		parts[i] = "0.0"
	}
	return fmt.Sprintf("[%s]", strings.Join(parts, ", "))
}

// extractVector decodes an F32_BLOB column value into a float32 slice.
func (dm *DBManager) extractVector(embedding []byte) ([]float32, error) {
	if len(embedding) == 0 {
		return nil, nil
	}
	if len(embedding)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding size: %d bytes is not a multiple of 4", len(embedding))
	}
	vector := make([]float32, len(embedding)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(embedding[i*4 : (i+1)*4])
		vector[i] = math.Float32frombits(bits)
	}
	return vector, nil
}
