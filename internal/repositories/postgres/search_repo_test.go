package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainsPatternEscapesWildcards(t *testing.T) {
	assert.Equal(t, "%sauna%", containsPattern("sauna"))
	assert.Equal(t, `%100\% refund%`, containsPattern("100% refund"))
	assert.Equal(t, `%a\_b\\c%`, containsPattern(`a_b\c`))
}
