package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQualifiedTable(t *testing.T) {
	assert.Equal(t, `"cdm"."observation_period"`, QualifiedTable("cdm", "observation_period"))
	assert.Equal(t, `"concept_events"`, QualifiedTable("", "concept_events"))
	assert.Equal(t, `"we""ird"."t"`, QualifiedTable(`we"ird`, "t"))
}
