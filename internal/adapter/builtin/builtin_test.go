package builtin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bitegraph/internal/model"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	r := Default()
	assert.Equal(t, []string{"csv_import", "uber_eats", "xlsx_import"}, r.SourceIDs())

	a, err := r.Find(model.Metadata{Source: "uber_eats", Format: "csv"})
	require.NoError(t, err)
	assert.Equal(t, "uber_eats", a.SourceID())

	a, err = r.Find(model.Metadata{Source: "bank", FilePath: "statement.xlsx"})
	require.NoError(t, err)
	assert.Equal(t, "xlsx_import", a.SourceID())
}
