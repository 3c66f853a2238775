package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVPadsShortRows(t *testing.T) {
	out, err := CSV(Table{
		Headers: []string{"name", "current", "max"},
		Rows:    [][]string{{"Dr. A", "1", "3"}, {"Dr. B"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "name,current,max\nDr. A,1,3\nDr. B,,\n", string(out))
}

func TestCSVRequiresHeaders(t *testing.T) {
	_, err := CSV(Table{})
	assert.ErrorIs(t, err, ErrNoColumns)
}

func TestPDFProducesDocument(t *testing.T) {
	out, err := PDF(Table{
		Title:       "Supervisor capacity",
		Headers:     []string{"name", "current", "max"},
		Rows:        [][]string{{"Dr. A", "1", "3"}},
		GeneratedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}
