package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, Params{Page: 1, PerPage: DefaultPerPage}, Normalize(0, 0))
	assert.Equal(t, Params{Page: 3, PerPage: MaxPerPage}, Normalize(3, 1000))
	assert.Equal(t, Params{Page: 1, PerPage: 5}, Normalize(-2, 5))
}

func TestParams_OffsetAndPages(t *testing.T) {
	p := Normalize(3, 10)
	assert.Equal(t, 20, p.Offset())
	assert.Equal(t, 0, p.Pages(0))
	assert.Equal(t, 1, p.Pages(10))
	assert.Equal(t, 3, p.Pages(21))
}
