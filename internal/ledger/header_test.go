package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHeader_Advance(t *testing.T) {
	h := &Header{Version: 1}
	assert.Equal(t, uint64(0), h.Sequence())

	at := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	h.Advance(at)
	assert.Equal(t, uint64(1), h.Sequence())
	assert.Equal(t, at, h.CloseTime)

	h.Advance(at.Add(5 * time.Second))
	assert.Equal(t, uint64(2), h.Sequence())
}
