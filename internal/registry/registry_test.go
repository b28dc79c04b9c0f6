package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/partyline/server/internal/types"
)

func TestPutGetRemove(t *testing.T) {
	r := New()
	track := types.Track{ID: "t1", URL: "http://x/tracks/t1", Data: []byte("bytes")}

	r.Put(track)
	got, ok := r.Get("t1")
	assert.True(t, ok)
	assert.Equal(t, track.Data, got.Data)
	assert.Equal(t, 1, r.Len())

	r.Remove("t1")
	_, ok = r.Get("t1")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}

func TestRemove_AbsentIDIsNoop(t *testing.T) {
	r := New()
	assert.NotPanics(t, func() { r.Remove("missing") })
}

func TestGet_AbsentID(t *testing.T) {
	r := New()
	_, ok := r.Get("missing")
	assert.False(t, ok)
}
