package bitmap

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arnebach/nachosfs/errs"
)

func TestFindAndSet(t *testing.T) {
	assert := assert.New(t)
	b := New(32)
	assert.Equal(32, b.NumClear(), "everything should start clear")

	n, err := b.FindAndSet()
	assert.NoError(err)
	assert.Equal(0, n, "should allocate the smallest clear bit first")
	assert.Equal(31, b.NumClear())

	b.Mark(5)
	n2, err := b.FindAndSet()
	assert.NoError(err)
	assert.NotEqual(5, n2, "should not allocate something already marked")
	assert.Equal(29, b.NumClear())

	b.Clear(n)
	b.Clear(n2)
	assert.Equal(31, b.NumClear())
}

func TestFindAndSetExhausted(t *testing.T) {
	assert := assert.New(t)
	b := New(3)
	for i := 0; i < 3; i++ {
		_, err := b.FindAndSet()
		assert.NoError(err)
	}
	_, err := b.FindAndSet()
	assert.ErrorIs(err, errs.ErrNoSpace)
	assert.Equal(0, b.NumClear())
}

func TestReadWriteRoundTrip(t *testing.T) {
	assert := assert.New(t)
	b := New(40)
	b.Mark(0)
	b.Mark(1)
	b.Mark(39)

	b2 := ReadFrom(b.Bytes(), 40)
	for i := 0; i < 40; i++ {
		assert.Equal(b.Test(i), b2.Test(i), "bit %d should round-trip", i)
	}
}
