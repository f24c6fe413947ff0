package images

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gocv.io/x/gocv"
)

func TestMatChecksum(t *testing.T) {
	a := gocv.NewMatWithSize(4, 4, gocv.MatTypeCV8UC3)
	defer a.Close()
	b := gocv.NewMatWithSize(4, 4, gocv.MatTypeCV8UC3)
	defer b.Close()
	empty := gocv.NewMat()
	defer empty.Close()

	a.SetTo(gocv.NewScalar(10, 20, 200, 0))
	b.SetTo(gocv.NewScalar(10, 20, 200, 0))
	assert.Equal(t, MatChecksum(a), MatChecksum(b))
	assert.NotZero(t, MatChecksum(a))

	b.SetUCharAt(0, 0, 11)
	assert.NotEqual(t, MatChecksum(a), MatChecksum(b))

	assert.Zero(t, MatChecksum(empty))
}
