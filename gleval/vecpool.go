package gleval

import (
	"errors"
	"fmt"

	"github.com/soypat/geometry/ms2"
)

// VecPool holds scratch buffers for evaluators that transform coordinates
// or blend colors before handing them to their children.
// Acquired buffers must be released before the top level evaluation returns.
type VecPool struct {
	V2    bufPool[ms2.Vec]
	Color bufPool[RGBA]
}

// GetVecPool extracts a [VecPool] from userData. userData may be a *VecPool
// or implement a VecPool() *VecPool method.
func GetVecPool(userData any) (*VecPool, error) {
	switch v := userData.(type) {
	case *VecPool:
		if v == nil {
			break
		}
		return v, nil
	case interface{ VecPool() *VecPool }:
		vp := v.VecPool()
		if vp != nil {
			return vp, nil
		}
	}
	return nil, fmt.Errorf("want userData type *gleval.VecPool for CPU evaluations, got %T", userData)
}

// AssertAllReleased returns an error if any acquired buffer has not been released.
func (vp *VecPool) AssertAllReleased() error {
	err := vp.V2.assertAllReleased()
	if err != nil {
		return fmt.Errorf("VecPool.V2: %w", err)
	}
	err = vp.Color.assertAllReleased()
	if err != nil {
		return fmt.Errorf("VecPool.Color: %w", err)
	}
	return nil
}

type bufPool[T any] struct {
	free  [][]T
	inUse [][]T
}

// Acquire returns a buffer of length n, reusing a released buffer if one has enough capacity.
func (bp *bufPool[T]) Acquire(n int) []T {
	for i, buf := range bp.free {
		if cap(buf) >= n {
			last := len(bp.free) - 1
			bp.free[i] = bp.free[last]
			bp.free = bp.free[:last]
			buf = buf[:n]
			bp.inUse = append(bp.inUse, buf)
			return buf
		}
	}
	buf := make([]T, n)
	bp.inUse = append(bp.inUse, buf)
	return buf
}

// Release returns a buffer obtained with Acquire to the pool.
func (bp *bufPool[T]) Release(buf []T) error {
	for i, used := range bp.inUse {
		if cap(used) > 0 && cap(buf) > 0 && &used[:1][0] == &buf[:1][0] {
			last := len(bp.inUse) - 1
			bp.inUse[i] = bp.inUse[last]
			bp.inUse = bp.inUse[:last]
			bp.free = append(bp.free, used)
			return nil
		}
	}
	return errors.New("release of buffer not acquired from pool")
}

func (bp *bufPool[T]) assertAllReleased() error {
	if len(bp.inUse) > 0 {
		return fmt.Errorf("%d buffers not released", len(bp.inUse))
	}
	return nil
}
