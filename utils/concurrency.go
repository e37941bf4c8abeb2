package utils

import (
	"errors"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// SplitWork calls do once for every work index in [0, workSize), spread across routines goroutines.
// A routines value <= 0 is added to the CPU count, so -1 leaves one core free.
// init, if not nil, is called for every routine before any work starts.
// Work stops being handed out after the first error, which is returned.
func SplitWork(routines int, workSize uint64, do func(workIndex uint64, routineIndex int) error, init func(routines, routineIndex int) error) error {
	if routines <= 0 {
		routines = max(runtime.NumCPU()+routines, 1)
	}

	if workSize < uint64(routines) {
		routines = int(workSize)
	}

	if routines == 0 {
		return nil
	}

	if init != nil {
		for routineIndex := 0; routineIndex < routines; routineIndex++ {
			if err := init(routines, routineIndex); err != nil {
				return err
			}
		}
	}

	var counter atomic.Uint64
	var failed atomic.Bool

	var eg errgroup.Group

	for routineIndex := 0; routineIndex < routines; routineIndex++ {
		eg.Go(func() error {
			for !failed.Load() {
				workIndex := counter.Add(1)
				if workIndex > workSize {
					return nil
				}

				if err := do(workIndex-1, routineIndex); err != nil {
					failed.Store(true)
					return err
				}
			}
			return nil
		})
	}
	return eg.Wait()
}

var errWorkRejected = errors.New("work rejected")

// SplitWorkAll reports whether check returned true for every index in [0, workSize).
// It stops early on the first false.
func SplitWorkAll(routines int, workSize uint64, check func(workIndex uint64) bool) bool {
	return SplitWork(routines, workSize, func(workIndex uint64, _ int) error {
		if !check(workIndex) {
			return errWorkRejected
		}
		return nil
	}, nil) == nil
}
