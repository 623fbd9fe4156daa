package emath

import (
	"runtime"
	"sync"
)

// rowBand is a half-open range of rows [Y0, Y1).
type rowBand struct {
	Y0, Y1 int
}

// ParallelRows splits [0, height) into bands and runs fn over them from
// a pool of nWorkers goroutines, returning once every band is done. The
// bands are disjoint, so fn may write to per-row output without locks.
func ParallelRows(height, nWorkers int, fn func(y0, y1 int)) {
	if height <= 0 {
		return
	}
	if nWorkers <= 0 {
		nWorkers = runtime.NumCPU()
	}
	if nWorkers == 1 || height < 2 {
		fn(0, height)
		return
	}

	// A few bands per worker, so a slow band doesn't hold up the rest
	bandHeight := height / (nWorkers * 4)
	if bandHeight < 1 {
		bandHeight = 1
	}

	jobsChan := make(chan rowBand, height/bandHeight+1)
	for y := 0; y < height; y += bandHeight {
		y1 := y + bandHeight
		if y1 > height {
			y1 = height
		}
		jobsChan <- rowBand{y, y1}
	}
	close(jobsChan)

	var wg sync.WaitGroup
	for i := 0; i < nWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for band := range jobsChan {
				fn(band.Y0, band.Y1)
			}
		}()
	}
	wg.Wait()
}

// ParallelEach runs fn(i) for i in [0,n) from a pool of nWorkers goroutines.
func ParallelEach(n, nWorkers int, fn func(i int)) {
	if n <= 0 {
		return
	}
	if nWorkers <= 0 {
		nWorkers = runtime.NumCPU()
	}
	if nWorkers > n {
		nWorkers = n
	}

	jobsChan := make(chan int, n)
	for i := 0; i < n; i++ {
		jobsChan <- i
	}
	close(jobsChan)

	var wg sync.WaitGroup
	for w := 0; w < nWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobsChan {
				fn(i)
			}
		}()
	}
	wg.Wait()
}
