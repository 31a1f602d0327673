package server

import (
	"math"
	"math/rand"
	"sync/atomic"
	"time"
)

// Simulated per-endpoint workload: each content endpoint pretends to do a
// database query and some rendering work so the replicas exhibit
// realistic, uneven response times.

type queryClass string

const (
	querySimple  queryClass = "simple"
	queryMedium  queryClass = "medium"
	queryComplex queryClass = "complex"
)

var queryDelays = map[queryClass][2]time.Duration{
	querySimple:  {10 * time.Millisecond, 50 * time.Millisecond},
	queryMedium:  {50 * time.Millisecond, 150 * time.Millisecond},
	queryComplex: {150 * time.Millisecond, 400 * time.Millisecond},
}

// simulateQuery sleeps for a class-dependent random interval and reports
// the simulated query time.
func simulateQuery(c queryClass) time.Duration {
	bounds, ok := queryDelays[c]
	if !ok {
		bounds = queryDelays[querySimple]
	}
	d := bounds[0] + time.Duration(rand.Int63n(int64(bounds[1]-bounds[0])))
	time.Sleep(d)
	return d
}

type cpuClass int

const (
	cpuLight  cpuClass = 20_000
	cpuMedium cpuClass = 100_000
	cpuHeavy  cpuClass = 400_000
)

var workSink uint64

// simulateCPU burns a class-dependent number of iterations and reports
// the elapsed time.
func simulateCPU(c cpuClass) time.Duration {
	start := time.Now()
	var acc float64
	for i := 0; i < int(c); i++ {
		acc += math.Sqrt(rand.Float64() * 999)
	}
	atomic.AddUint64(&workSink, math.Float64bits(acc)) // keep the loop honest
	return time.Since(start)
}
