// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Command gf16bench drives the GF(2^16) pipeline against synthetic input to
// measure throughput. It carries no file I/O or container-format
// awareness -- see spec.md §1's "out of scope" list -- only enough to
// generate inputs, feed the pipeline, and report what came out the other
// end.
package main

import (
	"fmt"
	"log"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/urfave/cli"
	"github.com/xtaci/gf2p16/pipeline"
)

// VERSION is populated via build flags when packaging official binaries.
var VERSION = "SELFBUILD"

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	myApp := cli.NewApp()
	myApp.Name = "gf16bench"
	myApp.Usage = "GF(2^16) erasure-coding pipeline throughput benchmark"
	myApp.Version = VERSION
	myApp.Flags = []cli.Flag{
		cli.IntFlag{
			Name:  "slicesize",
			Value: 1 << 20,
			Usage: "bytes per input/output slice",
		},
		cli.IntFlag{
			Name:  "inputs",
			Value: 256,
			Usage: "number of synthetic input slices to feed",
		},
		cli.IntFlag{
			Name:  "outputs",
			Value: 16,
			Usage: "number of recovery slices to compute",
		},
		cli.IntFlag{
			Name:  "grouping",
			Value: 12,
			Usage: "target input grouping per staging batch",
		},
		cli.IntFlag{
			Name:  "threads",
			Value: 0,
			Usage: "compute worker count (0 = NumCPU)",
		},
		cli.StringFlag{
			Name:  "backend",
			Value: "",
			Usage: "backend name (\"\" = default)",
		},
		cli.StringFlag{
			Name:  "statslog",
			Value: "",
			Usage: "path to periodically write a CSV throughput log (empty disables)",
		},
	}
	myApp.Action = run

	if err := myApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	sliceSize := c.Int("slicesize")
	numInputs := c.Int("inputs")
	numOutputs := c.Int("outputs")

	var stats *pipeline.StatsLogger
	if path := c.String("statslog"); path != "" {
		stats = pipeline.NewStatsLogger(path, time.Second)
	}

	var mu sync.Mutex
	var totalInputs int
	progress := func(n int, firstIdx uint16) {
		mu.Lock()
		totalInputs += n
		mu.Unlock()
		log.Printf("batch complete: %d inputs, first index %d", n, firstIdx)
	}

	ctl := pipeline.New(pipeline.Config{
		SliceSize:           sliceSize,
		BackendName:         c.String("backend"),
		TargetInputGrouping: c.Int("grouping"),
		NumThreads:          c.Int("threads"),
		OnProgress:          progress,
		Stats:               stats,
	})

	exponents := make([]uint16, numOutputs)
	for i := range exponents {
		exponents[i] = uint16(i)
	}
	ctl.SetRecoverySlices(exponents)

	rnd := rand.New(rand.NewSource(1))
	start := time.Now()

	var wg sync.WaitGroup
	wg.Add(1)
	for i := 0; i < numInputs; i++ {
		buf := make([]byte, sliceSize)
		rnd.Read(buf)
		for !ctl.AddInput(buf, uint16(i), false, nil) {
			time.Sleep(time.Millisecond)
		}
	}
	ctl.EndInput(func() { wg.Done() })
	wg.Wait()

	elapsed := time.Since(start)
	mbps := float64(numInputs*sliceSize) / elapsed.Seconds() / (1 << 20)
	fmt.Printf("processed %d inputs x %d bytes into %d outputs in %s (%.2f MiB/s input throughput)\n",
		numInputs, sliceSize, numOutputs, elapsed, mbps)

	dst := make([]byte, sliceSize)
	var checkWg sync.WaitGroup
	checkWg.Add(1)
	ctl.GetOutput(0, dst, func(dst []byte, idx int, ok bool) {
		fmt.Printf("output 0 checksum ok: %v\n", ok)
		checkWg.Done()
	})
	checkWg.Wait()

	ctl.Deinit(nil)
	return nil
}
