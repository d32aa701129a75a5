// Command shsdemo is a small, non-product demonstration of the store: it
// opens a file (creating it on first run), puts one value under a
// string selector via the adapter package, reads it back from the same
// open store, and prints the value it got. It does not reopen the file.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/candanumut/shs"
	"github.com/candanumut/shs/adapter"
)

func main() {
	path := pflag.StringP("path", "p", "shsdemo.shs", "path to the store file")
	selector := pflag.StringP("selector", "s", "demo-key", "selector to put/get")
	value := pflag.StringP("value", "v", "hello from shsdemo", "value to put")
	segmentCount := pflag.Uint32("segments", shs.DefaultSegmentCount, "bucket table segment count (new stores only)")
	bloomFP := pflag.Float64("bloom-fp", shs.DefaultBloomFP, "target Bloom false-positive rate (sizes new stores; sets the hash count on every open)")
	verbose := pflag.BoolP("verbose", "V", false, "enable structured logging to stderr")
	pflag.Parse()

	logger := zap.NewNop()
	if *verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintln(os.Stderr, "shsdemo: build logger:", err)
			os.Exit(1)
		}
		logger = l
	}
	defer logger.Sync()

	store, err := shs.Open(*path, adapter.KeySize,
		shs.WithSegmentCount(*segmentCount),
		shs.WithBloomFP(*bloomFP),
		shs.WithLogger(logger),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, "shsdemo: open:", err)
		os.Exit(1)
	}

	a := adapter.New(store)
	defer a.Close()

	if err := a.Put(*selector, *value); err != nil {
		fmt.Fprintln(os.Stderr, "shsdemo: put:", err)
		os.Exit(1)
	}

	got, ok, err := a.Get(*selector)
	if err != nil {
		fmt.Fprintln(os.Stderr, "shsdemo: get:", err)
		os.Exit(1)
	}
	if !ok {
		fmt.Fprintln(os.Stderr, "shsdemo: just-put selector came back absent")
		os.Exit(1)
	}

	fmt.Printf("put/get round-trip for %q: %s\n", *selector, got)
}
