package main

// mock the archive tool: a stand-in oracle for local runs without 7-Zip
// installed. Point SEVENZIP_PATH at this binary; MOCK7Z_CRASH_RATE controls
// how often it misbehaves.

import (
	"fmt"
	"math/rand"
	"os"
	"strconv"
)

func main() {
	if len(os.Args) < 3 || os.Args[1] != "t" {
		fmt.Fprintln(os.Stderr, "usage: mock7z t <archive>")
		os.Exit(7) // 7-Zip's command line error code
	}

	data, err := os.ReadFile(os.Args[2])
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot open archive: %v\n", err)
		os.Exit(2)
	}

	crashRate := 0.05
	if v := os.Getenv("MOCK7Z_CRASH_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			crashRate = f
		}
	}

	fmt.Printf("Testing archive: %s (%d bytes)\n", os.Args[2], len(data))

	if rand.Float64() < crashRate {
		switch rand.Intn(4) {
		case 0:
			fmt.Fprintln(os.Stderr, "Internal error: unexpected header state")
			os.Exit(1)
		case 1:
			os.Exit(2)
		case 2:
			os.Exit(8)
		default:
			fmt.Fprintln(os.Stderr, "Access violation at 0x00000000")
			os.Exit(2)
		}
	}

	fmt.Println("Everything is Ok")
}
