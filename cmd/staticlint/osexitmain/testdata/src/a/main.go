package main

import (
	"os"
	"syscall"
)

func main() {
	defer func() {}()
	if len(os.Args) > 3 {
		syscall.Exit(2) // want `direct syscall.Exit call in main`
	}
	go func() {
		os.Exit(3)
	}()
	os.Exit(1) // want `direct os.Exit call in main`
}

func run() {
	os.Exit(0)
}
