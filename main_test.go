package main

import "testing"

func TestMainRunsCLI(t *testing.T) {
	ran := false
	orig := execute
	execute = func() { ran = true }
	t.Cleanup(func() { execute = orig })

	main()

	if !ran {
		t.Fatal("main did not invoke the CLI")
	}
}
