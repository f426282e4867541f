package main

import "github.com/oshokin/git-wheelhouse/cmd/wheelhouse-builder/cmd"

func main() {
	cmd.Execute()
}
