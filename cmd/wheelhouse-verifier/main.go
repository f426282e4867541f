package main

import "github.com/oshokin/git-wheelhouse/cmd/wheelhouse-verifier/cmd"

func main() {
	cmd.Execute()
}
