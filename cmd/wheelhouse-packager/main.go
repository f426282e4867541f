package main

import "github.com/oshokin/git-wheelhouse/cmd/wheelhouse-packager/cmd"

func main() {
	cmd.Execute()
}
