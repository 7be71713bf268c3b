package main

import "github.com/oshokin/installtool/cmd/installtool/cmd"

func main() {
	cmd.Execute()
}
