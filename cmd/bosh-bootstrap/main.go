package main

import "github.com/oshokin/bosh-bootstrap/cmd/bosh-bootstrap/cmd"

func main() {
	cmd.Execute()
}
