package main

import "github.com/agusx1211/cli-worker/internal/cli"

func main() {
	cli.Execute()
}
