package main

import "imagefin/internal/cli"

func main() {
	cli.Execute()
}
