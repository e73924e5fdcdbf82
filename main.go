package main

import "github.com/jomarcello/railway-webhook/cmd"

func main() {
	cmd.Execute()
}
