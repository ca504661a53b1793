package main

import "github.com/CosmoTheDev/pipeline-guardian/cmd"

func main() {
	cmd.Execute()
}
