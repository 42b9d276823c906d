package main

import "github.com/Alijeyrad/simorq_settlement/cmd"

func main() {
	cmd.Execute()
}
