package main

import (
	"github.com/301redirect/redirector/cmd"
	_ "github.com/301redirect/redirector/cmd/cli"
	_ "github.com/301redirect/redirector/cmd/server"
)

func main() {
	cmd.Execute()
}
