package main

import "github.com/senomardetritos/sgbd-sqlserver/cmd"

func main() {
	cmd.Execute()
}
