package main

import "github.com/dayuer/officebot/cmd"

func main() {
	cmd.Execute()
}
