package main

import "github.com/enerkotik/pricecrawler/cmd"

func main() {
	cmd.Execute()
}
