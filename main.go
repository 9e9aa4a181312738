package main

import "github.com/dhgavali-gis/get-postalcode-datacenter/cmd"

func main() {
	cmd.Execute()
}
