package main

import "github.com/punchamoorthee/brokerledger/cmd/ledgerctl/cmd"

func main() {
	cmd.Execute()
}
