// Command proximity runs term-proximity networks offline and manages the
// persistent document library.
//
// Usage:
//
//	proximity run --corpus 'data/**/*.json' --query "sensor network"
//	proximity import --source bolt 'data/**/*.json'
package main

import "github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/cli"

func main() {
	cli.Execute()
}
