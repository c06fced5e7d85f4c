package main

import "github.com/den-kezlia/torrent/internal/cmd"

func main() {
	cmd.Execute()
}
