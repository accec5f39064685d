package main

import "github.com/rudransh-shrivastava/peer-room/internal/client/cmd"

func main() {
	cmd.Execute()
}
