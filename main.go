package main

import "github.com/Taichi-iskw/yt-skip/cmd"

func main() {
	cmd.Execute()
}
