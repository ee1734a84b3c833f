package main

import (
	"stream_sender/app"
)

func main() {
	app.Start()
}
