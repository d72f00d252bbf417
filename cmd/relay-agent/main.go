package main

import "go-logrelay/internal/app"

func main() {
	app.RunAgent()
}
