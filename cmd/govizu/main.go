package main

import (
	"govizu/internal/app"
	"govizu/internal/appshell"
)

func main() {
	appshell.Main(app.Run)
}
