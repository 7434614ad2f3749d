package main

import "po-notifier-go/internal/app"

func main() {
	app.Execute()
}
