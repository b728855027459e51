package main

import (
	"log"

	"dday-scheduler/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
