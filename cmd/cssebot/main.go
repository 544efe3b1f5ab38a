package main

import (
	"log"

	"github.com/lucashicks1/cssebot/cmd/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
