package main

import (
	"log"

	_ "github.com/joho/godotenv/autoload"

	"github.com/spigell/locum-chat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
