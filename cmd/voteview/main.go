// Copyright © 2018 One Concern

package main

import (
	_ "github.com/joho/godotenv/autoload"

	"github.com/oneconcern/voteview/cmd/voteview/cmd"
)

func main() {
	cmd.Execute()
}
