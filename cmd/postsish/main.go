package main

import "posts-backend/cmd/postsish/commands"

func main() {
	commands.Execute()
}
