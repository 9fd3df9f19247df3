package main

import "github.com/campusjobs/jobboard-auth/cmd"

func main() {
	cmd.Execute()
}
