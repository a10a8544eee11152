package main

import "github.com/jbloino/gxxtools/cmd"

func main() {
	cmd.Execute()
}
