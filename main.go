package main

import (
	"github.com/The-Morpho/drivingSchool-sub000/server"
)

func main() {
	s := server.NewServer()
	defer s.Shutdown()
	s.Start(":8080")
}
