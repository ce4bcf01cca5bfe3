package main

import (
	"bookstore-api/app"
)

// @title           Bookstore API
// @version         1.0
// @description     Bookstore e-commerce backend: authentication and session renewal.

// @host      localhost:8080
// @BasePath  /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	app.Run()
}
