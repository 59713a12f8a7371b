package main

// General API documentation for swaggo. Run `swag init -g cmd/segd/docs.go` to regenerate docs.
//
// @title           segd API
// @version         0.1
// @description     HTTP API for SAM2 and micro-sam image segmentation.
//
// @contact.name   segd maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
