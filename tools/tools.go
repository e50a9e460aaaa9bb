//go:build tools

// Package tools lists the development tools used with coffee-ui. They are installed with
// `go install` and stay out of go.mod.
package tools

// Air rebuilds and restarts the server on Go changes. Run it with DEV=true so templates and
// static files are also read from disk:
//
//	go install github.com/air-verse/air@v1.63.0
//	DEV=true air --build.cmd "go build -o ./tmp/coffee-ui ./cmd/coffee-ui" --build.bin ./tmp/coffee-ui
//
// mockgen regenerates internal/mocks through `go generate ./internal/mocks`. It runs with
// `go run` at the version pinned in generate.go, so nothing needs installing.
