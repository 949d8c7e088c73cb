package main

import (
	"github.com/go2atv/go2atv/internal/api"
	"github.com/go2atv/go2atv/internal/app"
	"github.com/go2atv/go2atv/internal/remote"
	"github.com/go2atv/go2atv/pkg/shell"
)

func main() {
	app.Init() // init config and logs

	api.Init()    // init HTTP API server
	remote.Init() // add Apple TV remote support

	shell.RunUntilSignal()
}
