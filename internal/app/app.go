package app

import (
	"context"
	"net/http"

	"github.com/nalonix/better-auth/internal/pkg/pkgconfig"
	"github.com/nalonix/better-auth/internal/pkg/pkglog"
	"github.com/nalonix/better-auth/internal/pkg/pkgrouter"
	"github.com/nalonix/better-auth/internal/pkg/pkgroutine"
	"github.com/nalonix/better-auth/internal/pkg/pkguid"
)

type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	// configuration
	config pkgconfig.Config

	// libraries
	uuid      pkguid.StringID
	goroutine *pkgroutine.Manager

	// resources

	// server
	router     *pkgrouter.Router
	httpServer *http.Server

	//
	closerFn map[string]func(context.Context) error
}

func New() *App {
	pkglog.InitLogging()

	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		ctx:    ctx,
		cancel: cancel,
	}

	app.initConfig()
	app.initLibraries()
	app.initHTTPServer()
	app.initModules()
	app.initClosers()

	return app
}
