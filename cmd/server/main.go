package main // console server entry point

import (
	"github.com/joho/godotenv"
	"github.com/labstack/gommon/log"
	"go.uber.org/fx"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debugf("no .env file loaded: %v", err)
	}

	app := fx.New(
		configModule,
		storageModule,
		identityModule,
		consoleModule,
		httpModule,
		fx.Invoke(bootstrapAdmin, startPushConsumer, startServer),
	)
	app.Run()
}
