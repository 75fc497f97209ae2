package main

import (
	"context"
	"log"

	"github.com/dmitrijs2005/ghgadelivery/internal/custodian/app"
	"github.com/dmitrijs2005/ghgadelivery/internal/custodian/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	a, err := app.NewApp(cfg)

	if err != nil {
		log.Printf("%v", err)
		return
	}

	if err := a.Run(ctx); err != nil {
		log.Printf("%v", err)
	}

}
