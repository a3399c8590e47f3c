package main

import (
	"go.uber.org/fx"

	"github.com/casadx/pedidos/internal/app"
)

func main() {
	fx.New(app.Module).Run()
}
