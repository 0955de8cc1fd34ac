package main // Entry point package

import (
	_ "time/tzdata" // embedded zone database so RESTAURANT_TZ resolves in scratch images

	"github.com/iliyamo/restaurant-reservation/cmd"
)

func main() {
	cmd.Execute()
}
