package main

import (
	"github.com/Paintersrp/sigreap/internal/cli"
	"github.com/Paintersrp/sigreap/internal/metrics"
)

func main() {
	metrics.EmitBuildInfo()
	cli.Execute()
}
