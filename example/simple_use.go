package main

import (
	"context"
	"fmt"
	"time"

	"github.com/leandrodaf/midiports/internal/logger"
	"github.com/leandrodaf/midiports/sdk/contracts"
	"github.com/leandrodaf/midiports/sdk/midiports"
)

func main() {
	log := logger.NewZapLogger()

	dlg, err := midiports.NewDeviceSelectionDialog(
		contracts.WithLogger(log),
		contracts.WithLogLevel(contracts.InfoLevel),
		contracts.WithBaseURL("http://127.0.0.1:8888"),
		contracts.WithTimeout(5*time.Second),
	)
	if err != nil {
		log.Error("Failed to initialize MIDI devices dialog", log.Field().Error("error", err))
		return
	}

	ctx := context.Background()
	if res := <-dlg.Open(ctx); !res.OK() {
		log.Error("Failed to load MIDI devices", log.Field().Error("error", res.Err))
		return
	}

	for _, e := range dlg.Snapshot().Entries {
		fmt.Printf("%-30s %-20s in use: %v\n", e.ID, e.Name, e.Checked)
	}

	// Enable every port and merge them into one logical port.
	if err := dlg.SetAll(true); err != nil {
		log.Error("Failed to select MIDI devices", log.Field().Error("error", err))
		return
	}
	if err := dlg.SetMode(contracts.Aggregated); err != nil {
		log.Error("Failed to set MIDI mode", log.Field().Error("error", err))
		return
	}

	res := <-dlg.Submit(ctx)
	if res.Err != nil {
		return
	}
	fmt.Println("Enabled MIDI devices:", res.Selection.Devs)
}
