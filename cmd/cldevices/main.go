// Command cldevices lists the compute devices of every registered backend
// and marks the one the simulator would pick.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"clothsim/gpu"
	_ "clothsim/gpu/cpu"
	_ "clothsim/gpu/opencl"
)

func main() {
	only := flag.String("backend", "", "list only this backend")
	flag.Parse()

	names := gpu.Backends()
	if *only != "" {
		names = []string{*only}
	}

	failed := false
	for _, name := range names {
		if err := listBackend(name); err != nil {
			color.New(color.FgHiRed, color.Bold).Fprintf(os.Stderr, "%s: %v\n", name, err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func listBackend(name string) error {
	b, err := gpu.Lookup(name)
	if err != nil {
		return err
	}
	info := b.Info()
	color.New(color.FgHiBlue, color.Bold).Printf("%s %s", info.Name, info.Version)
	color.New(color.FgHiBlack).Printf("  %s\n", info.Description)

	devices, err := b.Devices()
	if errors.Is(err, gpu.ErrBackendUnavailable) {
		color.New(color.FgHiYellow).Printf("  unavailable: %v\n\n", err)
		return nil
	}
	if err != nil {
		return err
	}

	chosen, selErr := gpu.SelectDevice(devices, gpu.AutoDevice)

	chosenIndex := -1
	if selErr == nil {
		chosenIndex = chosen.Index
	}
	if err := renderDevices(os.Stdout, devices, chosenIndex); err != nil {
		return err
	}

	if selErr != nil {
		color.New(color.FgHiYellow).Printf("  no automatic choice: %v\n\n", selErr)
	} else {
		fmt.Printf("  automatic choice: %d (%s)\n\n", chosen.Index, chosen.Name)
	}
	return nil
}

// renderDevices writes one table row per device and marks chosen.
func renderDevices(w io.Writer, devices []gpu.DeviceInfo, chosen int) error {
	table := tablewriter.NewWriter(w)
	table.Header("#", "Platform", "Device", "Type", "Memory", "GL sharing")
	for _, d := range devices {
		sharing := color.New(color.FgHiBlack).Sprint("no")
		if d.GLSharing {
			sharing = color.New(color.FgHiGreen).Sprint("yes")
		}
		idx := strconv.Itoa(d.Index)
		if d.Index == chosen {
			idx = color.New(color.FgHiGreen, color.Bold).Sprint("*" + idx)
		}
		row := []string{idx, d.Platform, d.Name, d.Type.String(), fmt.Sprintf("%d MB", d.MemoryMB), sharing}
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}
