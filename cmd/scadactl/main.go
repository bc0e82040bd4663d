// Command scadactl is a diagnostic Modbus TCP client for the bridge. It
// reads the monitoring and control banks with the register names from the
// catalog, writes individual holding registers, and can poll traffic data
// continuously.
package main

import (
	"bufio"
	"encoding/binary"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/goburrow/modbus"

	"github.com/trafficgrid/sumo-modbus-bridge/internal/catalog"
	"github.com/trafficgrid/sumo-modbus-bridge/internal/registers"
)

func main() {
	addr := flag.String("addr", "localhost:5020", "Modbus TCP address of the bridge")
	unitID := flag.Int("unit", 1, "Modbus unit identifier")
	timeout := flag.Duration("timeout", 5*time.Second, "request timeout")
	write := flag.String("write", "", "write a holding register, formatted addr=value (e.g. 0=1)")
	watch := flag.Duration("watch", 0, "poll traffic registers continuously for this duration")
	interactive := flag.Bool("i", false, "interactive command prompt")
	flag.Parse()

	handler := modbus.NewTCPClientHandler(*addr)
	handler.Timeout = *timeout
	handler.SlaveId = byte(*unitID)

	if err := handler.Connect(); err != nil {
		fmt.Fprintf(os.Stderr, "connect %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer handler.Close()

	client := modbus.NewClient(handler)

	if *write != "" {
		if err := writeRegister(client, *write); err != nil {
			fmt.Fprintf(os.Stderr, "write: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *watch > 0 {
		if err := watchTraffic(client, *watch); err != nil {
			fmt.Fprintf(os.Stderr, "watch: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *interactive {
		runInteractive(client)
		return
	}

	if err := dumpBanks(client); err != nil {
		fmt.Fprintf(os.Stderr, "read: %v\n", err)
		os.Exit(1)
	}
}

func runInteractive(client modbus.Client) {
	fmt.Println("commands:")
	fmt.Println("  r            dump both register banks")
	fmt.Println("  m            monitor traffic for 20s")
	fmt.Println("  e <0|1>      emergency mode off/on")
	fmt.Println("  p1 <phase>   traffic light 1 manual phase (0=auto)")
	fmt.Println("  p2 <phase>   traffic light 2 manual phase (0=auto)")
	fmt.Println("  s <km/h>     speed limit override (0=normal)")
	fmt.Println("  reset        reset counters")
	fmt.Println("  q            quit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(">>> ")
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(strings.ToLower(scanner.Text()))
		if len(fields) == 0 {
			continue
		}

		var err error
		switch fields[0] {
		case "q":
			return
		case "r":
			err = dumpBanks(client)
		case "m":
			err = watchTraffic(client, 20*time.Second)
		case "e":
			err = writeCommand(client, catalog.HoldingEmergencyMode, fields)
		case "p1":
			err = writeCommand(client, catalog.HoldingTL1Phase, fields)
		case "p2":
			err = writeCommand(client, catalog.HoldingTL2Phase, fields)
		case "s":
			err = writeCommand(client, catalog.HoldingSpeedOverride, fields)
		case "reset":
			_, err = client.WriteSingleRegister(catalog.HoldingSystemReset, 1)
		default:
			fmt.Println("unknown command")
			continue
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
}

func writeCommand(client modbus.Client, addr uint16, fields []string) error {
	if len(fields) < 2 {
		return fmt.Errorf("missing value")
	}
	value, err := strconv.ParseUint(fields[1], 10, 16)
	if err != nil {
		return fmt.Errorf("bad value %q: %w", fields[1], err)
	}
	if _, err := client.WriteSingleRegister(addr, uint16(value)); err != nil {
		return err
	}
	fmt.Println("command sent")
	return nil
}

func dumpBanks(client modbus.Client) error {
	input, err := readBank(client, registers.BankInput)
	if err != nil {
		return fmt.Errorf("input registers: %w", err)
	}
	holding, err := readBank(client, registers.BankHolding)
	if err != nil {
		return fmt.Errorf("holding registers: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "MONITORING (input registers)")
	fmt.Fprintln(w, "ADDR\tNAME\tVALUE\tUNIT")
	for _, entry := range catalog.InputEntries() {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", entry.Address, entry.Name, input[entry.Address], entry.Unit)
	}

	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "CONTROL (holding registers)")
	fmt.Fprintln(w, "ADDR\tNAME\tVALUE\tUNIT")
	for _, entry := range catalog.HoldingEntries() {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", entry.Address, entry.Name, holding[entry.Address], entry.Unit)
	}

	return w.Flush()
}

func watchTraffic(client modbus.Client, duration time.Duration) error {
	fmt.Println("time\tvehicles\tavg km/h\twaiting\tjam")

	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		raw, err := client.ReadInputRegisters(0, 5)
		if err != nil {
			return err
		}
		values := decodeRegisters(raw)
		fmt.Printf("%s\t%d\t%d\t%d\t%d\n",
			time.Now().Format("15:04:05"),
			values[catalog.InputVehicleCount],
			values[catalog.InputAverageSpeed],
			values[catalog.InputTotalWaitingTime],
			values[catalog.InputJamLength],
		)
		time.Sleep(time.Second)
	}
	return nil
}

func writeRegister(client modbus.Client, arg string) error {
	addrStr, valueStr, ok := strings.Cut(arg, "=")
	if !ok {
		return fmt.Errorf("expected addr=value, got %q", arg)
	}
	addr, err := strconv.ParseUint(strings.TrimSpace(addrStr), 10, 16)
	if err != nil {
		return fmt.Errorf("bad address %q: %w", addrStr, err)
	}
	value, err := strconv.ParseUint(strings.TrimSpace(valueStr), 10, 16)
	if err != nil {
		return fmt.Errorf("bad value %q: %w", valueStr, err)
	}

	entry, known := catalog.LookupHolding(uint16(addr))
	if known && !entry.Writable {
		return fmt.Errorf("register %d (%s) is reserved", addr, entry.Name)
	}

	if _, err := client.WriteSingleRegister(uint16(addr), uint16(value)); err != nil {
		return err
	}

	name := "unmapped"
	if known {
		name = entry.Name
	}
	fmt.Printf("wrote %d to holding register %d (%s)\n", value, addr, name)
	return nil
}

func readBank(client modbus.Client, bank registers.Bank) ([]uint16, error) {
	read := client.ReadHoldingRegisters
	if bank == registers.BankInput {
		read = client.ReadInputRegisters
	}

	// The bridge serves 100 cells per bank; read them in chunks to stay
	// inside the protocol's per-request quantity limit.
	values := make([]uint16, 0, registers.BankSize)
	for start := uint16(0); start < registers.BankSize; start += 50 {
		raw, err := read(start, 50)
		if err != nil {
			return nil, err
		}
		values = append(values, decodeRegisters(raw)...)
	}
	return values, nil
}

func decodeRegisters(raw []byte) []uint16 {
	values := make([]uint16, 0, len(raw)/2)
	for i := 0; i+1 < len(raw); i += 2 {
		values = append(values, binary.BigEndian.Uint16(raw[i:i+2]))
	}
	return values
}
