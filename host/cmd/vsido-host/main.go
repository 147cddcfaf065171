package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"vsido/host/robot"
)

var (
	device  = flag.String("device", "", "Serial device path (default "+defaultDevice+")")
	baud    = flag.Int("baud", 0, "Baud rate (default 115200)")
	cfgPath = flag.String("config", "", "Optional TOML config file")
	verbose = flag.Bool("verbose", false, "Log wire traffic")
)

func main() {
	flag.Parse()

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}).Level(level).With().Timestamp().Str("app", "vsido-host").Logger()

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("bad configuration")
	}
	if *device != "" {
		cfg.serial.Device = *device
	}
	if *baud != 0 {
		cfg.serial.Baud = *baud
	}

	bot := robot.New(log)
	log.Info().Str("device", cfg.serial.Device).Int("baud", cfg.serial.Baud).Msg("connecting")
	if err := bot.ConnectWithConfig(cfg.serial); err != nil {
		log.Fatal().Err(err).Msg("connect failed")
	}
	defer bot.Close()

	fmt.Println("V-Sido CONNECT host")
	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.Fields(line)

		switch parts[0] {
		case "quit", "exit", "q":
			return

		case "help", "?":
			printHelp()

		case "version":
			version, err := bot.GetVIDVersion(cfg.response)
			if err != nil {
				log.Error().Err(err).Msg("version query failed")
				continue
			}
			fmt.Printf("firmware version: %d\n", version)

		case "walk":
			forward, turn, err := parseWalkArgs(parts[1:])
			if err != nil {
				fmt.Println(err)
				continue
			}
			if err := bot.Walk(forward, turn); err != nil {
				log.Error().Err(err).Msg("walk failed")
			}

		case "stop":
			if err := bot.Walk(0, 0); err != nil {
				log.Error().Err(err).Msg("stop failed")
			}

		case "accel":
			accel, err := bot.GetAcceleration(cfg.response)
			if err != nil {
				log.Error().Err(err).Msg("acceleration query failed")
				continue
			}
			fmt.Printf("ax=%d ay=%d az=%d\n", accel.AX, accel.AY, accel.AZ)

		case "servos":
			present, err := bot.CheckConnectedServo(cfg.response)
			if err != nil {
				log.Error().Err(err).Msg("servo check failed")
				continue
			}
			for _, s := range present {
				fmt.Printf("servo %d responded in %dus\n", s.SID, s.Time)
			}

		case "ik":
			if len(parts) < 2 {
				fmt.Println("usage: ik <kid>")
				continue
			}
			kid, err := strconv.Atoi(parts[1])
			if err != nil || kid < 0 || kid > 0xFF {
				fmt.Println("usage: ik <kid>")
				continue
			}
			positions, err := bot.GetIK([]byte{byte(kid)}, cfg.response)
			if err != nil {
				log.Error().Err(err).Msg("ik query failed")
				continue
			}
			for _, p := range positions {
				fmt.Printf("kid %d: x=%d y=%d z=%d\n", p.KID, p.X, p.Y, p.Z)
			}

		default:
			fmt.Printf("Unknown command: %s (type 'help' for available commands)\n", parts[0])
		}
	}
}

func parseWalkArgs(args []string) (forward, turn int, err error) {
	forward = 100
	if len(args) > 0 {
		forward, err = strconv.Atoi(args[0])
		if err != nil {
			return 0, 0, fmt.Errorf("usage: walk [forward] [turn]")
		}
	}
	if len(args) > 1 {
		turn, err = strconv.Atoi(args[1])
		if err != nil {
			return 0, 0, fmt.Errorf("usage: walk [forward] [turn]")
		}
	}
	return forward, turn, nil
}

func printHelp() {
	fmt.Println("Available commands:")
	fmt.Println("  version              - read the firmware version")
	fmt.Println("  walk [forward] [turn] - walk (values -100..100, default 100 0)")
	fmt.Println("  stop                 - stop walking")
	fmt.Println("  accel                - read the accelerometer")
	fmt.Println("  servos               - list responding servos")
	fmt.Println("  ik <kid>             - read an IK body part position")
	fmt.Println("  quit                 - exit")
}
