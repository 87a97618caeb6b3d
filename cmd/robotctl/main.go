// robotctl: interactive terminal client for a robotsim server
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/teslashibe/go-robotsim/pkg/client"
	"github.com/teslashibe/go-robotsim/pkg/debug"
	"github.com/teslashibe/go-robotsim/pkg/protocol"
	"github.com/teslashibe/go-robotsim/pkg/robot"
)

const (
	defaultSpeed   = 50
	pollInterval   = 2 * time.Second
	requestTimeout = 10 * time.Second
)

var (
	server    = flag.String("server", "http://localhost:8000", "robotsim server URL")
	debugFlag = flag.Bool("debug", false, "Enable debug logging")
	debugWire = flag.Bool("debug-wire", false, "Print raw websocket frames")
)

// console serializes terminal output from the input loop and the status watcher.
type console struct {
	mu         sync.Mutex
	lastStatus string
}

func (c *console) printf(format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Printf(format, args...)
}

func (c *console) status(s robot.StatusSnapshot) {
	moving := "No"
	if s.IsMoving {
		moving = "Yes"
	}
	state := "Disconnected"
	if s.IsConnected {
		state = "Connected"
	}
	line := fmt.Sprintf("Status: %s | Position: (%.1f, %.1f) | Rotation: %.1f° | Battery: %.1f%% | Moving: %s",
		state, s.Position.X, s.Position.Y, s.Position.Rotation, s.Battery, moving)

	c.mu.Lock()
	defer c.mu.Unlock()
	if line == c.lastStatus {
		return
	}
	c.lastStatus = line
	fmt.Printf("\n📡 %s\n", line)
}

func main() {
	flag.Parse()
	debug.Enabled = *debugFlag
	debug.Wire = *debugWire

	fmt.Println("🤖 robotctl")
	fmt.Println("===========")
	fmt.Printf("Server: %s\n\n", *server)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	api := client.New(*server)
	out := &console{}

	connect(ctx, api, out)
	go watchStatus(ctx, api, out)

	printMenu()
	runMenu(ctx, api, out)

	disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), requestTimeout)
	defer disconnectCancel()
	if _, err := api.Disconnect(disconnectCtx); err != nil {
		debug.Log("disconnect on exit: %v\n", err)
	}
	fmt.Println("\n👋 Goodbye!")
}

func printMenu() {
	fmt.Println("Robot Control Commands:")
	fmt.Println("1. Move Forward    2. Move Backward   3. Move Left       4. Move Right")
	fmt.Println("5. Rotate Left     6. Rotate Right    7. Stop            8. Emergency Stop")
	fmt.Println("9. Reset Position  0. Disconnect      c. Connect         s. Status")
	fmt.Println("q. Quit")
	fmt.Println("Enter a speed (10-100) to change the speed of later commands")
	fmt.Println(strings.Repeat("-", 70))
}

func runMenu(ctx context.Context, api *client.Client, out *console) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.ToLower(strings.TrimSpace(scanner.Text()))
		}
	}()

	speed := float64(defaultSpeed)
	for {
		out.printf("Command (Speed: %.0f): ", speed)

		var input string
		select {
		case <-ctx.Done():
			return
		case line, more := <-lines:
			if !more {
				return
			}
			input = line
		}
		if input == "" {
			continue
		}
		if input == "q" || input == "quit" {
			return
		}

		if n, err := strconv.Atoi(input); err == nil && n >= 10 && n <= 100 {
			speed = float64(n)
			out.printf("Speed set to: %d%%\n", n)
			continue
		}

		execute(ctx, api, out, input, speed)
	}
}

func execute(ctx context.Context, api *client.Client, out *console, input string, speed float64) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var (
		result *robot.CommandResult
		err    error
	)
	switch input {
	case "1":
		result, err = api.Move(ctx, robot.DirectionForward, speed)
	case "2":
		result, err = api.Move(ctx, robot.DirectionBackward, speed)
	case "3":
		result, err = api.Move(ctx, robot.DirectionLeft, speed)
	case "4":
		result, err = api.Move(ctx, robot.DirectionRight, speed)
	case "5":
		result, err = api.Rotate(ctx, robot.DirectionLeft, speed)
	case "6":
		result, err = api.Rotate(ctx, robot.DirectionRight, speed)
	case "7":
		result, err = api.Stop(ctx)
	case "8":
		result, err = api.EmergencyStop(ctx)
	case "9":
		result, err = api.Reset(ctx)
	case "0":
		if _, err := api.Disconnect(ctx); err != nil {
			out.printf("✗ %v\n", err)
			return
		}
		out.printf("✓ Disconnected\n")
		return
	case "c":
		connect(ctx, api, out)
		return
	case "s":
		st, err := api.Status(ctx)
		if err != nil {
			out.printf("✗ %v\n", err)
			return
		}
		out.status(*st)
		return
	default:
		out.printf("Invalid command! Use 1-9, 0, c, s or q\n")
		return
	}

	if err != nil {
		out.printf("✗ %v\n", err)
		return
	}
	out.printf("✓ %s\n", describe(result))
}

func describe(r *robot.CommandResult) string {
	switch {
	case r.Message != "":
		return r.Message
	case r.NewPosition != nil:
		return fmt.Sprintf("%s %s → (%.1f, %.1f)", r.Command, r.Direction, r.NewPosition.X, r.NewPosition.Y)
	case r.NewRotation != nil:
		return fmt.Sprintf("%s %s → %.1f°", r.Command, r.Direction, *r.NewRotation)
	case r.Position != nil:
		return fmt.Sprintf("%s at (%.1f, %.1f)", r.Command, r.Position.X, r.Position.Y)
	default:
		return r.Command
	}
}

func connect(ctx context.Context, api *client.Client, out *console) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	out.printf("Attempting to connect to robot... ")
	res, err := api.Connect(ctx)
	if err != nil {
		out.printf("✗ Connection failed: %v\n\n", err)
		return
	}
	out.printf("✓ Connected to %s (firmware %s)\n\n", res.RobotModel, res.FirmwareVersion)
}

// watchStatus follows the status websocket. When the stream is unavailable
// it polls instead and retries the stream on the next poll.
func watchStatus(ctx context.Context, api *client.Client, out *console) {
	for ctx.Err() == nil {
		err := api.WatchStatus(ctx, client.WatchHandlers{
			OnStatus: out.status,
			OnEvent: func(e robot.Event) {
				debug.Log("\n🔔 %s %s\n", e.Type, e.Message)
			},
			OnError: func(e protocol.ErrorData) {
				out.printf("\n⚠️  server: %s\n", e.Message)
			},
			OnPong: func(p protocol.PongData) {
				debug.Log("\nstatus stream latency: %dms\n", p.LatencyMs)
			},
		})
		if err == nil {
			return
		}
		debug.Log("\nstatus stream: %v, polling\n", err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(pollInterval):
		}
		pollCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		if st, err := api.Status(pollCtx); err == nil {
			out.status(*st)
		}
		cancel()
	}
}
