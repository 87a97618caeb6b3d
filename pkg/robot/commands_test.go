package robot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMove_DistanceBySpeed(t *testing.T) {
	tests := []struct {
		speed float64
		want  float64
	}{
		{10, 0.5},
		{25, 1.25},
		{50, 2.5},
		{73, 3.65},
		{100, 5},
	}

	for _, tt := range tests {
		s := newTestSimulator(t)
		connect(t, s)

		result, err := s.ExecuteCommand(context.Background(), CommandMove, Params{Direction: "forward", Speed: ptr(tt.speed)})
		if err != nil {
			t.Fatalf("speed %v: %v", tt.speed, err)
		}
		if !floatEquals(*result.Distance, tt.want) {
			t.Errorf("speed %v: distance got %v, want %v", tt.speed, *result.Distance, tt.want)
		}
		if !floatEquals(result.NewPosition.Y, tt.want) {
			t.Errorf("speed %v: y got %v, want %v", tt.speed, result.NewPosition.Y, tt.want)
		}
	}
}

func TestMove_ForwardAtFullSpeed(t *testing.T) {
	rec := &eventRecorder{}
	s := newTestSimulator(t)
	s.OnEvent(rec.record)
	connect(t, s)

	result, err := s.ExecuteCommand(context.Background(), CommandMove, Params{Direction: "forward", Speed: ptr(100.0)})
	if err != nil {
		t.Fatalf("move: %v", err)
	}

	if *result.OldPosition != (Position{}) {
		t.Errorf("OldPosition: got %+v, want origin", *result.OldPosition)
	}
	if !floatEquals(result.NewPosition.X, 0) || !floatEquals(result.NewPosition.Y, 5) {
		t.Errorf("NewPosition: got %+v, want (0, 5)", *result.NewPosition)
	}
	if *result.Duration != 1000 {
		t.Errorf("Duration: got %d, want 1000", *result.Duration)
	}

	snap := s.Snapshot()
	if !floatEquals(snap.Battery, 99.9) {
		t.Errorf("Battery: got %v, want 99.9", snap.Battery)
	}
	if snap.IsMoving {
		t.Error("should not be moving after completion")
	}
	if snap.LastCommand == nil || *snap.LastCommand != CommandMove {
		t.Errorf("LastCommand: got %v, want move", snap.LastCommand)
	}

	want := []EventType{EventConnected, EventCommandStarted, EventCommandCompleted}
	got := rec.types()
	if len(got) != len(want) {
		t.Fatalf("events: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestMove_Directions(t *testing.T) {
	tests := []struct {
		dir   string
		wantX float64
		wantY float64
	}{
		{"forward", 0, 2.5},
		{"backward", 0, -2.5},
		{"right", 2.5, 0},
		{"left", -2.5, 0},
	}

	for _, tt := range tests {
		s := newTestSimulator(t)
		connect(t, s)

		result, err := s.ExecuteCommand(context.Background(), CommandMove, Params{Direction: tt.dir})
		if err != nil {
			t.Fatalf("%s: %v", tt.dir, err)
		}
		if !floatEquals(result.NewPosition.X, tt.wantX) || !floatEquals(result.NewPosition.Y, tt.wantY) {
			t.Errorf("%s: got (%v, %v), want (%v, %v)", tt.dir,
				result.NewPosition.X, result.NewPosition.Y, tt.wantX, tt.wantY)
		}
	}
}

func TestMove_HeadingRelative(t *testing.T) {
	s := newTestSimulator(t)
	connect(t, s)
	ctx := context.Background()

	// 600/100 * 15 = 90 degrees.
	if _, err := s.ExecuteCommand(ctx, CommandRotate, Params{Direction: "right", Speed: ptr(600.0)}); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	fwd, err := s.ExecuteCommand(ctx, CommandMove, Params{Direction: "forward", Speed: ptr(100.0)})
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	if !floatEquals(fwd.NewPosition.X, 5) || !floatEquals(fwd.NewPosition.Y, 0) {
		t.Errorf("forward at 90: got (%v, %v), want (5, 0)", fwd.NewPosition.X, fwd.NewPosition.Y)
	}

	right, err := s.ExecuteCommand(ctx, CommandMove, Params{Direction: "right", Speed: ptr(100.0)})
	if err != nil {
		t.Fatalf("right: %v", err)
	}
	if !floatEquals(right.NewPosition.X, 5) || !floatEquals(right.NewPosition.Y, -5) {
		t.Errorf("right at 90: got (%v, %v), want (5, -5)", right.NewPosition.X, right.NewPosition.Y)
	}
}

func TestMove_ClampsAtLimit(t *testing.T) {
	s := newTestSimulator(t)
	connect(t, s)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		result, err := s.ExecuteCommand(ctx, CommandMove, Params{Direction: "forward", Speed: ptr(100.0)})
		if err != nil {
			t.Fatalf("move %d: %v", i, err)
		}
		if result.NewPosition.Y > 100 {
			t.Fatalf("move %d: y %v exceeds limit", i, result.NewPosition.Y)
		}
	}

	if got := s.Snapshot().Position.Y; got != 100 {
		t.Errorf("Y: got %v, want exactly 100", got)
	}
}

func TestMove_InvalidParams(t *testing.T) {
	tests := []struct {
		name    string
		params  Params
		wantErr error
	}{
		{"missing direction", Params{}, ErrInvalidDirection},
		{"unknown direction", Params{Direction: "up"}, ErrInvalidDirection},
		{"speed too low", Params{Direction: "forward", Speed: ptr(5.0)}, ErrInvalidSpeed},
		{"speed too high", Params{Direction: "forward", Speed: ptr(150.0)}, ErrInvalidSpeed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSimulator(t)
			connect(t, s)

			_, err := s.ExecuteCommand(context.Background(), CommandMove, tt.params)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}

			snap := s.Snapshot()
			if snap.Position != (Position{}) {
				t.Errorf("pose mutated on failure: %+v", snap.Position)
			}
			if snap.Battery != 100 {
				t.Errorf("battery drained on failure: %v", snap.Battery)
			}
			if snap.IsMoving {
				t.Error("moving should be cleared on failure")
			}
			if snap.Error == nil || *snap.Error != err.Error() {
				t.Errorf("Error: got %v, want %q", snap.Error, err.Error())
			}
		})
	}
}

func TestRotate_NineRightTurns(t *testing.T) {
	s := newTestSimulator(t)
	connect(t, s)

	for i := 0; i < 9; i++ {
		if _, err := s.ExecuteCommand(context.Background(), CommandRotate, Params{Direction: "right", Speed: ptr(30.0)}); err != nil {
			t.Fatalf("rotate %d: %v", i, err)
		}
	}

	if got := s.Snapshot().Position.Rotation; !floatEquals(got, 40.5) {
		t.Errorf("Rotation: got %v, want 40.5", got)
	}
}

func TestRotate_DefaultSpeed(t *testing.T) {
	s := newTestSimulator(t)
	connect(t, s)

	result, err := s.ExecuteCommand(context.Background(), CommandRotate, Params{Direction: "left"})
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if !floatEquals(*result.Angle, 4.5) {
		t.Errorf("Angle: got %v, want 4.5", *result.Angle)
	}
	if !floatEquals(*result.NewRotation, 355.5) {
		t.Errorf("NewRotation: got %v, want 355.5", *result.NewRotation)
	}
	if *result.Duration != 500 {
		t.Errorf("Duration: got %d, want 500", *result.Duration)
	}
}

func TestRotate_StaysNormalized(t *testing.T) {
	s := newTestSimulator(t)
	connect(t, s)
	ctx := context.Background()

	// 10 degrees first, then large left turns of 30 degrees.
	if _, err := s.ExecuteCommand(ctx, CommandRotate, Params{Direction: "right", Speed: ptr(200.0 / 3)}); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	for i := 0; i < 9; i++ {
		result, err := s.ExecuteCommand(ctx, CommandRotate, Params{Direction: "left", Speed: ptr(200.0)})
		if err != nil {
			t.Fatalf("rotate %d: %v", i, err)
		}
		if r := *result.NewRotation; r < 0 || r >= 360 {
			t.Fatalf("rotate %d: rotation %v outside [0, 360)", i, r)
		}
	}

	// 10 - 9*30 = -260, normalized to 100.
	if got := s.Snapshot().Position.Rotation; !floatEquals(got, 100) {
		t.Errorf("Rotation: got %v, want 100", got)
	}
}

func TestRotate_InvalidDirection(t *testing.T) {
	s := newTestSimulator(t)
	connect(t, s)

	for _, dir := range []string{"", "forward", "backward"} {
		_, err := s.ExecuteCommand(context.Background(), CommandRotate, Params{Direction: dir})
		if !errors.Is(err, ErrInvalidDirection) {
			t.Errorf("direction %q: got %v, want ErrInvalidDirection", dir, err)
		}
	}
	if got := s.Snapshot().Position.Rotation; got != 0 {
		t.Errorf("Rotation: got %v, want 0", got)
	}
}

func TestStop(t *testing.T) {
	s := newTestSimulator(t)
	connect(t, s)

	result, err := s.ExecuteCommand(context.Background(), CommandStop, Params{})
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if result.Position == nil || *result.Position != (Position{}) {
		t.Errorf("Position: got %v, want origin", result.Position)
	}
	if !floatEquals(s.Battery(), 99.9) {
		t.Errorf("Battery: got %v, want 99.9", s.Battery())
	}
}

func TestExecuteCommand_NotConnected(t *testing.T) {
	s := newTestSimulator(t)

	for _, name := range []string{CommandMove, CommandRotate, CommandStop, "dance"} {
		_, err := s.ExecuteCommand(context.Background(), name, Params{Direction: "forward"})
		if !errors.Is(err, ErrNotConnected) {
			t.Errorf("%s: got %v, want ErrNotConnected", name, err)
		}
	}

	snap := s.Snapshot()
	if snap.Position != (Position{}) || snap.Battery != 100 || snap.LastCommand != nil {
		t.Errorf("state mutated while disconnected: %+v", snap)
	}
}

func TestExecuteCommand_Unknown(t *testing.T) {
	s := newTestSimulator(t)
	connect(t, s)

	_, err := s.ExecuteCommand(context.Background(), "dance", Params{})
	if !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("got %v, want ErrUnknownCommand", err)
	}
	snap := s.Snapshot()
	if snap.Error == nil {
		t.Error("unknown command should be recorded")
	}
	if snap.Battery != 100 {
		t.Errorf("Battery: got %v, want 100", snap.Battery)
	}
}

func TestExecuteCommand_SuccessClearsError(t *testing.T) {
	s := newTestSimulator(t)
	connect(t, s)
	ctx := context.Background()

	if _, err := s.ExecuteCommand(ctx, CommandMove, Params{Direction: "up"}); err == nil {
		t.Fatal("expected error")
	}
	if s.Snapshot().Error == nil {
		t.Fatal("error should be recorded")
	}
	if _, err := s.ExecuteCommand(ctx, CommandStop, Params{}); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if e := s.Snapshot().Error; e != nil {
		t.Errorf("Error: got %q, want nil", *e)
	}
}

func TestExecuteCommand_CanceledDuringLatency(t *testing.T) {
	s := newTestSimulator(t, WithCommandLatency(time.Second, time.Second))
	connect(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := s.ExecuteCommand(ctx, CommandMove, Params{Direction: "forward"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want DeadlineExceeded", err)
	}

	snap := s.Snapshot()
	if snap.IsMoving {
		t.Error("moving should be cleared after cancellation")
	}
	if snap.Position != (Position{}) {
		t.Errorf("pose mutated: %+v", snap.Position)
	}
	if snap.Error == nil {
		t.Error("cancellation should be recorded")
	}
	if snap.Battery != 100 {
		t.Errorf("Battery: got %v, want 100", snap.Battery)
	}
}

func TestExecuteCommand_Serialized(t *testing.T) {
	rec := &eventRecorder{}
	s := newTestSimulator(t, WithCommandLatency(10*time.Millisecond, 10*time.Millisecond))
	connect(t, s)
	s.OnEvent(rec.record)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := s.ExecuteCommand(context.Background(), CommandMove, Params{Direction: "forward", Speed: ptr(100.0)})
		errs <- err
	}()
	go func() {
		defer wg.Done()
		_, err := s.ExecuteCommand(context.Background(), CommandRotate, Params{Direction: "right", Speed: ptr(600.0)})
		errs <- err
	}()
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("command failed: %v", err)
		}
	}

	// Started and completed must strictly alternate.
	types := rec.types()
	if len(types) != 4 {
		t.Fatalf("events: got %v, want 4", types)
	}
	for i, et := range types {
		want := EventCommandStarted
		if i%2 == 1 {
			want = EventCommandCompleted
		}
		if et != want {
			t.Errorf("event %d: got %s, want %s", i, et, want)
		}
	}

	// Either order yields one of two serial outcomes.
	snap := s.Snapshot()
	moveFirst := floatEquals(snap.Position.X, 0) && floatEquals(snap.Position.Y, 5)
	rotateFirst := floatEquals(snap.Position.X, 5) && floatEquals(snap.Position.Y, 0)
	if !moveFirst && !rotateFirst {
		t.Errorf("position %+v matches no serial order", snap.Position)
	}
	if !floatEquals(snap.Position.Rotation, 90) {
		t.Errorf("Rotation: got %v, want 90", snap.Position.Rotation)
	}
	if !floatEquals(snap.Battery, 99.8) {
		t.Errorf("Battery: got %v, want 99.8", snap.Battery)
	}
}

// startSlowMove begins a move with latency and returns once it is in flight.
func startSlowMove(t *testing.T, s *Simulator) <-chan error {
	t.Helper()
	started := make(chan struct{}, 1)
	s.OnEvent(func(e Event) {
		if e.Type == EventCommandStarted {
			select {
			case started <- struct{}{}:
			default:
			}
		}
	})

	done := make(chan error, 1)
	go func() {
		_, err := s.ExecuteCommand(context.Background(), CommandMove, Params{Direction: "forward"})
		done <- err
	}()

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("move did not start")
	}
	return done
}

func TestEmergencyStop_PreemptsInFlight(t *testing.T) {
	s := newTestSimulator(t, WithCommandLatency(50*time.Millisecond, 50*time.Millisecond))
	connect(t, s)

	done := startSlowMove(t, s)
	if !s.Snapshot().IsMoving {
		t.Fatal("should be moving while in flight")
	}

	result, err := s.EmergencyStop(context.Background())
	if err != nil {
		t.Fatalf("EmergencyStop: %v", err)
	}
	if result.Command != CommandEmergencyStop {
		t.Errorf("Command: got %q, want %q", result.Command, CommandEmergencyStop)
	}
	snap := s.Snapshot()
	if snap.IsMoving {
		t.Error("emergency stop should clear moving immediately")
	}
	if *snap.LastCommand != CommandEmergencyStop {
		t.Errorf("LastCommand: got %q, want %q", *snap.LastCommand, CommandEmergencyStop)
	}

	if err := <-done; err != nil {
		t.Fatalf("in-flight move: %v", err)
	}
	// Pose applied by the in-flight command is not rolled back.
	if got := s.Snapshot().Position.Y; !floatEquals(got, 2.5) {
		t.Errorf("Y: got %v, want 2.5", got)
	}
}

func TestDisconnect_DuringInFlightCommand(t *testing.T) {
	s := newTestSimulator(t, WithCommandLatency(50*time.Millisecond, 50*time.Millisecond))
	connect(t, s)

	done := startSlowMove(t, s)
	if _, err := s.Disconnect(context.Background()); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}

	snap := s.Snapshot()
	if snap.IsConnected {
		t.Error("IsConnected should be false right after Disconnect")
	}
	if snap.IsMoving {
		t.Error("IsMoving should be false right after Disconnect")
	}

	if err := <-done; err != nil {
		t.Fatalf("in-flight move: %v", err)
	}
	snap = s.Snapshot()
	if snap.IsConnected || snap.IsMoving {
		t.Errorf("after completion: connected=%v moving=%v, want both false", snap.IsConnected, snap.IsMoving)
	}
	if got := snap.Position.Y; !floatEquals(got, 2.5) {
		t.Errorf("Y: got %v, want 2.5", got)
	}

	// The next command sees the dropped link.
	if _, err := s.ExecuteCommand(context.Background(), CommandStop, Params{}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("got %v, want ErrNotConnected", err)
	}
}

func TestEmergencyStop_Disconnected(t *testing.T) {
	s := newTestSimulator(t)

	if _, err := s.EmergencyStop(context.Background()); err != nil {
		t.Fatalf("EmergencyStop: %v", err)
	}
	if got := s.Stats().EmergencyStops; got != 1 {
		t.Errorf("EmergencyStops: got %d, want 1", got)
	}
}

func TestResetPosition(t *testing.T) {
	s := newTestSimulator(t)
	connect(t, s)
	ctx := context.Background()

	if _, err := s.ExecuteCommand(ctx, CommandMove, Params{Direction: "left", Speed: ptr(100.0)}); err != nil {
		t.Fatalf("move: %v", err)
	}
	if _, err := s.ExecuteCommand(ctx, CommandRotate, Params{Direction: "right"}); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	result, err := s.ResetPosition(ctx)
	if err != nil {
		t.Fatalf("ResetPosition: %v", err)
	}
	if !floatEquals(result.OldPosition.X, -5) {
		t.Errorf("OldPosition.X: got %v, want -5", result.OldPosition.X)
	}
	if *result.NewPosition != (Position{}) {
		t.Errorf("NewPosition: got %+v, want origin", *result.NewPosition)
	}
	if s.Snapshot().Position != (Position{}) {
		t.Errorf("Position: got %+v, want origin", s.Snapshot().Position)
	}
}

func TestResetPosition_Busy(t *testing.T) {
	s := newTestSimulator(t, WithCommandLatency(50*time.Millisecond, 50*time.Millisecond))
	connect(t, s)

	done := startSlowMove(t, s)

	if _, err := s.ResetPosition(context.Background()); !errors.Is(err, ErrRobotBusy) {
		t.Fatalf("got %v, want ErrRobotBusy", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("move: %v", err)
	}
	if got := s.Snapshot().Position.Y; !floatEquals(got, 2.5) {
		t.Errorf("Y: got %v, want 2.5 (reset must not apply)", got)
	}
}

func TestResetPosition_AfterEmergencyStopInFlight(t *testing.T) {
	s := newTestSimulator(t, WithCommandLatency(50*time.Millisecond, 50*time.Millisecond))
	connect(t, s)
	ctx := context.Background()

	if _, err := s.ExecuteCommand(ctx, CommandMove, Params{Direction: "left", Speed: ptr(100.0)}); err != nil {
		t.Fatalf("move: %v", err)
	}

	done := startSlowMove(t, s)
	if _, err := s.EmergencyStop(ctx); err != nil {
		t.Fatalf("EmergencyStop: %v", err)
	}

	// The e-stop cleared moving, so the reset goes through.
	result, err := s.ResetPosition(ctx)
	if err != nil {
		t.Fatalf("ResetPosition: %v", err)
	}
	if !floatEquals(result.OldPosition.X, -5) {
		t.Errorf("OldPosition.X: got %v, want -5", result.OldPosition.X)
	}

	if err := <-done; err != nil {
		t.Fatalf("in-flight move: %v", err)
	}
	// The in-flight move lands relative to the origin.
	pos := s.Snapshot().Position
	if !floatEquals(pos.X, 0) || !floatEquals(pos.Y, 2.5) {
		t.Errorf("Position: got (%v, %v), want (0, 2.5)", pos.X, pos.Y)
	}
}
