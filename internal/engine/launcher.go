package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// ErrEngineNotFound is returned when the engine command cannot be located.
var ErrEngineNotFound = errors.New("engine command not found")

// Invocation describes how to spawn an engine for one run period.
type Invocation struct {
	Command      string
	Args         []string // extra arguments before the weather/building flags
	WeatherFile  string
	BuildingFile string
	WorkDir      string
	Stderr       io.Writer // engine diagnostics; nil discards
}

// Argv returns the engine's argument list.
func (inv Invocation) Argv() []string {
	argv := append([]string(nil), inv.Args...)
	return append(argv, "-w", inv.WeatherFile, "-b", inv.BuildingFile)
}

// Process is a running engine.
type Process interface {
	// Stdout carries engine frames to the bridge.
	Stdout() io.Reader
	// Stdin carries bridge frames to the engine.
	Stdin() io.Writer
	// Wait blocks until the engine exits and releases its pipes.
	Wait() error
	// Exited is closed as soon as the engine process has exited, whether or
	// not its output has been drained.
	Exited() <-chan struct{}
	// Kill terminates the engine. It is safe to call more than once.
	Kill() error
	Pid() int
}

// Launcher spawns engines.
type Launcher interface {
	Launch(ctx context.Context, inv Invocation) (Process, error)
}

// ExecLauncher runs the engine as an OS process.
type ExecLauncher struct{}

// Launch starts inv.Command. The engine is not bound to ctx; stop it with
// Kill so the bridge can observe the exit.
func (ExecLauncher) Launch(ctx context.Context, inv Invocation) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := exec.LookPath(inv.Command)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrEngineNotFound, inv.Command, err)
	}

	cmd := exec.Command(path, inv.Argv()...)
	cmd.Dir = inv.WorkDir
	if inv.Stderr != nil {
		cmd.Stderr = inv.Stderr
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("engine stdin: %w", err)
	}

	// The read end stays ours: cmd.Wait must not close it while frames
	// written just before exit are still buffered.
	outR, outW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("engine stdout: %w", err)
	}
	cmd.Stdout = outW

	if err := cmd.Start(); err != nil {
		outR.Close()
		outW.Close()
		return nil, fmt.Errorf("starting engine: %w", err)
	}
	outW.Close()

	p := &execProcess{cmd: cmd, stdin: stdin, stdout: outR, exited: make(chan struct{})}
	go func() {
		p.waitErr = cmd.Wait()
		close(p.exited)
	}()
	return p, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *os.File

	exited    chan struct{}
	waitErr   error
	closeOnce sync.Once
}

func (p *execProcess) Stdout() io.Reader { return p.stdout }
func (p *execProcess) Stdin() io.Writer  { return p.stdin }
func (p *execProcess) Pid() int          { return p.cmd.Process.Pid }

func (p *execProcess) Kill() error {
	err := p.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

func (p *execProcess) Exited() <-chan struct{} { return p.exited }

func (p *execProcess) Wait() error {
	<-p.exited
	p.closeOnce.Do(func() { p.stdout.Close() })
	return p.waitErr
}
