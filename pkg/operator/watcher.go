package operator

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"

	"github.com/golang/glog"
	"golang.org/x/term"

	fx "github.com/robotalks/currentloop/pkg/framework"
)

var (
	// ErrNoInput indicates the input closed without operator action.
	ErrNoInput = errors.New("operator input closed")
	// ErrNotTerminal indicates raw key input needs a terminal.
	ErrNotTerminal = errors.New("not a terminal")
)

// Watcher blocks until the operator asks to stop.
// Wait returns nil only on operator action.
type Watcher interface {
	Wait(ctx context.Context) error
}

// LineWatcher waits for a line (Enter) on In.
type LineWatcher struct {
	In io.Reader
}

// Wait implements Watcher.
func (w *LineWatcher) Wait(ctx context.Context) error {
	return fx.RunWithContext(ctx, func() error {
		_, err := bufio.NewReader(w.In).ReadString('\n')
		if err == io.EOF {
			return ErrNoInput
		}
		return err
	})
}

// KeyWatcher waits for any key press with the terminal in raw mode.
type KeyWatcher struct {
	In *os.File
}

// Wait implements Watcher.
func (w *KeyWatcher) Wait(ctx context.Context) error {
	fd := int(w.In.Fd())
	if !term.IsTerminal(fd) {
		return ErrNotTerminal
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return err
	}
	restore := func() { term.Restore(fd, state) }
	return fx.RunWithContextCancel(ctx, restore, func() error {
		defer restore()
		buf := make([]byte, 1)
		if _, err := w.In.Read(buf); err != nil {
			if err == io.EOF {
				return ErrNoInput
			}
			return err
		}
		return nil
	})
}

// NeverWatcher never reports operator action.
type NeverWatcher struct{}

// Wait implements Watcher.
func (NeverWatcher) Wait(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

// Watch sets sig when w reports operator action.
func Watch(ctx context.Context, w Watcher, sig *Signal) error {
	err := w.Wait(ctx)
	if err == nil && sig.Set() {
		glog.Info("stop requested by operator")
	}
	return err
}

// Runnable wraps Watch to run with framework.Runner.
// Missing input is not reported as an error.
func Runnable(w Watcher, sig *Signal) fx.Runnable {
	return fx.NamedRun("operator", fx.RunFunc(func(ctx context.Context) error {
		err := Watch(ctx, w, sig)
		switch err {
		case ErrNoInput, context.Canceled:
			return nil
		case ErrNotTerminal:
			glog.Warning("stdin is not a terminal, operator stop disabled")
			return nil
		}
		return err
	}))
}
