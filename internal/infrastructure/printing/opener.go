package printing

import (
	"context"
	"fmt"
	"os/exec"

	appinvoice "github.com/erp/invoicing/internal/application/invoice"
	"go.uber.org/zap"
)

// CommandOpener hands documents to local programs, such as a PDF viewer
// for view mode and lp for print mode
type CommandOpener struct {
	commands map[appinvoice.OpenMode][]string
	logger   *zap.Logger
	run      func(ctx context.Context, name string, args ...string) error
}

// NewCommandOpener creates an opener. A mode whose command is empty is refused.
func NewCommandOpener(view, print []string, logger *zap.Logger) *CommandOpener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommandOpener{
		commands: map[appinvoice.OpenMode][]string{
			appinvoice.OpenModeView:  view,
			appinvoice.OpenModePrint: print,
		},
		logger: logger,
		run:    startCommand,
	}
}

// Open starts the command configured for mode with path as its last argument.
// It returns once the program has started.
func (o *CommandOpener) Open(ctx context.Context, path string, mode appinvoice.OpenMode) error {
	argv := o.commands[mode]
	if len(argv) == 0 {
		return fmt.Errorf("no command configured to %s documents", mode)
	}
	args := append(append([]string{}, argv[1:]...), path)
	if err := o.run(ctx, argv[0], args...); err != nil {
		return fmt.Errorf("failed to %s %s: %w", mode, path, err)
	}
	o.logger.Info("Invoice document handed to local program",
		zap.String("mode", string(mode)),
		zap.String("program", argv[0]),
		zap.String("path", path),
	)
	return nil
}

// Enabled reports whether any mode has a command
func (o *CommandOpener) Enabled() bool {
	for _, argv := range o.commands {
		if len(argv) > 0 {
			return true
		}
	}
	return false
}

func startCommand(_ context.Context, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	// viewers outlive the request
	go func() { _ = cmd.Wait() }()
	return nil
}
