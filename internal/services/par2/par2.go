// Package par2 wraps the par2cmdline tool for generating and applying
// Reed-Solomon recovery data. Every invocation runs with the unit root as
// working directory, passes only relative paths, and pins the basepath to
// the working directory, which keeps the recovery set relocatable: a unit
// can be moved or renamed as a whole and still verify.
package par2

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"coldvault/internal/logging"
	"coldvault/internal/services"
)

// DescriptorExt is the suffix of the main recovery descriptor, appended to
// the protected file's name.
const DescriptorExt = ".par2"

// VerifyOutcome classifies the redundancy layer's view of a protected file.
type VerifyOutcome int

const (
	// Intact means all blocks check out.
	Intact VerifyOutcome = iota
	// Repairable means damage was found and the recovery data is
	// sufficient to fix it.
	Repairable
	// Unrepairable means damage exceeds the recovery data's capacity.
	Unrepairable
)

func (o VerifyOutcome) String() string {
	switch o {
	case Intact:
		return "intact"
	case Repairable:
		return "repairable"
	case Unrepairable:
		return "unrepairable"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Client invokes par2cmdline. The zero value is not usable; construct with
// New.
type Client struct {
	binary   string
	timeout  time.Duration
	executor services.Executor
	logger   *slog.Logger
}

func New(binary string, timeout time.Duration, executor services.Executor, logger *slog.Logger) *Client {
	if executor == nil {
		executor = services.CommandExecutor{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Client{
		binary:   binary,
		timeout:  timeout,
		executor: executor,
		logger:   logger.With(logging.String(logging.FieldComponent, "par2")),
	}
}

// CreateRequest describes recovery data generation for one file. All paths
// are relative to BaseDir.
type CreateRequest struct {
	// BaseDir is the working directory for the invocation, normally the
	// unit root.
	BaseDir string
	// TargetRel is the file to protect.
	TargetRel string
	// DescriptorRel is where the main .par2 descriptor is written; the
	// recovery volumes land beside it.
	DescriptorRel string
	// Percent is the redundancy level, 1-50.
	Percent int
	// VolumeCount is the number of recovery volumes to produce.
	VolumeCount int
}

// Create generates a descriptor and recovery volumes.
func (c *Client) Create(ctx context.Context, req CreateRequest) error {
	args := []string{
		"create",
		"-q",
		"-B.",
		fmt.Sprintf("-r%d", req.Percent),
		fmt.Sprintf("-n%d", req.VolumeCount),
		req.DescriptorRel,
		req.TargetRel,
	}
	exitCode, tail, err := c.run(ctx, req.BaseDir, args)
	if err != nil {
		return err
	}
	if exitCode != 0 {
		return services.Wrap(services.ErrTransient, services.StageRedundancy, "create",
			fmt.Sprintf("par2 create exited %d: %s", exitCode, tail), nil)
	}
	return nil
}

// Verify checks the protected file against its descriptor. descriptorRel is
// resolved from baseDir, which must also contain the protected file at the
// relative location it had when the set was created.
func (c *Client) Verify(ctx context.Context, baseDir, descriptorRel string) (VerifyOutcome, error) {
	exitCode, tail, err := c.run(ctx, baseDir, []string{"verify", "-q", "-B.", descriptorRel})
	if err != nil {
		return Unrepairable, err
	}
	switch exitCode {
	case 0:
		return Intact, nil
	case 1:
		return Repairable, nil
	default:
		c.logger.Warn("verify reported unrepairable damage",
			logging.String("descriptor", descriptorRel),
			logging.Int("exit_code", exitCode),
			logging.String("output", tail))
		return Unrepairable, nil
	}
}

// Repair reconstructs the protected file from recovery data. A failed
// repair is reported as an integrity error carrying the tool's output.
func (c *Client) Repair(ctx context.Context, baseDir, descriptorRel string) error {
	exitCode, tail, err := c.run(ctx, baseDir, []string{"repair", "-q", "-B.", descriptorRel})
	if err != nil {
		return err
	}
	if exitCode != 0 {
		return services.Wrap(services.ErrIntegrity, services.StageRepair, "repair",
			fmt.Sprintf("par2 repair exited %d: %s", exitCode, tail), nil)
	}
	return nil
}

func (c *Client) run(ctx context.Context, dir string, args []string) (int, string, error) {
	var tail []string
	cmd := services.Command{
		Binary:  c.binary,
		Args:    args,
		Dir:     dir,
		Timeout: c.timeout,
		OnOutput: func(line string) {
			c.logger.Debug("par2 output", logging.String("line", line))
			tail = append(tail, line)
			if len(tail) > 10 {
				tail = tail[1:]
			}
		},
	}
	exitCode, err := c.executor.Run(ctx, cmd)
	if err != nil {
		return -1, "", services.Classify(err)
	}
	return exitCode, strings.Join(tail, " | "), nil
}
