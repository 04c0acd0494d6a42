package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.bug.st/serial"

	"github.com/pjones/elm327diag/obd"
)

// ELM327 clones usually ship configured for 38400 baud, 8-N-1.
const (
	portBaudRate     int           = 38400
	portReadInterval time.Duration = 250 * time.Millisecond
)

func runReport(cmd *cobra.Command, args []string) error {
	logger := diagLogger(cmd)

	stdOut := cmd.OutOrStdout()
	if !quiet {
		fmt.Fprintln(stdOut, "initializing connection")
	}

	port, err := openPort(device, logger)
	if err != nil {
		return errors.Wrap(err, "opening transport")
	}

	conn := obd.NewConnection(port, time.Duration(timeoutMS)*time.Millisecond, logger)
	defer conn.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if !noInit && !simulate {
		if err = conn.Initialize(ctx); err != nil {
			return errors.Wrap(err, "initializing interface")
		}
	}

	out, err := os.Create(outputFile)
	if err != nil {
		return errors.Wrapf(err, "creating output file '%s'", outputFile)
	}
	defer out.Close()

	return runPass(ctx, conn, out, stdOut)
}

// runPass writes the report with its surrounding status lines. A failed
// query ends the pass early; the lines already written are kept and the
// process still exits cleanly.
func runPass(ctx context.Context, conn *obd.Connection, out, stdOut io.Writer) error {
	if !quiet {
		fmt.Fprintln(stdOut, "gathering data...")
	}

	if err := writeReport(ctx, conn, out); err != nil {
		if !quiet {
			fmt.Fprintf(stdOut, "report aborted: %v\n", err)
		}
		return nil
	}

	if !quiet {
		fmt.Fprintln(stdOut, "done")
	}
	return nil
}

// writeReport queries every registered parameter in command order and
// writes one "<name>, <value>" line per result. The first failed query
// aborts the remaining parameters.
func writeReport(ctx context.Context, conn *obd.Connection, w io.Writer) error {
	return obd.EachParameter(func(p obd.Parameter) error {
		v, err := conn.QueryParameter(ctx, obd.ModeCurrentData, p)
		if err != nil {
			return err
		}

		_, err = fmt.Fprintf(w, "%s, %f\n", p.Name, v.Value)
		return errors.Wrap(err, "writing report line")
	})
}

// openPort opens and configures the serial device, or hands back the fake
// device when simulating. Any configuration failure closes the port and is
// reported to the caller rather than deferred to the first query.
func openPort(name string, l obd.Logger) (io.ReadWriteCloser, error) {
	if simulate {
		return obd.NewFakeDevice(time.Millisecond), nil
	}

	l.Debugf("opening serial device %s\n", name)
	sp, err := serial.Open(name, &serial.Mode{
		BaudRate: portBaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "opening serial device '%s'", name)
	}

	if err = sp.SetReadTimeout(portReadInterval); err != nil {
		sp.Close()
		return nil, errors.Wrap(err, "setting serial read timeout")
	}
	if err = sp.ResetInputBuffer(); err != nil {
		sp.Close()
		return nil, errors.Wrap(err, "resetting input buffer")
	}
	if err = sp.ResetOutputBuffer(); err != nil {
		sp.Close()
		return nil, errors.Wrap(err, "resetting output buffer")
	}

	return sp, nil
}
