// Package logflags configures the loggers of the various layers of
// qstep. Logging is off unless enabled with the --log flag; the
// --log-output flag selects which layers produce output.
package logflags

import (
	"errors"
	"io/ioutil"
	"log"
	"strings"

	"github.com/sirupsen/logrus"
)

var stepper = false
var gdbWire = false

func makeLogger(flag bool, fields logrus.Fields) *logrus.Entry {
	logger := logrus.New().WithFields(fields)
	logger.Logger.Level = logrus.DebugLevel
	if !flag {
		logger.Logger.Level = logrus.PanicLevel
	}
	return logger
}

// Stepper returns true if the stepping engine should log.
func Stepper() bool {
	return stepper
}

// StepperLogger returns a logger for the stepping engine.
func StepperLogger() *logrus.Entry {
	return makeLogger(stepper, logrus.Fields{"layer": "stepper"})
}

// GdbWire returns true if every line exchanged with the gdb machine
// interface should be logged.
func GdbWire() bool {
	return gdbWire
}

// GdbWireLogger returns a configured logger for the gdb machine
// interface wire protocol.
func GdbWireLogger() *logrus.Entry {
	return makeLogger(gdbWire, logrus.Fields{"layer": "gdbwire"})
}

var errLogstrWithoutLog = errors.New("--log-output specified without --log")

// Setup sets the logging flags based on the contents of logstr.
func Setup(logFlag bool, logstr string) error {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	if !logFlag {
		log.SetOutput(ioutil.Discard)
		if logstr != "" {
			return errLogstrWithoutLog
		}
		return nil
	}
	if logstr == "" {
		logstr = "stepper"
	}
	for _, logcmd := range strings.Split(logstr, ",") {
		switch logcmd {
		case "stepper":
			stepper = true
		case "gdbwire":
			gdbWire = true
		}
	}
	return nil
}
