package gdbmi

import (
	"bufio"
	"bytes"
	"io"
	"os/exec"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/qstep/qstep/pkg/logflags"
	"github.com/qstep/qstep/pkg/step"
)

// Conn is a connection to a gdb process in MI mode. All exchanges are
// synchronous: one request is outstanding at a time and the calling
// side blocks on the reply. That matches the stepping engine, which
// has exactly one suspension point (the wait for the target to halt).
type Conn struct {
	cmd *exec.Cmd
	in  io.WriteCloser
	rdr *bufio.Reader

	token   int
	console bytes.Buffer

	symCache *lru.Cache

	log *logrus.Entry
}

// Launch starts gdbPath in machine interface mode and waits for it to
// become ready. An empty gdbPath selects plain "gdb".
func Launch(gdbPath string) (*Conn, error) {
	if gdbPath == "" {
		gdbPath = "gdb"
	}
	cmd := exec.Command(gdbPath, "--interpreter=mi2", "-nx", "-q")
	in, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	c := &Conn{
		cmd: cmd,
		in:  in,
		rdr: bufio.NewReader(out),
		log: logflags.GdbWireLogger(),
	}
	// drain the startup banner up to the first prompt
	for {
		line, err := c.recv()
		if err != nil {
			return nil, err
		}
		if isPrompt(line) {
			break
		}
	}
	return c, nil
}

// Close terminates the gdb process. The target keeps running if the
// stub keeps it running; qstep never kills the target.
func (c *Conn) Close() error {
	c.send("-gdb-exit")
	c.in.Close()
	return c.cmd.Wait()
}

func (c *Conn) recv() (string, error) {
	line, err := c.rdr.ReadString('\n')
	if err != nil {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	c.log.Debugf("<- %s", line)
	return line, nil
}

func (c *Conn) send(line string) error {
	c.log.Debugf("-> %s", line)
	_, err := io.WriteString(c.in, line+"\n")
	return err
}

// exec sends one MI command and reads records until its result record
// arrives. Console stream output produced by the command is captured;
// stray prompts and notification records are skipped.
func (c *Conn) exec(cmd string, context string) (string, error) {
	c.token++
	tok := strconv.Itoa(c.token)
	if err := c.send(tok + cmd); err != nil {
		return "", err
	}
	c.console.Reset()
	for {
		line, err := c.recv()
		if err != nil {
			return "", err
		}
		switch {
		case isPrompt(line):
			// ready prompt from a previous exchange, skip
		case strings.HasPrefix(line, "~"):
			c.console.WriteString(unquoteConsole(line[1:]))
		case strings.HasPrefix(line, "&"), strings.HasPrefix(line, "="),
			strings.HasPrefix(line, "+"), strings.HasPrefix(line, "*"):
			// log stream, notifications and exec-state records are
			// already on the wire log
		default:
			rec, ok := resultRecord(line, tok)
			if !ok {
				continue
			}
			if strings.HasPrefix(rec, "error") {
				return "", &ProtocolError{context: context, cmd: cmd, msg: miString(rec, "msg")}
			}
			return rec, nil
		}
	}
}

// consoleLines returns the non-empty lines of the console output
// captured by the last exec.
func (c *Conn) consoleLines() []string {
	var lines []string
	for _, l := range strings.Split(c.console.String(), "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// waitStopped blocks until the target halts and decodes the *stopped
// record.
func (c *Conn) waitStopped() (*step.StopState, error) {
	for {
		line, err := c.recv()
		if err != nil {
			return nil, err
		}
		if !strings.HasPrefix(line, "*stopped") {
			continue
		}
		return parseStopState(line), nil
	}
}

func parseStopState(rec string) *step.StopState {
	stop := &step.StopState{Reason: miString(rec, "reason")}
	switch stop.Reason {
	case "exited-normally":
		stop.Exited = true
	case "exited", "exited-signalled":
		stop.Exited = true
		stop.ExitStatus = parseExitStatus(miString(rec, "exit-code"))
		stop.Signal = miString(rec, "signal-name")
	default:
		if a := miString(rec, "addr"); a != "" {
			stop.PC, _ = strconv.ParseUint(a, 0, 64)
		}
		if n := miString(rec, "bkptno"); n != "" {
			stop.Breakpoint, _ = strconv.Atoi(n)
		}
		stop.Signal = miString(rec, "signal-name")
	}
	return stop
}
