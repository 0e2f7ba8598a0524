// Package expect drives an interactive child process under a
// pseudo-terminal.
//
// The child is spawned with a fresh pty as its controlling terminal, so
// programs that insist on prompting a human (by opening /dev/tty) prompt
// us instead. Stdin and stdout are redirected to pipes and carry the data
// being transformed; only the prompt handshake happens on the terminal.
package expect

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"

	sherr "haz.cat/sshovel/internal/errors"
)

// Process is a child running under a controlling pseudo-terminal.
//
// The lifecycle is Spawn, then any number of Expect/Send exchanges, then
// Copy for the data phase, then Finish. Finish must be called on every
// path; it is safe to call more than once.
type Process struct {
	cmd    *exec.Cmd
	master *os.File
	stdin  *os.File
	stdout *os.File

	seen     bytes.Buffer
	mark     int // start of the not-yet-matched region of seen
	finished bool
}

// Spawn starts name with args. The child's controlling terminal is a new
// pty; its stdin and stdout are pipes owned by the returned Process.
func Spawn(name string, args ...string) (*Process, error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("allocating pty: %w", err)
	}

	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		master.Close()
		slave.Close()
		return nil, err
	}
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		master.Close()
		slave.Close()
		stdinR.Close()
		stdinW.Close()
		return nil, err
	}

	cmd := exec.Command(name, args...)
	cmd.Stdin = stdinR
	cmd.Stdout = stdoutW
	// Stderr goes to the terminal: diagnostics end up in the transcript,
	// where Expect can see them and errors can quote them.
	cmd.Stderr = slave
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid:  true,
		Setctty: true,
		Ctty:    2, // stderr, i.e. the pty slave
	}

	if err := cmd.Start(); err != nil {
		master.Close()
		slave.Close()
		stdinR.Close()
		stdinW.Close()
		stdoutR.Close()
		stdoutW.Close()
		return nil, err
	}

	// The child holds its own copies now.
	slave.Close()
	stdinR.Close()
	stdoutW.Close()

	// Reads on the terminal and the stdout pipe are deadline-driven.
	// Going through SyscallConn keeps the file registered with the
	// runtime poller; File.Fd would switch it to blocking mode.
	if err := setNonblock(master); err != nil {
		cmd.Process.Kill()
		cmd.Wait()
		master.Close()
		stdinW.Close()
		stdoutR.Close()
		return nil, fmt.Errorf("setting pty non-blocking: %w", err)
	}

	return &Process{
		cmd:    cmd,
		master: master,
		stdin:  stdinW,
		stdout: stdoutR,
	}, nil
}

// Expect reads from the terminal until phrase appears, or the deadline
// elapses (ErrPromptTimeout), or the terminal reaches EOF
// (ErrUnexpectedEOF). Each call matches only terminal output that no
// earlier Expect has matched, so waiting for the same prompt twice works.
func (p *Process) Expect(phrase string, timeout time.Duration) error {
	if err := p.master.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	buf := make([]byte, 512)
	for {
		if p.consume(phrase) {
			return nil
		}
		n, err := p.master.Read(buf)
		p.seen.Write(buf[:n])
		if err == nil {
			continue
		}
		if os.IsTimeout(err) {
			return fmt.Errorf("%w: %q never appeared (terminal so far: %q)",
				sherr.ErrPromptTimeout, phrase, p.seen.String())
		}
		if isEOF(err) {
			if p.consume(phrase) {
				return nil
			}
			return fmt.Errorf("%w after reading %q", sherr.ErrUnexpectedEOF, p.seen.String())
		}
		return err
	}
}

// consume looks for phrase in the unmatched region and, on a hit, moves
// the mark past it.
func (p *Process) consume(phrase string) bool {
	idx := bytes.Index(p.seen.Bytes()[p.mark:], []byte(phrase))
	if idx < 0 {
		return false
	}
	p.mark += idx + len(phrase)
	return true
}

// Send writes bytes to the terminal.
func (p *Process) Send(b []byte) error {
	_, err := p.master.Write(b)
	return err
}

// Copy runs the data phase: everything from in is written to the child's
// stdin, which is then closed, and the child's stdout is copied to out
// until EOF. The whole phase is capped by the deadline.
func (p *Process) Copy(in io.Reader, out io.Writer, timeout time.Duration) error {
	feedErr := make(chan error, 1)
	go func() {
		_, err := io.Copy(p.stdin, in)
		if cerr := p.stdin.Close(); err == nil {
			err = cerr
		}
		feedErr <- err
	}()

	if err := p.stdout.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	if _, err := io.Copy(out, p.stdout); err != nil {
		if os.IsTimeout(err) {
			return fmt.Errorf("copy timed out after %v", timeout)
		}
		return err
	}
	if err := <-feedErr; err != nil && !errors.Is(err, syscall.EPIPE) {
		return fmt.Errorf("feeding child stdin: %w", err)
	}
	return nil
}

// Transcript returns everything observed on the terminal so far.
func (p *Process) Transcript() []byte {
	return p.seen.Bytes()
}

// Finish releases the terminal and pipes and waits for the child. The
// returned error is the child's exit status. Safe to call repeatedly;
// later calls return nil.
func (p *Process) Finish() error {
	if p.finished {
		return nil
	}
	p.finished = true
	p.master.Close()
	p.stdin.Close()
	p.stdout.Close()
	return p.cmd.Wait()
}

// A pty master reports EIO, not io.EOF, once the child side is gone.
func isEOF(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, syscall.EIO)
}

func setNonblock(f *os.File) error {
	conn, err := f.SyscallConn()
	if err != nil {
		return err
	}
	var serr error
	if err := conn.Control(func(fd uintptr) {
		serr = unix.SetNonblock(int(fd), true)
	}); err != nil {
		return err
	}
	return serr
}
