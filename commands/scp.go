package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"strings"

	goscp "github.com/bramvdbogaerde/go-scp"
	"github.com/josephlewis42/libterm/core/vos"
)

// byteReader hands out one byte per Read so the line reads in
// goscp.ParseResponse never buffer file contents.
type byteReader struct {
	r io.Reader
}

func (b *byteReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return b.r.Read(p[:1])
}

// scpSink receives files pushed by a remote "scp" client into target.
type scpSink struct {
	virtOS vos.VOS
	in     io.Reader
	out    io.Writer
	dirs   []string
	target string
}

func (s *scpSink) destination(name string) string {
	if len(s.dirs) > 0 {
		return path.Join(s.dirs[len(s.dirs)-1], name)
	}

	if info, err := s.virtOS.Stat(s.target); err == nil && info.IsDir() {
		return path.Join(s.target, name)
	}
	return s.target
}

func parseMode(perms string) (os.FileMode, error) {
	mode, err := strconv.ParseUint(perms, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("bad mode %q", perms)
	}
	return os.FileMode(mode).Perm(), nil
}

func (s *scpSink) receiveFile(resp goscp.Response) error {
	info, err := resp.ParseFileInfos()
	if err != nil {
		return err
	}
	mode, err := parseMode(info.Permissions)
	if err != nil {
		return err
	}

	fd, err := s.virtOS.OpenFile(s.destination(info.Filename), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer fd.Close()

	if err := goscp.Ack(s.out); err != nil {
		return err
	}
	if _, err := io.CopyN(fd, s.in, info.Size); err != nil {
		return err
	}

	// Contents are followed by a status byte.
	status := make([]byte, 1)
	if _, err := io.ReadFull(s.in, status); err != nil {
		return err
	}
	return goscp.Ack(s.out)
}

func (s *scpSink) enterDir(resp goscp.Response) error {
	info, err := resp.ParseFileInfos()
	if err != nil {
		return err
	}
	mode, err := parseMode(info.Permissions)
	if err != nil {
		return err
	}

	dir := s.destination(info.Filename)
	if err := s.virtOS.MkdirAll(dir, mode|0700); err != nil {
		return err
	}
	s.dirs = append(s.dirs, dir)
	return goscp.Ack(s.out)
}

func (s *scpSink) run() error {
	// Start the session by sending an ACK
	if err := goscp.Ack(s.out); err != nil {
		return err
	}

	for {
		resp, err := goscp.ParseResponse(s.in)
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return err
		}

		switch resp.Type {
		case 0x00, 0x01: // OK or non-fatal warning
			continue
		case 0x02:
			return errors.New(strings.TrimSpace(resp.Message))
		case 'C':
			err = s.receiveFile(resp)
		case 'D':
			err = s.enterDir(resp)
		case 'E':
			if len(s.dirs) > 0 {
				s.dirs = s.dirs[:len(s.dirs)-1]
			}
			err = goscp.Ack(s.out)
		case 'T':
			err = goscp.Ack(s.out)
		default:
			return fmt.Errorf("unknown directive %q", resp.Type)
		}

		if err != nil {
			return err
		}
	}
}

// Scp implements the sink side of the SCP protocol, it's what a remote
// "scp FILE host:PATH" starts on this end.
func Scp(virtOS vos.VOS) int {
	cmd := &SimpleCommand{
		Use:   "scp -t TARGET",
		Short: "Secure copy (receive only).",
	}

	to := cmd.Flags().String('t', "", "receive files into TARGET")
	_ = cmd.Flags().Bool('v', "verbose mode, ignored")
	_ = cmd.Flags().Bool('r', "recursive mode")
	_ = cmd.Flags().Bool('p', "preserve times, ignored")
	_ = cmd.Flags().Bool('d', "target should be a directory, ignored")

	return cmd.RunE(virtOS, func() error {
		if *to == "" {
			return errors.New("only sink mode (-t) is supported")
		}

		sink := &scpSink{
			virtOS: virtOS,
			in:     &byteReader{r: virtOS.Stdin()},
			out:    virtOS.Stdout(),
			target: *to,
		}
		return sink.run()
	})
}

var _ vos.ProcessFunc = Scp

func init() {
	mustAddCmd("scp", Scp)
}
