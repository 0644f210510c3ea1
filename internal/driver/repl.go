package driver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
)

// Prompt is printed before every REPL line when the input is interactive.
const Prompt = "> "

// REPL reads lines from in and interprets each one in the session's VM.
// Compile and runtime errors are reported and the loop continues; it ends at
// EOF or when ctx is cancelled. With interactive set the prompt is written to
// out and EOF is acknowledged with a newline.
func (s *Session) REPL(ctx context.Context, in io.Reader, out io.Writer, interactive bool) error {
	r := bufio.NewReader(in)
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if interactive {
			fmt.Fprint(out, Prompt)
		}
		line, err := r.ReadString('\n')
		if line != "" {
			s.InterpretSource(ctx, fmt.Sprintf("<repl:%d>", n), []byte(line))
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				if interactive {
					fmt.Fprintln(out)
				}
				return nil
			}
			return err
		}
	}
}
