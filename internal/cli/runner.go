// Package cli implements tagfd's human-facing command runner: one
// subcommand per tag operation, dispatched against a tagclient.Client the
// way agtmux's Runner dispatches against its appclient.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/hmsnyder/tagfd/internal/relay"
	"github.com/hmsnyder/tagfd/internal/tagclient"
	"github.com/hmsnyder/tagfd/internal/tagtype"
)

// Runner dispatches tagfd command-line invocations against one daemon
// socket.
type Runner struct {
	client *tagclient.Client
	out    io.Writer
	errOut io.Writer
}

// NewRunner builds a Runner dialing socketPath.
func NewRunner(socketPath string, out, errOut io.Writer) *Runner {
	return NewRunnerWithClient(tagclient.New(socketPath), out, errOut)
}

// NewRunnerWithClient lets tests inject a Runner pointed at an existing
// client, such as one dialing a temp-dir daemon.
func NewRunnerWithClient(client *tagclient.Client, out, errOut io.Writer) *Runner {
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}
	return &Runner{client: client, out: out, errOut: errOut}
}

// Run dispatches args (os.Args[1:]) to the matching subcommand and returns
// a process exit code.
func (r *Runner) Run(ctx context.Context, args []string) int {
	socketPath, rest, err := parseGlobalArgs(args)
	if err != nil {
		_, _ = fmt.Fprintf(r.errOut, "error: %v\n", err)
		return 2
	}
	if socketPath != "" {
		r.client = tagclient.New(socketPath)
	}
	if len(rest) == 0 {
		r.printUsage()
		return 2
	}
	switch rest[0] {
	case "create":
		return r.runCreate(ctx, rest[1:])
	case "read":
		return r.runRead(ctx, rest[1:])
	case "write":
		return r.runWrite(ctx, rest[1:])
	case "list":
		return r.runList(ctx, rest[1:])
	case "watch":
		return r.runWatch(ctx, rest[1:])
	default:
		_, _ = fmt.Fprintf(r.errOut, "unknown command: %s\n", rest[0])
		r.printUsage()
		return 2
	}
}

func parseGlobalArgs(args []string) (string, []string, error) {
	socket := ""
	rest := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		if args[i] == "--socket" {
			if i+1 >= len(args) {
				return "", nil, fmt.Errorf("--socket requires value")
			}
			socket = args[i+1]
			i++
			continue
		}
		rest = append(rest, args[i])
	}
	return socket, rest, nil
}

func (r *Runner) runCreate(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	dtypeName := fs.String("type", "", "data type (INT8, UINT8, INT16, UINT16, INT32, UINT32, INT64, UINT64, REAL32, REAL64, TIMESTAMP, STRING)")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 || *dtypeName == "" {
		_, _ = fmt.Fprintln(r.errOut, "usage: tagfd create --type <TYPE> <name>")
		return 2
	}
	dtype, ok := tagtype.ParseDType(*dtypeName)
	if !ok || !dtype.Valid() {
		_, _ = fmt.Fprintf(r.errOut, "error: unknown data type %q\n", *dtypeName)
		return 2
	}
	if err := r.client.Create(ctx, dtype, fs.Arg(0)); err != nil {
		return r.handleErr(err)
	}
	_, _ = fmt.Fprintf(r.out, "created %s (%s)\n", fs.Arg(0), dtype)
	return 0
}

func (r *Runner) runRead(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("read", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	nonblocking := fs.Bool("nonblocking", true, "return immediately instead of waiting for a new value")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		_, _ = fmt.Fprintln(r.errOut, "usage: tagfd read [--nonblocking=false] <name>")
		return 2
	}
	v, err := r.client.Read(ctx, fs.Arg(0), *nonblocking)
	if err != nil {
		return r.handleErr(err)
	}
	observed := time.UnixMilli(int64(v.Timestamp))
	_, _ = fmt.Fprintf(r.out, "%s (%s)\n", relay.EmitHuman(v), humanize.RelTime(observed, time.Now(), "ago", "from now"))
	return 0
}

func (r *Runner) runWrite(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("write", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	dtypeName := fs.String("type", "", "data type of the value being written")
	if err := fs.Parse(args); err != nil || fs.NArg() != 2 || *dtypeName == "" {
		_, _ = fmt.Fprintln(r.errOut, "usage: tagfd write --type <TYPE> <name> <value>")
		return 2
	}
	dtype, ok := tagtype.ParseDType(*dtypeName)
	if !ok {
		_, _ = fmt.Fprintf(r.errOut, "error: unknown data type %q\n", *dtypeName)
		return 2
	}
	v, err := parseValue(dtype, fs.Arg(1))
	if err != nil {
		_, _ = fmt.Fprintf(r.errOut, "error: %v\n", err)
		return 2
	}
	if err := r.client.Write(ctx, fs.Arg(0), v); err != nil {
		return r.handleErr(err)
	}
	_, _ = fmt.Fprintf(r.out, "wrote %s\n", fs.Arg(0))
	return 0
}

func (r *Runner) runList(ctx context.Context, args []string) int {
	tags, err := r.client.List(ctx)
	if err != nil {
		return r.handleErr(err)
	}
	for _, t := range tags {
		_, _ = fmt.Fprintf(r.out, "%s\t%s\n", t.Name, t.DType)
	}
	return 0
}

func (r *Runner) runWatch(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	human := fs.Bool("human", false, "emit the human-readable encoding")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		_, _ = fmt.Fprintln(r.errOut, "usage: tagfd watch [--human] <name>")
		return 2
	}
	format := relay.Machine
	if *human {
		format = relay.Human
	}
	if err := relay.Run(ctx, r.client, r.out, relay.Options{TagName: fs.Arg(0), Format: format}); err != nil && ctx.Err() == nil {
		return r.handleErr(err)
	}
	return 0
}

func parseValue(dtype tagtype.DType, field string) (tagtype.Value, error) {
	now := uint64(time.Now().UnixMilli())
	switch dtype {
	case tagtype.Int8:
		n, err := strconv.ParseInt(field, 10, 8)
		if err != nil {
			return tagtype.Value{}, err
		}
		return tagtype.NewInt8(int8(n), now, tagtype.Good), nil
	case tagtype.UInt8:
		n, err := strconv.ParseUint(field, 10, 8)
		if err != nil {
			return tagtype.Value{}, err
		}
		return tagtype.NewUInt8(uint8(n), now, tagtype.Good), nil
	case tagtype.Int16:
		n, err := strconv.ParseInt(field, 10, 16)
		if err != nil {
			return tagtype.Value{}, err
		}
		return tagtype.NewInt16(int16(n), now, tagtype.Good), nil
	case tagtype.UInt16:
		n, err := strconv.ParseUint(field, 10, 16)
		if err != nil {
			return tagtype.Value{}, err
		}
		return tagtype.NewUInt16(uint16(n), now, tagtype.Good), nil
	case tagtype.Int32:
		n, err := strconv.ParseInt(field, 10, 32)
		if err != nil {
			return tagtype.Value{}, err
		}
		return tagtype.NewInt32(int32(n), now, tagtype.Good), nil
	case tagtype.UInt32:
		n, err := strconv.ParseUint(field, 10, 32)
		if err != nil {
			return tagtype.Value{}, err
		}
		return tagtype.NewUInt32(uint32(n), now, tagtype.Good), nil
	case tagtype.Int64:
		n, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return tagtype.Value{}, err
		}
		return tagtype.NewInt64(n, now, tagtype.Good), nil
	case tagtype.UInt64:
		n, err := strconv.ParseUint(field, 10, 64)
		if err != nil {
			return tagtype.Value{}, err
		}
		return tagtype.NewUInt64(n, now, tagtype.Good), nil
	case tagtype.Real32:
		n, err := strconv.ParseFloat(field, 32)
		if err != nil {
			return tagtype.Value{}, err
		}
		return tagtype.NewReal32(float32(n), now, tagtype.Good), nil
	case tagtype.Real64:
		n, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return tagtype.Value{}, err
		}
		return tagtype.NewReal64(n, now, tagtype.Good), nil
	case tagtype.Timestamp:
		n, err := strconv.ParseUint(field, 10, 64)
		if err != nil {
			return tagtype.Value{}, err
		}
		return tagtype.NewTimestampValue(n, now, tagtype.Good), nil
	case tagtype.String:
		return tagtype.NewString([]byte(field), now, tagtype.Good)
	default:
		return tagtype.Value{}, fmt.Errorf("unsupported data type %s", dtype)
	}
}

func (r *Runner) handleErr(err error) int {
	_, _ = fmt.Fprintf(r.errOut, "error: %v\n", err)
	return 1
}

func (r *Runner) printUsage() {
	_, _ = fmt.Fprintln(r.errOut, "usage: tagfd [--socket <path>] <create|read|write|list|watch> ...")
}
