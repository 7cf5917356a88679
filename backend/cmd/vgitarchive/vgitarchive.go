// vim: sw=8

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/docopt/docopt-go"

	"github.com/vgitarchive/vgitarchive/backend/internal/vfile"
	"github.com/vgitarchive/vgitarchive/backend/pkg/mulog"
	"github.com/vgitarchive/vgitarchive/backend/pkg/zap"
)

var (
	xVersion string
	xBuild   string
	version  = fmt.Sprintf("vgitarchive-%s+%s", xVersion, xBuild)
)

func qqBackticks(s string) string {
	return strings.Replace(s, "''", "`", -1)
}

var usage = qqBackticks(strings.TrimSpace(`
Usage:
  vgitarchive --tmp=<dir> [--log=<logger>] [--limit=<bandwidth>] create <archive>
  vgitarchive --tmp=<dir> [--log=<logger>] [--limit=<bandwidth>] commit [--message=<msg>] <archive>
  vgitarchive --tmp=<dir> [--log=<logger>] [--limit=<bandwidth>] checkout (--first|--last|--next|--previous|--version=<i>) <archive>
  vgitarchive --tmp=<dir> [--log=<logger>] log <archive>
  vgitarchive --tmp=<dir> [--log=<logger>] status <archive>
  vgitarchive --tmp=<dir> [--log=<logger>] cleanup <archive>
  vgitarchive [--log=<logger>] isvalid <archive>

Options:
  --tmp=<dir>         Workspace base directory; sandboxes are allocated
                       below it, one per archive (spec ''Workspace
                       Allocator'').
  --message=<msg>      Commit message.  [default: no message]
  --version=<i>        Version index to check out, in ''[1,N]''.
  --log=<logger>      Specify logger: prod, dev, or mu.  [default: mu]
  --limit=<bandwidth>  Bandwidth limit in bytes per second on pack/unpack
                       I/O.  ''k'', ''m'', ''g'', ''t'' can be used, which
                       are interpreted as binary SI, mirroring ''tartt
                       tar --limit''.

''create'' makes a fresh, empty archive and leaves it closed.

''commit'' opens the archive, stages and commits every change under its
working area, flushes, and closes.

''checkout'' opens the archive, checks out the requested version,
flushes the (possibly still-dirty) working area back to the archive, and
closes.

''log'' opens the archive read side and prints one line per version,
oldest first, as ''<index>\t<commit-id>\t<message>''.

''status'' opens the archive and prints one porcelain status line
(two-letter status code, space, path) per path with uncommitted changes.

''cleanup'' removes a sandbox left behind by a process that exited
without closing its session, provided doing so would not discard
history that the on-disk archive has and the sandbox lacks.

''isvalid'' reports whether ''<archive>'' is a valid versioned archive,
without needing ''--tmp''.
`))

type cliLogger interface {
	Infow(msg string, kv ...interface{})
	Warnw(msg string, kv ...interface{})
	Errorw(msg string, kv ...interface{})
	Fatalw(msg string, kv ...interface{})
}

var lg cliLogger = mulog.Logger{}

func main() {
	args := argparse()
	ctx := context.Background()

	initLogging(args["--log"].(string))

	if tmp, ok := args["--tmp"].(string); ok {
		if err := vfile.SetTmpFolder(tmp); err != nil {
			lg.Fatalw("Failed to set workspace base.", "err", err)
		}
	}

	archive := args["<archive>"].(string)

	limit := bandwidthLimit(args)

	switch {
	case args["create"].(bool):
		cmdCreate(ctx, archive, limit)
	case args["commit"].(bool):
		cmdCommit(ctx, archive, args["--message"].(string), limit)
	case args["checkout"].(bool):
		cmdCheckout(ctx, archive, limit, args)
	case args["log"].(bool):
		cmdLog(ctx, archive)
	case args["status"].(bool):
		cmdStatus(ctx, archive)
	case args["cleanup"].(bool):
		cmdCleanup(ctx, archive)
	case args["isvalid"].(bool):
		cmdIsValid(ctx, archive)
	default:
		panic("unhandled args")
	}
}

func argparse() map[string]interface{} {
	const autoHelp = true
	const noOptionFirst = false
	args, err := docopt.Parse(usage, nil, autoHelp, version, noOptionFirst)
	if err != nil {
		lg.Fatalw("docopt failed.", "err", err)
	}

	if arg, ok := args["--limit"].(string); ok {
		v, err := parseUint64Si(arg)
		if err != nil {
			lg.Fatalw("Invalid --limit.", "err", err)
		}
		args["--limit"] = v
	}

	return args
}

var siMap = map[string]uint64{
	"k": 1 << 10,
	"m": 1 << 20,
	"g": 1 << 30,
	"t": 1 << 40,
}

func parseUint64Si(s string) (uint64, error) {
	s = strings.ToLower(s)

	m := uint64(1)
	for suf, mult := range siMap {
		if strings.HasSuffix(s, suf) {
			m = mult
			s = s[0 : len(s)-len(suf)]
			break
		}
	}

	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("must be positive, got %d", v)
	}

	return uint64(v) * m, nil
}

func bandwidthLimit(args map[string]interface{}) int64 {
	if v, ok := args["--limit"].(uint64); ok {
		return int64(v)
	}
	return 0
}

func initLogging(arg string) {
	var err error
	switch arg {
	case "prod":
		lg, err = zap.NewProduction()
	case "dev":
		lg, err = zap.NewDevelopment()
	case "mu":
		lg = mulog.Logger{}
	default:
		err = fmt.Errorf("invalid --log option")
	}
	if err != nil {
		log.Fatal(err)
	}
}

func mustExit(err error) {
	if err != nil {
		lg.Fatalw("vgitarchive failed.", "err", err)
		os.Exit(1)
	}
}
